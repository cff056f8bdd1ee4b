package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoKeys             = errors.New("keyring has no keys")
	ErrVersionUnavailable = errors.New("key version not available")
)

// Keyring holds one encryptor per key version. New values are sealed with
// the highest version; old values stay readable as long as their key is
// still loaded.
type Keyring struct {
	mu         sync.RWMutex
	current    int
	encryptors map[int]*Encryptor
}

// NewKeyring builds a keyring from key strings ordered oldest first.
// Version numbers start at 1.
func NewKeyring(keys ...string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	kr := &Keyring{encryptors: make(map[int]*Encryptor, len(keys))}
	for i, raw := range keys {
		version := i + 1
		material, err := DecodeKey(raw)
		if err != nil {
			return nil, fmt.Errorf("key v%d: %w", version, err)
		}
		enc, err := NewEncryptor(material, version)
		if err != nil {
			return nil, fmt.Errorf("key v%d: %w", version, err)
		}
		kr.encryptors[version] = enc
		kr.current = version
	}
	return kr, nil
}

// CurrentVersion returns the version new values are sealed with.
func (k *Keyring) CurrentVersion() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.current
}

// Encrypt seals plaintext with the current key.
func (k *Keyring) Encrypt(plaintext string) (string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.encryptors[k.current].Encrypt(plaintext)
}

// Decrypt opens a sealed value with whichever key version produced it.
func (k *Keyring) Decrypt(ciphertext string) (string, error) {
	version := ParseVersion(ciphertext)
	if version == 0 {
		return "", ErrInvalidCiphertext
	}
	k.mu.RLock()
	enc, ok := k.encryptors[version]
	k.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: v%d", ErrVersionUnavailable, version)
	}
	return enc.Decrypt(ciphertext)
}

// ReEncrypt reseals a value with the current key. Used after rotation.
func (k *Keyring) ReEncrypt(ciphertext string) (string, error) {
	plaintext, err := k.Decrypt(ciphertext)
	if err != nil {
		return "", err
	}
	return k.Encrypt(plaintext)
}

// Credentials is a broker API key pair stored encrypted in settings.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// SealCredentials encrypts a credential pair for storage.
func (k *Keyring) SealCredentials(c Credentials) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	return k.Encrypt(string(raw))
}

// OpenCredentials decrypts a stored credential pair.
func (k *Keyring) OpenCredentials(sealed string) (Credentials, error) {
	plaintext, err := k.Decrypt(sealed)
	if err != nil {
		return Credentials{}, err
	}
	var c Credentials
	if err := json.Unmarshal([]byte(plaintext), &c); err != nil {
		return Credentials{}, fmt.Errorf("unmarshal credentials: %w", err)
	}
	return c, nil
}
