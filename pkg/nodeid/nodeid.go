// Package nodeid derives a stable fingerprint for the deployment node.
// The fingerprint appears in system status so operators can tell engines
// apart when several report into one dashboard.
package nodeid

import (
	"crypto/sha256"
	"encoding/hex"
	"os"

	"github.com/denisbrodbeck/machineid"
)

// appKey namespaces the machine id so the raw platform GUID never leaves
// the host.
const appKey = "autotrader"

// Fingerprint returns a short stable node identifier. When the platform
// machine id is unavailable it falls back to a hostname hash.
func Fingerprint() string {
	if id, err := machineid.ProtectedID(appKey); err == nil && id != "" {
		return shorten(id)
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "unknown"
	}
	sum := sha256.Sum256([]byte(appKey + ":" + host))
	return shorten(hex.EncodeToString(sum[:]))
}

func shorten(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
