package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"autotrader/internal/market"
	"autotrader/pkg/db"
)

// Config is one strategy entry in the bootstrap YAML file.
type Config struct {
	Name                 string         `yaml:"name"`
	Symbol               string         `yaml:"symbol"`
	Family               string         `yaml:"family"`
	Timeframe            string         `yaml:"timeframe"`
	Params               map[string]any `yaml:"params"`
	Qty                  float64        `yaml:"qty"`
	Notional             float64        `yaml:"notional"`
	DryRun               bool           `yaml:"dry_run"`
	Enabled              bool           `yaml:"enabled"`
	MaxTradesPerDay      int            `yaml:"max_trades_per_day"`
	MaxLossPerDay        float64        `yaml:"max_loss_per_day"`
	MaxConsecutiveLosses int            `yaml:"max_consecutive_losses"`
}

// ConfigFile is the top-level YAML structure.
type ConfigFile struct {
	Strategies []Config `yaml:"strategies"`
}

// LoadConfig reads strategy definitions from a YAML file.
func LoadConfig(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file ConfigFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return file.Strategies, nil
}

// ToStrategy validates a config entry and converts it to a storable row.
// Family and parameters are checked by actually constructing the generator.
func (c Config) ToStrategy() (db.Strategy, error) {
	if c.Name == "" {
		return db.Strategy{}, fmt.Errorf("strategy missing name")
	}
	if c.Symbol == "" {
		return db.Strategy{}, fmt.Errorf("strategy %s: missing symbol", c.Name)
	}
	if c.Qty <= 0 && c.Notional <= 0 {
		return db.Strategy{}, fmt.Errorf("strategy %s: needs qty or notional", c.Name)
	}
	if _, err := market.ParseTimeframe(c.Timeframe); err != nil {
		return db.Strategy{}, fmt.Errorf("strategy %s: %w", c.Name, err)
	}

	paramsJSON, err := json.Marshal(c.Params)
	if err != nil {
		return db.Strategy{}, fmt.Errorf("strategy %s: marshal params: %w", c.Name, err)
	}
	if _, err := New(Family(c.Family), paramsJSON); err != nil {
		return db.Strategy{}, fmt.Errorf("strategy %s: %w", c.Name, err)
	}

	s := db.Strategy{
		Name:                 c.Name,
		Symbol:               c.Symbol,
		Family:               c.Family,
		Timeframe:            c.Timeframe,
		Params:               string(paramsJSON),
		Qty:                  c.Qty,
		Notional:             c.Notional,
		DryRun:               c.DryRun,
		Enabled:              c.Enabled,
		MaxTradesPerDay:      c.MaxTradesPerDay,
		MaxLossPerDay:        c.MaxLossPerDay,
		MaxConsecutiveLosses: c.MaxConsecutiveLosses,
	}
	if s.MaxTradesPerDay <= 0 {
		s.MaxTradesPerDay = 10
	}
	if s.MaxLossPerDay <= 0 {
		s.MaxLossPerDay = 500
	}
	if s.MaxConsecutiveLosses <= 0 {
		s.MaxConsecutiveLosses = 3
	}
	return s, nil
}

// SyncConfigToDB upserts strategies from the config file into the database,
// matching existing rows by name. Returns the number of rows written.
func SyncConfigToDB(ctx context.Context, database *db.Database, configs []Config) (int, error) {
	n := 0
	for _, cfg := range configs {
		row, err := cfg.ToStrategy()
		if err != nil {
			return n, err
		}

		existing, err := database.GetStrategyByName(ctx, cfg.Name)
		if err != nil {
			return n, fmt.Errorf("lookup strategy %s: %w", cfg.Name, err)
		}

		if existing == nil {
			row.ID = uuid.NewString()
			if err := database.CreateStrategy(ctx, row); err != nil {
				return n, fmt.Errorf("create strategy %s: %w", cfg.Name, err)
			}
		} else {
			row.ID = existing.ID
			if err := database.UpdateStrategy(ctx, row); err != nil {
				return n, fmt.Errorf("update strategy %s: %w", cfg.Name, err)
			}
		}
		n++
	}
	return n, nil
}
