package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"autotrader/pkg/db"
)

// verify_schema opens the configured database, applies pending
// migrations, and reports the resulting tables and key columns.
//
// Usage:
//   go run ./scripts/verify_schema          # uses DB_PATH, default ./data/autotrader.db
//   go run ./scripts/verify_schema mydb.db

func main() {
	path := os.Getenv("DB_PATH")
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	if path == "" {
		path = "./data/autotrader.db"
	}
	fmt.Printf("verifying database at %s\n", path)

	database, err := db.New(path)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer database.Close()

	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}
	fmt.Println("✓ migrations applied")

	expected := []string{"users", "strategies", "executions", "signals", "trades", "settings"}
	for _, table := range expected {
		var name string
		err := database.DB.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			fmt.Printf("❌ table %s missing: %v\n", table, err)
			continue
		}
		fmt.Printf("✓ table %s exists\n", table)
	}

	columns := map[string][]string{
		"executions": {"state", "has_open_position", "trades_today", "consecutive_losses", "error_count"},
		"strategies": {"family", "timeframe", "params", "max_trades_per_day"},
		"signals":    {"signal_type", "strength", "indicator_snapshot"},
		"trades":     {"order_id", "side", "pnl"},
	}
	for table, cols := range columns {
		var schema string
		if err := database.DB.QueryRow(
			`SELECT sql FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&schema); err != nil {
			fmt.Printf("❌ schema for %s unreadable: %v\n", table, err)
			continue
		}
		for _, col := range cols {
			if strings.Contains(schema, col) {
				fmt.Printf("✓ %s.%s\n", table, col)
			} else {
				fmt.Printf("❌ %s.%s MISSING\n", table, col)
			}
		}
	}
}
