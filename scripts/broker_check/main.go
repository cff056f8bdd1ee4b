package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"autotrader/pkg/broker"
	"autotrader/pkg/broker/alpaca"
	"autotrader/pkg/config"
)

// broker_check probes the Alpaca REST API with the configured
// credentials. Read-only: it never places an order.
//
// Usage:
//   go run ./scripts/broker_check
//
// Environment (same as the main binary):
//   ALPACA_API_KEY / ALPACA_API_SECRET
//   ALPACA_PAPER            (default "true")
//   CHECK_SYMBOL            (default "AAPL")

func main() {
	log.Println("=== broker check starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.AlpacaAPIKey == "" || cfg.AlpacaAPISecret == "" {
		log.Fatal("ALPACA_API_KEY/ALPACA_API_SECRET not set")
	}

	symbol := os.Getenv("CHECK_SYMBOL")
	if symbol == "" {
		symbol = "AAPL"
	}

	client := alpaca.NewClient(cfg.AlpacaAPIKey, cfg.AlpacaAPISecret, cfg.AlpacaPaper)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Printf("[account] paper=%v", cfg.AlpacaPaper)
	account, err := client.GetAccount(ctx)
	if err != nil {
		log.Fatalf("GetAccount failed: %v", err)
	}
	log.Printf("account %s: status=%s cash=%.2f buying_power=%.2f",
		account.ID, account.Status, account.Cash, account.BuyingPower)

	log.Println("[clock]")
	clock, err := client.GetClock(ctx)
	if err != nil {
		log.Printf("GetClock failed: %v", err)
	} else {
		log.Printf("market open=%v next_open=%s next_close=%s",
			clock.IsOpen, clock.NextOpen.Format(time.RFC3339), clock.NextClose.Format(time.RFC3339))
	}

	log.Println("[positions]")
	positions, err := client.ListPositions(ctx)
	if err != nil {
		log.Printf("ListPositions failed: %v", err)
	} else if len(positions) == 0 {
		log.Println("no open positions")
	} else {
		for _, p := range positions {
			log.Printf("%s qty=%.4f avg_entry=%.2f", p.Symbol, p.Qty, p.AvgEntryPrice)
		}
	}

	log.Printf("[position %s]", symbol)
	pos, err := client.GetPosition(ctx, symbol)
	switch {
	case errors.Is(err, broker.ErrNotFound):
		log.Printf("no position in %s", symbol)
	case err != nil:
		log.Printf("GetPosition failed: %v", err)
	default:
		log.Printf("%s qty=%.4f avg_entry=%.2f", pos.Symbol, pos.Qty, pos.AvgEntryPrice)
	}

	log.Printf("[bars %s]", symbol)
	end := time.Now()
	bars, err := client.GetBars(ctx, symbol, "15Min", end.Add(-24*time.Hour), end, 10)
	if err != nil {
		log.Printf("GetBars failed: %v", err)
	} else {
		log.Printf("fetched %d bars", len(bars))
		if len(bars) > 0 {
			last := bars[len(bars)-1]
			log.Printf("last bar %s: close=%.2f volume=%.0f",
				last.Timestamp.Format(time.RFC3339), last.Close, last.Volume)
		}
	}

	log.Println("=== broker check finished ===")
}
