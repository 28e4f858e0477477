package main

import (
	"database/sql"
	"log"

	"reservation-market/internal/config"

	_ "github.com/lib/pq"
)

// Supporting indexes behind the hot marketplace queries. AutoMigrate creates
// the tables; this tool adds what GORM tags cannot express.
var statements = []string{
	// Rate limit window lookup: purge + count + oldest per (user, action)
	`CREATE INDEX IF NOT EXISTS idx_rate_limit_window
	   ON rate_limit_records (user_id, action_type, expires_at)`,

	// Highest open bid per listing
	`CREATE INDEX IF NOT EXISTS idx_bids_open_amount
	   ON bids (listing_id, amount DESC)
	   WHERE status = 'OPEN'`,

	// Sweep scan over due biddable listings
	`CREATE INDEX IF NOT EXISTS idx_listings_sweep_due
	   ON listings (bid_end_time)
	   WHERE status = 'AVAILABLE' AND allow_bidding`,

	// Ledger scans per listing, newest first
	`CREATE INDEX IF NOT EXISTS idx_sales_listing_executed
	   ON sale_records (listing_id, executed_at DESC)`,
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	log.Println("Connected to database successfully")

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			log.Fatalf("Failed to apply statement: %v\n%s", err, stmt)
		}
	}

	log.Println("Marketplace indexes applied successfully")
}
