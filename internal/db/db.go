package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"closetvote/internal/config"
	"closetvote/internal/models"
)

// voteIndexes emulate "at most one vote per identity signal per item and
// week" with one partial unique index per signal, since any subset of the
// signals may be absent on a given vote.
var voteIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_votes_user ON votes (item_id, year, week, user_id) WHERE user_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_votes_anonymous ON votes (item_id, year, week, anonymous_id) WHERE anonymous_id IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_votes_ip ON votes (item_id, year, week, ip_address) WHERE ip_address IS NOT NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_votes_fingerprint ON votes (item_id, year, week, fingerprint) WHERE fingerprint IS NOT NULL`,
}

// Open connects to Postgres and configures the pool.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	slog.Info("database connection established")
	return gdb, nil
}

// Migrate creates tables and the vote uniqueness indexes.
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.Vote{},
		&models.WardrobeEntry{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range voteIndexes {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create vote index: %w", err)
		}
	}
	slog.Info("database migration completed")
	return nil
}

// Ping is used by the health check.
func Ping(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SeedItems inserts a few approved items into an empty catalog. Development only.
func SeedItems(gdb *gorm.DB) error {
	var count int64
	if err := gdb.Model(&models.Item{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		slog.Info("items already seeded, skipping")
		return nil
	}

	items := []models.Item{
		{
			Name:        "Classic Denim Jacket",
			Description: "A **washed** denim jacket that goes with everything.",
			Image:       "https://cdn.example.com/clothing-app/denim-jacket.jpg",
			BuyNowLinks: []models.BuyNowLink{{SiteName: "Example Shop", URL: "https://shop.example.com/denim-jacket"}},
			Status:      models.ItemApproved,
			Type:        "Jacket", Gender: "Unisex", Price: "$50-$100", Style: "Casual",
		},
		{
			Name:        "Linen Summer Shirt",
			Description: "Breathable linen, relaxed fit.",
			Image:       "https://cdn.example.com/clothing-app/linen-shirt.jpg",
			BuyNowLinks: []models.BuyNowLink{{SiteName: "Example Shop", URL: "https://shop.example.com/linen-shirt"}},
			Status:      models.ItemApproved,
			Type:        "Shirt", Gender: "Male", Price: "Under $50", Style: "Casual",
		},
	}
	for i := range items {
		if err := gdb.Create(&items[i]).Error; err != nil {
			slog.Warn("failed to seed item", "name", items[i].Name, "error", err)
		}
	}
	slog.Info("initial items created")
	return nil
}
