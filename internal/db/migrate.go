package db

import (
	"fmt"
	"time"

	"github.com/mlegall/assohub/internal/config"
	"github.com/mlegall/assohub/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Connect opens the configured database. Postgres gets a small retry loop to
// leave it time to start when both run under compose.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	if cfg.Driver == "sqlite" {
		return gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
	}

	var conn *gorm.DB
	var err error
	for i := 0; i < 5; i++ {
		conn, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
		if err == nil {
			return conn, nil
		}
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("database connection failed: %w", err)
}

// Migrate applies the schema. The mind-map document is stored as one JSON
// column; there is deliberately no per-node table.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&models.Rank{},
		&models.User{},
		&models.Group{},
		&models.GroupMembership{},
		&models.Discussion{},
		&models.Message{},
		&models.MessageFile{},
		&models.MessageReaction{},
		&models.UserSession{},
		&models.AuditLog{},
		&models.MindMap{},
	)
}
