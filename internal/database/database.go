package database

import (
	"fmt"

	"ngo-inquiry-tracker/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open opens the SQLite database file (created if it doesn't exist) and runs
// migrations. glebarez/sqlite is a pure Go implementation, so no CGO is required.
func Open(path string, level logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Subscriber{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// InitDB opens the database at path and installs it as the package-level DB.
func InitDB(path string) error {
	db, err := Open(path, logger.Warn)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
