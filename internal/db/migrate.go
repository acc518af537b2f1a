package db

import (
	"fmt"

	"github.com/tabra-pos/tabra-backend/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if err := conn.AutoMigrate(
		&models.TabraType{},
		&models.Card{},
		&models.Filial{},
		&models.TransferLog{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
