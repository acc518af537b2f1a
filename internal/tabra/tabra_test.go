package tabra

import (
	"context"
	"path/filepath"
	"testing"

	dbpkg "github.com/tabra-pos/tabra-backend/internal/db"
	"github.com/tabra-pos/tabra-backend/internal/models"
	"gorm.io/gorm"
)

// newTestDB opens a throwaway file-backed SQLite database. A file is
// used instead of :memory: so every pooled connection sees the same
// database, which the concurrency tests depend on.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, errOpen := dbpkg.Open("file:" + filepath.Join(t.TempDir(), "tabra.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	return conn
}

// seedType creates a type with count cards at the depot.
func seedType(t *testing.T, conn *gorm.DB, name string, count int) (*models.TabraType, []string) {
	t.Helper()
	created, barcodes, errCreate := NewCatalog(conn).CreateType(context.Background(), CreateTypeParams{
		Name:           name,
		FiscalCodeName: "FC-" + name,
		Price:          "50.00",
		Count:          count,
	})
	if errCreate != nil {
		t.Fatalf("seed type %s: %v", name, errCreate)
	}
	return created, barcodes
}

// seedFilial creates a filial with a known password.
func seedFilial(t *testing.T, conn *gorm.DB, name, code string) *models.Filial {
	t.Helper()
	filial, errCreate := NewFilials(conn).Create(context.Background(), CreateFilialParams{
		Name:     name,
		Code:     code,
		Password: "filial-pass",
	})
	if errCreate != nil {
		t.Fatalf("seed filial %s: %v", name, errCreate)
	}
	return filial
}

// depotCount counts unused depot cards of a type.
func depotCount(t *testing.T, conn *gorm.DB, typeID uint64) int64 {
	t.Helper()
	var count int64
	if errCount := conn.Model(&models.Card{}).
		Where("tabra_type_id = ? AND location_filial_id IS NULL AND is_used = ?", typeID, false).
		Count(&count).Error; errCount != nil {
		t.Fatalf("count depot stock: %v", errCount)
	}
	return count
}

// filialCount counts unused cards of a type at a filial.
func filialCount(t *testing.T, conn *gorm.DB, typeID, filialID uint64) int64 {
	t.Helper()
	var count int64
	if errCount := conn.Model(&models.Card{}).
		Where("tabra_type_id = ? AND location_filial_id = ? AND is_used = ?", typeID, filialID, false).
		Count(&count).Error; errCount != nil {
		t.Fatalf("count filial stock: %v", errCount)
	}
	return count
}

// usedCount counts redeemed cards of a type.
func usedCount(t *testing.T, conn *gorm.DB, typeID uint64) int64 {
	t.Helper()
	var count int64
	if errCount := conn.Model(&models.Card{}).
		Where("tabra_type_id = ? AND is_used = ?", typeID, true).
		Count(&count).Error; errCount != nil {
		t.Fatalf("count used cards: %v", errCount)
	}
	return count
}

// assertSumInvariant checks depot + filials + used == issued for a type.
func assertSumInvariant(t *testing.T, conn *gorm.DB, typeID uint64, issued int64) {
	t.Helper()
	var total, atFilials int64
	if errCount := conn.Model(&models.Card{}).
		Where("tabra_type_id = ?", typeID).
		Count(&total).Error; errCount != nil {
		t.Fatalf("count all cards: %v", errCount)
	}
	if errCount := conn.Model(&models.Card{}).
		Where("tabra_type_id = ? AND location_filial_id IS NOT NULL AND is_used = ?", typeID, false).
		Count(&atFilials).Error; errCount != nil {
		t.Fatalf("count filial cards: %v", errCount)
	}
	depot := depotCount(t, conn, typeID)
	used := usedCount(t, conn, typeID)
	if total != issued {
		t.Fatalf("issued count changed: got %d, want %d", total, issued)
	}
	if depot+atFilials+used != issued {
		t.Fatalf("sum invariant broken: depot=%d filials=%d used=%d issued=%d", depot, atFilials, used, issued)
	}
}
