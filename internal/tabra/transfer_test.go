package tabra

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/tabra-pos/tabra-backend/internal/models"
)

func TestTransferByQuantityMovesOldestFirst(t *testing.T) {
	conn := newTestDB(t)
	created, barcodes := seedType(t, conn, "Gift50", 3)
	filial := seedFilial(t, conn, "Filial X", "FX")

	result, errMove := NewTransfers(conn).ByQuantity(context.Background(), filial.ID, created.ID, 2)
	if errMove != nil {
		t.Fatalf("transfer: %v", errMove)
	}
	if result.Transferred != 2 || result.ToFilial != "Filial X" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.ByType["Gift50"] != 2 {
		t.Fatalf("unexpected breakdown: %v", result.ByType)
	}

	if got := depotCount(t, conn, created.ID); got != 1 {
		t.Fatalf("depot stock: got %d, want 1", got)
	}
	if got := filialCount(t, conn, created.ID, filial.ID); got != 2 {
		t.Fatalf("filial stock: got %d, want 2", got)
	}

	// Oldest cards go first, so the remaining depot card is the newest.
	var remaining models.Card
	if errFind := conn.Where("tabra_type_id = ? AND location_filial_id IS NULL", created.ID).First(&remaining).Error; errFind != nil {
		t.Fatalf("load remaining: %v", errFind)
	}
	if remaining.Barcode != barcodes[2] {
		t.Fatalf("expected newest card %s to remain, got %s", barcodes[2], remaining.Barcode)
	}

	assertSumInvariant(t, conn, created.ID, 3)
}

func TestTransferByQuantityInsufficientStockMovesNothing(t *testing.T) {
	conn := newTestDB(t)
	created, _ := seedType(t, conn, "Gift50", 2)
	filial := seedFilial(t, conn, "Filial X", "FX")

	_, errMove := NewTransfers(conn).ByQuantity(context.Background(), filial.ID, created.ID, 5)
	var stockErr *InsufficientStockError
	if !errors.As(errMove, &stockErr) {
		t.Fatalf("expected InsufficientStockError, got %v", errMove)
	}
	if stockErr.Available != 2 || stockErr.Requested != 5 {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}

	if got := depotCount(t, conn, created.ID); got != 2 {
		t.Fatalf("depot stock changed on failed transfer: %d", got)
	}
	if got := filialCount(t, conn, created.ID, filial.ID); got != 0 {
		t.Fatalf("filial received cards on failed transfer: %d", got)
	}
}

func TestTransferByQuantityUnknownTargets(t *testing.T) {
	conn := newTestDB(t)
	created, _ := seedType(t, conn, "Gift50", 1)
	filial := seedFilial(t, conn, "Filial X", "FX")

	var nErr *NotFoundError
	if _, errMove := NewTransfers(conn).ByQuantity(context.Background(), 9999, created.ID, 1); !errors.As(errMove, &nErr) {
		t.Fatalf("expected NotFoundError for filial, got %v", errMove)
	}
	if _, errMove := NewTransfers(conn).ByQuantity(context.Background(), filial.ID, 9999, 1); !errors.As(errMove, &nErr) {
		t.Fatalf("expected NotFoundError for type, got %v", errMove)
	}
}

func TestTransferByBarcodeReportsBreakdown(t *testing.T) {
	conn := newTestDB(t)
	a, barcodesA := seedType(t, conn, "Gift50", 2)
	b, barcodesB := seedType(t, conn, "Gift100", 1)
	filial := seedFilial(t, conn, "Filial X", "FX")

	batch := append(append([]string{}, barcodesA...), barcodesB...)
	result, errMove := NewTransfers(conn).ByBarcode(context.Background(), filial.ID, batch)
	if errMove != nil {
		t.Fatalf("transfer: %v", errMove)
	}
	if result.Transferred != 3 {
		t.Fatalf("transferred: got %d, want 3", result.Transferred)
	}
	if result.ByType["Gift50"] != 2 || result.ByType["Gift100"] != 1 {
		t.Fatalf("unexpected breakdown: %v", result.ByType)
	}
	if filialCount(t, conn, a.ID, filial.ID) != 2 || filialCount(t, conn, b.ID, filial.ID) != 1 {
		t.Fatal("stock not relocated")
	}
}

func TestTransferByBarcodeIsAllOrNothing(t *testing.T) {
	conn := newTestDB(t)
	created, barcodes := seedType(t, conn, "Gift50", 3)
	filial := seedFilial(t, conn, "Filial X", "FX")

	// One barcode of the batch is already at the filial.
	if _, errMove := NewTransfers(conn).ByBarcode(context.Background(), filial.ID, barcodes[:1]); errMove != nil {
		t.Fatalf("setup transfer: %v", errMove)
	}

	_, errMove := NewTransfers(conn).ByBarcode(context.Background(), filial.ID, barcodes)
	var cErr *ConflictError
	if !errors.As(errMove, &cErr) {
		t.Fatalf("expected ConflictError, got %v", errMove)
	}
	if len(cErr.Barcodes) != 1 || cErr.Barcodes[0] != barcodes[0] {
		t.Fatalf("expected failing barcode %s, got %v", barcodes[0], cErr.Barcodes)
	}

	// The two valid barcodes must not have moved.
	if got := depotCount(t, conn, created.ID); got != 2 {
		t.Fatalf("depot stock: got %d, want 2", got)
	}
}

func TestTransferByBarcodeRejectsUnknownAndMalformed(t *testing.T) {
	conn := newTestDB(t)
	seedType(t, conn, "Gift50", 1)
	filial := seedFilial(t, conn, "Filial X", "FX")
	transfers := NewTransfers(conn)

	var vErr *ValidationError
	if _, errMove := transfers.ByBarcode(context.Background(), filial.ID, []string{"12345"}); !errors.As(errMove, &vErr) {
		t.Fatalf("expected ValidationError, got %v", errMove)
	}

	var cErr *ConflictError
	if _, errMove := transfers.ByBarcode(context.Background(), filial.ID, []string{"0000000000000"}); !errors.As(errMove, &cErr) {
		t.Fatalf("expected ConflictError for unknown barcode, got %v", errMove)
	}
}

func TestTransferByBarcodeNormalizesScannerInput(t *testing.T) {
	conn := newTestDB(t)
	created, barcodes := seedType(t, conn, "Gift50", 1)
	filial := seedFilial(t, conn, "Filial X", "FX")

	scanned := barcodes[0][:4] + " " + barcodes[0][4:8] + "-" + barcodes[0][8:]
	result, errMove := NewTransfers(conn).ByBarcode(context.Background(), filial.ID, []string{scanned})
	if errMove != nil {
		t.Fatalf("transfer: %v", errMove)
	}
	if result.Transferred != 1 {
		t.Fatalf("transferred: got %d, want 1", result.Transferred)
	}
	if got := filialCount(t, conn, created.ID, filial.ID); got != 1 {
		t.Fatalf("filial stock: got %d, want 1", got)
	}
}

func TestConcurrentQuantityTransfersNeverOversell(t *testing.T) {
	conn := newTestDB(t)
	created, _ := seedType(t, conn, "Gift50", 10)
	filialA := seedFilial(t, conn, "Filial A", "FA")
	filialB := seedFilial(t, conn, "Filial B", "FB")

	transfers := NewTransfers(conn)
	targets := []uint64{filialA.ID, filialB.ID, filialA.ID, filialB.ID}

	var wg sync.WaitGroup
	moved := make([]int, len(targets))
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target uint64) {
			defer wg.Done()
			// Each call asks for 4 cards; 4 calls want 16 of the 10
			// available. Losers may fail with InsufficientStockError or
			// a storage conflict, but winners together can never move
			// more than the depot held.
			if result, errMove := transfers.ByQuantity(context.Background(), target, created.ID, 4); errMove == nil {
				moved[i] = result.Transferred
			}
		}(i, target)
	}
	wg.Wait()

	var total int
	for _, n := range moved {
		total += n
	}
	if total > 10 {
		t.Fatalf("oversold: %d cards moved from a depot of 10", total)
	}

	relocated := filialCount(t, conn, created.ID, filialA.ID) + filialCount(t, conn, created.ID, filialB.ID)
	if relocated != int64(total) {
		t.Fatalf("reported %d moved but %d relocated", total, relocated)
	}
	assertSumInvariant(t, conn, created.ID, 10)
}

func TestRecentTransfersAreAudited(t *testing.T) {
	conn := newTestDB(t)
	created, barcodes := seedType(t, conn, "Gift50", 3)
	filial := seedFilial(t, conn, "Filial X", "FX")
	transfers := NewTransfers(conn)

	if _, errMove := transfers.ByQuantity(context.Background(), filial.ID, created.ID, 2); errMove != nil {
		t.Fatalf("transfer by quantity: %v", errMove)
	}
	if _, errMove := transfers.ByBarcode(context.Background(), filial.ID, barcodes[2:]); errMove != nil {
		t.Fatalf("transfer by barcode: %v", errMove)
	}

	logs, errList := transfers.Recent(context.Background(), 10)
	if errList != nil {
		t.Fatalf("list transfers: %v", errList)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(logs))
	}
	if logs[0].Mode != models.TransferModeBarcode || logs[1].Mode != models.TransferModeQuantity {
		t.Fatalf("unexpected order: %s, %s", logs[0].Mode, logs[1].Mode)
	}

	var breakdown map[string]int
	if errDecode := json.Unmarshal(logs[1].Breakdown, &breakdown); errDecode != nil {
		t.Fatalf("decode breakdown: %v", errDecode)
	}
	if breakdown["Gift50"] != 2 {
		t.Fatalf("unexpected breakdown: %v", breakdown)
	}
}
