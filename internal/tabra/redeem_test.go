package tabra

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tabra-pos/tabra-backend/internal/models"
)

func redeemParams(barcode string) RedeemParams {
	return RedeemParams{
		Barcode:           barcode,
		CustomerFirstName: "Anna",
		CustomerLastName:  "Karimova",
		CustomerPhone:     "+998901234567",
	}
}

func TestRedeemHappyPath(t *testing.T) {
	conn := newTestDB(t)
	created, barcodes := seedType(t, conn, "Gift50", 1)
	filial := seedFilial(t, conn, "Filial X", "FX")

	if _, errMove := NewTransfers(conn).ByBarcode(context.Background(), filial.ID, barcodes); errMove != nil {
		t.Fatalf("transfer: %v", errMove)
	}

	params := redeemParams(barcodes[0])
	params.PerformingFilial = &filial.ID
	result, errRedeem := NewRedemptions(conn).Redeem(context.Background(), params)
	if errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}

	if !strings.HasPrefix(result.ReceiptNumber, "R-") || len(result.ReceiptNumber) != 12 {
		t.Fatalf("unexpected receipt number %q", result.ReceiptNumber)
	}
	card := result.Card
	if !card.IsUsed || card.UsedAt == nil {
		t.Fatal("card not marked used")
	}
	if card.FilialName == nil || *card.FilialName != "Filial X" {
		t.Fatalf("filial name not frozen: %v", card.FilialName)
	}
	if card.CustomerFirstName == nil || *card.CustomerFirstName != "Anna" {
		t.Fatal("customer not captured")
	}
	if card.TabraType == nil || card.TabraType.Name != "Gift50" {
		t.Fatal("type not loaded into result")
	}

	if got := usedCount(t, conn, created.ID); got != 1 {
		t.Fatalf("used count: got %d, want 1", got)
	}
	assertSumInvariant(t, conn, created.ID, 1)
}

func TestRedeemIsExactlyOnce(t *testing.T) {
	conn := newTestDB(t)
	_, barcodes := seedType(t, conn, "Gift50", 1)
	redemptions := NewRedemptions(conn)

	first, errFirst := redemptions.Redeem(context.Background(), redeemParams(barcodes[0]))
	if errFirst != nil {
		t.Fatalf("first redeem: %v", errFirst)
	}

	_, errSecond := redemptions.Redeem(context.Background(), redeemParams(barcodes[0]))
	var cErr *ConflictError
	if !errors.As(errSecond, &cErr) {
		t.Fatalf("expected ConflictError on second redeem, got %v", errSecond)
	}

	// The second attempt must not disturb the first redemption's state.
	var card models.Card
	if errFind := conn.Where("barcode = ?", barcodes[0]).First(&card).Error; errFind != nil {
		t.Fatalf("reload card: %v", errFind)
	}
	if card.ReceiptNumber == nil || *card.ReceiptNumber != first.ReceiptNumber {
		t.Fatalf("receipt changed: %v vs %s", card.ReceiptNumber, first.ReceiptNumber)
	}
}

func TestRedeemEnforcesFilialScope(t *testing.T) {
	conn := newTestDB(t)
	_, barcodes := seedType(t, conn, "Gift50", 2)
	filialA := seedFilial(t, conn, "Filial A", "FA")
	filialB := seedFilial(t, conn, "Filial B", "FB")

	if _, errMove := NewTransfers(conn).ByBarcode(context.Background(), filialA.ID, barcodes[:1]); errMove != nil {
		t.Fatalf("transfer: %v", errMove)
	}
	redemptions := NewRedemptions(conn)

	// Filial B cannot redeem a card sitting at filial A.
	params := redeemParams(barcodes[0])
	params.PerformingFilial = &filialB.ID
	var fErr *ForbiddenError
	if _, errRedeem := redemptions.Redeem(context.Background(), params); !errors.As(errRedeem, &fErr) {
		t.Fatalf("expected ForbiddenError, got %v", errRedeem)
	}

	// Nor a card still at the depot.
	params = redeemParams(barcodes[1])
	params.PerformingFilial = &filialB.ID
	if _, errRedeem := redemptions.Redeem(context.Background(), params); !errors.As(errRedeem, &fErr) {
		t.Fatalf("expected ForbiddenError for depot card, got %v", errRedeem)
	}

	var card models.Card
	if errFind := conn.Where("barcode = ?", barcodes[0]).First(&card).Error; errFind != nil {
		t.Fatalf("reload card: %v", errFind)
	}
	if card.IsUsed {
		t.Fatal("refused redemption still consumed the card")
	}
}

func TestRedeemByAdminStampsLocationName(t *testing.T) {
	conn := newTestDB(t)
	_, barcodes := seedType(t, conn, "Gift50", 3)
	filial := seedFilial(t, conn, "Filial X", "FX")
	redemptions := NewRedemptions(conn)

	if _, errMove := NewTransfers(conn).ByBarcode(context.Background(), filial.ID, barcodes[:1]); errMove != nil {
		t.Fatalf("transfer: %v", errMove)
	}

	// Admin redeeming a filial card freezes that filial's name.
	result, errRedeem := redemptions.Redeem(context.Background(), redeemParams(barcodes[0]))
	if errRedeem != nil {
		t.Fatalf("redeem filial card: %v", errRedeem)
	}
	if result.Card.FilialName == nil || *result.Card.FilialName != "Filial X" {
		t.Fatalf("expected filial name, got %v", result.Card.FilialName)
	}

	// Admin redeeming a depot card with an explicit label uses it.
	params := redeemParams(barcodes[1])
	params.FilialLabel = "Front desk"
	result, errRedeem = redemptions.Redeem(context.Background(), params)
	if errRedeem != nil {
		t.Fatalf("redeem depot card: %v", errRedeem)
	}
	if result.Card.FilialName == nil || *result.Card.FilialName != "Front desk" {
		t.Fatalf("expected label, got %v", result.Card.FilialName)
	}

	// Without a label the depot marker is stamped.
	result, errRedeem = redemptions.Redeem(context.Background(), redeemParams(barcodes[2]))
	if errRedeem != nil {
		t.Fatalf("redeem depot card: %v", errRedeem)
	}
	if result.Card.FilialName == nil || *result.Card.FilialName != "central" {
		t.Fatalf("expected depot marker, got %v", result.Card.FilialName)
	}
}

func TestRedeemValidatesInput(t *testing.T) {
	conn := newTestDB(t)
	_, barcodes := seedType(t, conn, "Gift50", 1)
	redemptions := NewRedemptions(conn)

	cases := []struct {
		name   string
		mutate func(*RedeemParams)
	}{
		{"short barcode", func(p *RedeemParams) { p.Barcode = "12345" }},
		{"blank first name", func(p *RedeemParams) { p.CustomerFirstName = "  " }},
		{"blank last name", func(p *RedeemParams) { p.CustomerLastName = "" }},
		{"blank phone", func(p *RedeemParams) { p.CustomerPhone = "" }},
	}
	for _, tc := range cases {
		params := redeemParams(barcodes[0])
		tc.mutate(&params)
		var vErr *ValidationError
		if _, errRedeem := redemptions.Redeem(context.Background(), params); !errors.As(errRedeem, &vErr) {
			t.Fatalf("%s: expected ValidationError, got %v", tc.name, errRedeem)
		}
	}

	var nErr *NotFoundError
	if _, errRedeem := redemptions.Redeem(context.Background(), redeemParams("0000000000000")); !errors.As(errRedeem, &nErr) {
		t.Fatalf("expected NotFoundError for unknown barcode, got %v", errRedeem)
	}
}

func TestRedeemAcceptsScannerSeparators(t *testing.T) {
	conn := newTestDB(t)
	_, barcodes := seedType(t, conn, "Gift50", 1)

	scanned := barcodes[0][:6] + " " + barcodes[0][6:]
	result, errRedeem := NewRedemptions(conn).Redeem(context.Background(), redeemParams(scanned))
	if errRedeem != nil {
		t.Fatalf("redeem: %v", errRedeem)
	}
	if result.Card.Barcode != barcodes[0] {
		t.Fatalf("redeemed wrong card: %s", result.Card.Barcode)
	}
}

func TestConcurrentRedeemConsumesCardOnce(t *testing.T) {
	conn := newTestDB(t)
	created, barcodes := seedType(t, conn, "Gift50", 1)
	redemptions := NewRedemptions(conn)

	var wg sync.WaitGroup
	receipts := make([]string, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if result, errRedeem := redemptions.Redeem(context.Background(), redeemParams(barcodes[0])); errRedeem == nil {
				receipts[i] = result.ReceiptNumber
			}
		}(i)
	}
	wg.Wait()

	var winners int
	for _, receipt := range receipts {
		if receipt != "" {
			winners++
		}
	}
	if winners > 1 {
		t.Fatalf("card redeemed %d times", winners)
	}
	if got := usedCount(t, conn, created.ID); got > 1 {
		t.Fatalf("used count: got %d, want at most 1", got)
	}
	assertSumInvariant(t, conn, created.ID, 1)
}
