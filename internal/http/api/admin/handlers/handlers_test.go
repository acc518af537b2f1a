package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	dbpkg "github.com/tabra-pos/tabra-backend/internal/db"
	"github.com/tabra-pos/tabra-backend/internal/tabra"
)

func setupHandlerTestDB(t *testing.T) *gorm.DB {
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

func jsonRequest(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return w, c
}

func TestTypeCreateAndList(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := NewTypeHandler(db)

	w, c := jsonRequest(t, http.MethodPost, "/api/tabra/types",
		`{"name":"Gift50","fiscalCodeName":"FC-50","price":"50.00","count":3}`)
	h.Create(c)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d body=%s", w.Code, w.Body.String())
	}

	var created struct {
		Type struct {
			ID    uint64 `json:"id"`
			Name  string `json:"name"`
			Price string `json:"price"`
		} `json:"type"`
		Barcodes []string `json:"barcodes"`
		Count    int      `json:"count"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &created); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if created.Count != 3 || len(created.Barcodes) != 3 {
		t.Fatalf("expected 3 barcodes, got %+v", created)
	}
	if created.Type.Price != "50.00" {
		t.Fatalf("price not verbatim: %q", created.Type.Price)
	}

	w, c = jsonRequest(t, http.MethodGet, "/api/tabra/types", "")
	h.List(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	var listed []struct {
		Name  string `json:"name"`
		Count struct {
			Cards int64 `json:"cards"`
		} `json:"_count"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &listed); errDecode != nil {
		t.Fatalf("decode list: %v", errDecode)
	}
	if len(listed) != 1 || listed[0].Count.Cards != 3 {
		t.Fatalf("unexpected list: %+v", listed)
	}
}

func TestTypeCreateRejectsBadInput(t *testing.T) {
	db := setupHandlerTestDB(t)
	h := NewTypeHandler(db)

	w, c := jsonRequest(t, http.MethodPost, "/api/tabra/types", "{not json")
	h.Create(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad json, got %d", w.Code)
	}

	w, c = jsonRequest(t, http.MethodPost, "/api/tabra/types",
		`{"name":"Gift50","fiscalCodeName":"FC-50","price":"abc","count":1}`)
	h.Create(c)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for bad price, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestTypeExportIsPlainText(t *testing.T) {
	db := setupHandlerTestDB(t)
	created, barcodes, errCreate := tabra.NewCatalog(db).CreateType(context.Background(), tabra.CreateTypeParams{
		Name: "Gift50", FiscalCodeName: "FC-50", Price: "50.00", Count: 2,
	})
	if errCreate != nil {
		t.Fatalf("seed type: %v", errCreate)
	}

	h := NewTypeHandler(db)
	w, c := jsonRequest(t, http.MethodGet, "/api/tabra/types/1/export", "")
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(created.ID, 10)}}
	h.Export(c)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 || lines[0] != barcodes[0] || lines[1] != barcodes[1] {
		t.Fatalf("unexpected export body %q", w.Body.String())
	}
}

func TestTransferEndpointReportsShortStock(t *testing.T) {
	db := setupHandlerTestDB(t)
	created, _, errCreate := tabra.NewCatalog(db).CreateType(context.Background(), tabra.CreateTypeParams{
		Name: "Gift50", FiscalCodeName: "FC-50", Price: "50.00", Count: 1,
	})
	if errCreate != nil {
		t.Fatalf("seed type: %v", errCreate)
	}
	filialRec, errFilial := tabra.NewFilials(db).Create(context.Background(), tabra.CreateFilialParams{
		Name: "Filial X", Code: "FX", Password: "secret",
	})
	if errFilial != nil {
		t.Fatalf("seed filial: %v", errFilial)
	}

	h := NewTransferHandler(db)
	body := `{"toFilialId":` + strconv.FormatUint(filialRec.ID, 10) +
		`,"tabraTypeId":` + strconv.FormatUint(created.ID, 10) + `,"quantity":5}`
	w, c := jsonRequest(t, http.MethodPost, "/api/tabra/transfers", body)
	h.Create(c)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		Available int `json:"available"`
		Requested int `json:"requested"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if resp.Available != 1 || resp.Requested != 5 {
		t.Fatalf("unexpected detail: %+v", resp)
	}
}

func TestUseEndpointRedeemsOnce(t *testing.T) {
	db := setupHandlerTestDB(t)
	_, barcodes, errCreate := tabra.NewCatalog(db).CreateType(context.Background(), tabra.CreateTypeParams{
		Name: "Gift50", FiscalCodeName: "FC-50", Price: "50.00", Count: 1,
	})
	if errCreate != nil {
		t.Fatalf("seed type: %v", errCreate)
	}

	h := NewRedeemHandler(db)
	body := `{"barcode":"` + barcodes[0] + `","customerFirstName":"Anna","customerLastName":"Karimova","customerPhone":"+998901234567"}`

	w, c := jsonRequest(t, http.MethodPost, "/api/tabra/use", body)
	h.Use(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}
	var resp struct {
		ReceiptNumber string `json:"receiptNumber"`
		Card          struct {
			IsUsed bool    `json:"isUsed"`
			Filial *string `json:"filial"`
		} `json:"card"`
	}
	if errDecode := json.Unmarshal(w.Body.Bytes(), &resp); errDecode != nil {
		t.Fatalf("decode response: %v", errDecode)
	}
	if !strings.HasPrefix(resp.ReceiptNumber, "R-") || !resp.Card.IsUsed {
		t.Fatalf("unexpected response: %+v", resp)
	}

	w, c = jsonRequest(t, http.MethodPost, "/api/tabra/use", body)
	h.Use(c)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected status 409 on second redeem, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestFilialDeleteEndpointReturnsStock(t *testing.T) {
	db := setupHandlerTestDB(t)
	created, _, errCreate := tabra.NewCatalog(db).CreateType(context.Background(), tabra.CreateTypeParams{
		Name: "Gift50", FiscalCodeName: "FC-50", Price: "50.00", Count: 2,
	})
	if errCreate != nil {
		t.Fatalf("seed type: %v", errCreate)
	}
	filialRec, errFilial := tabra.NewFilials(db).Create(context.Background(), tabra.CreateFilialParams{
		Name: "Filial X", Code: "FX", Password: "secret",
	})
	if errFilial != nil {
		t.Fatalf("seed filial: %v", errFilial)
	}
	if _, errMove := tabra.NewTransfers(db).ByQuantity(context.Background(), filialRec.ID, created.ID, 2); errMove != nil {
		t.Fatalf("transfer: %v", errMove)
	}

	h := NewFilialHandler(db)
	w, c := jsonRequest(t, http.MethodDelete, "/api/tabra/filials/1", "")
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatUint(filialRec.ID, 10)}}
	h.Delete(c)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", w.Code, w.Body.String())
	}

	// Stock is back at the depot.
	items, errStock := tabra.NewReports(db).CentralStock(context.Background())
	if errStock != nil {
		t.Fatalf("central stock: %v", errStock)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("unexpected depot stock: %+v", items)
	}
}
