package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledgerwatch/internal/api"
	"github.com/eshaffer321/ledgerwatch/internal/api/dto"
	"github.com/eshaffer321/ledgerwatch/internal/application/service"
	"github.com/eshaffer321/ledgerwatch/internal/domain/dedup"
	"github.com/eshaffer321/ledgerwatch/internal/domain/ledger"
	"github.com/eshaffer321/ledgerwatch/internal/domain/transfer"
	"github.com/eshaffer321/ledgerwatch/internal/infrastructure/storage"
)

// =============================================================================
// API Integration Tests
// =============================================================================
// These tests use real SQLite databases to test the full stack:
// HTTP request → Router → Handlers → Service → Storage → SQLite

func createTestServer(t *testing.T) (*httptest.Server, *storage.Storage) {
	t.Helper()

	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "api_integration.db"))
	require.NoError(t, err)

	svc := service.NewReconcileService(nil, store, quietLogger(), service.WithClock(func() time.Time { return today }))
	cfg := api.DefaultConfig()
	cfg.RateLimitPerSecond = 0
	server := api.NewServer(cfg, svc, nil) // nil logger = use default

	ts := httptest.NewServer(server.Router())
	t.Cleanup(func() {
		ts.Close()
		_ = svc.Close()
		_ = store.Close()
	})
	return ts, store
}

func post(t *testing.T, url, contentType, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResponse[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAPI_Integration_HealthCheck(t *testing.T) {
	ts, _ := createTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeResponse[dto.HealthResponse](t, resp)
	assert.Equal(t, "ok", health.Status)
}

func TestAPI_Integration_StatementImportRoundTrip(t *testing.T) {
	ts, store := createTestServer(t)
	ctx := context.Background()

	account := &ledger.Account{UserID: 7, Name: "Checking", Type: ledger.AccountBank, Balance: decimal.NewFromInt(100)}
	require.NoError(t, store.CreateAccount(ctx, account))
	accountID := strconv.FormatInt(account.ID, 10)

	csv := "Posted Date,Payee,Amount\n05/01/2024,Corner Cafe,-4.50\n05/02/2024,Paycheck,1200.00\n"
	uploadURL := ts.URL + "/api/users/7/accounts/" + accountID + "/imports"

	// First upload: nothing in the ledger yet.
	resp := post(t, uploadURL, "text/csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	batch := decodeResponse[dto.BatchResponse](t, resp)
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 0, batch.Duplicates)

	// Commit the reviewed batch.
	body, err := json.Marshal(dto.BatchRequest{UserID: batch.UserID, AccountID: batch.AccountID, Candidates: batch.Candidates})
	require.NoError(t, err)
	resp = post(t, ts.URL+"/api/imports/confirm", "application/json", string(body))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	confirmed := decodeResponse[dedup.ConfirmResult](t, resp)
	assert.Equal(t, 2, confirmed.Created)

	stored, err := store.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "1295.5", stored.Balance.String())

	// Second upload of the same statement is flagged entirely.
	resp = post(t, uploadURL, "text/csv", csv)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	again := decodeResponse[dto.BatchResponse](t, resp)
	assert.Equal(t, 2, again.Duplicates)
	for _, c := range again.Candidates {
		require.NotNil(t, c.Selected)
		assert.False(t, *c.Selected)
	}

	// The committed rows are searchable.
	searchResp, err := http.Get(ts.URL + "/api/users/7/transactions/search?q=cafe")
	require.NoError(t, err)
	defer searchResp.Body.Close()
	found := decodeResponse[dto.SearchResponse](t, searchResp)
	require.Equal(t, 1, found.Count)
	assert.Equal(t, "Corner Cafe", found.Hits[0].Transaction.Name)
}

func TestAPI_Integration_TransferDetection(t *testing.T) {
	ts, store := createTestServer(t)
	ctx := context.Background()

	checking := &ledger.Account{UserID: 3, Name: "Checking", Type: ledger.AccountBank, Balance: decimal.NewFromInt(2000)}
	card := &ledger.Account{UserID: 3, Name: "Visa", Type: ledger.AccountCreditCard}
	require.NoError(t, store.CreateAccount(ctx, checking))
	require.NoError(t, store.CreateAccount(ctx, card))

	payment := &ledger.Transaction{AccountID: card.ID, Date: today.AddDate(0, 0, -3), Amount: decimal.NewFromInt(500), Name: "PAYMENT - THANK YOU"}
	outflow := &ledger.Transaction{AccountID: checking.ID, Date: today.AddDate(0, 0, -4), Amount: decimal.NewFromInt(-500), Name: "VISA AUTOPAY"}
	require.NoError(t, store.CreateTransaction(ctx, payment))
	require.NoError(t, store.CreateTransaction(ctx, outflow))

	resp := post(t, ts.URL+"/api/users/3/transfers/detect", "application/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := decodeResponse[transfer.Result](t, resp)
	require.Equal(t, 1, result.MatchCount)
	assert.Equal(t, transfer.KindCardPayment, result.Matches[0].Kind)
	require.NotNil(t, result.Matches[0].Destination)
	assert.Equal(t, outflow.ID, result.Matches[0].Destination.ID)

	// A second pass finds nothing new.
	resp = post(t, ts.URL+"/api/users/3/transfers/detect", "application/json", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decodeResponse[transfer.Result](t, resp).MatchCount)
}
