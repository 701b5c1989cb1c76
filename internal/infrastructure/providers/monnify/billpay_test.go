package monnify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// memTokenCache is an in-process stand-in for the redis token cache.
type memTokenCache struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemTokenCache() *memTokenCache {
	return &memTokenCache{tokens: make(map[string]string)}
}

func (m *memTokenCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[key], nil
}

func (m *memTokenCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = value
	return nil
}

// fakeMonnify is a scriptable Monnify endpoint.
type fakeMonnify struct {
	t *testing.T

	logins       int
	vendPayloads []map[string]interface{}
	validates    int

	vendStatus    string // status returned by /vas/pay
	requeryStatus string // status returned by requery
	rejectVend    bool
}

func (f *fakeMonnify) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins++
		assert.Contains(f.t, r.Header.Get("Authorization"), "Basic ")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"requestSuccessful": true,
			"responseBody":      map[string]interface{}{"accessToken": "fresh-token", "expiresIn": 3600},
		})
	})

	mux.HandleFunc("/api/v1/vas/billers", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"requestSuccessful": false,
				"responseMessage":   "token expired",
			})
			return
		}
		category := r.URL.Query().Get("category")
		writeEnvelope(w, []map[string]string{
			{"billerCode": "MTN_" + category, "name": "MTN", "category": category},
			{"billerCode": "AIRTEL_" + category, "name": "Airtel", "category": category},
		})
	})

	mux.HandleFunc("/api/v1/vas/biller/", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []map[string]interface{}{
			{"productCode": "MTN-DATA-1GB-30D", "name": "1GB Monthly", "amount": 300},
			{"productCode": "MTN-DATA-2GB-30D", "name": "2GB Monthly", "amount": 500},
		})
	})

	mux.HandleFunc("/api/v1/vas/customer/validate", func(w http.ResponseWriter, r *http.Request) {
		f.validates++
		writeEnvelope(w, map[string]string{"validationReference": "val-ref-77"})
	})

	mux.HandleFunc("/api/v1/vas/pay", func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))
		f.vendPayloads = append(f.vendPayloads, payload)

		if f.rejectVend {
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"requestSuccessful": false,
				"responseMessage":   "insufficient float on biller",
			})
			return
		}
		writeEnvelope(w, map[string]interface{}{
			"vendStatus":           f.vendStatus,
			"transactionReference": "MNFY-TX-1",
			"vendReference":        payload["vendReference"],
			"productName":          "MTN Airtime",
			"amount":               200,
			"commission":           3,
		})
	})

	mux.HandleFunc("/api/v1/vas/transaction/", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, map[string]interface{}{
			"vendStatus":           f.requeryStatus,
			"transactionReference": "MNFY-TX-1",
			"productName":          "MTN Airtime",
			"amount":               200,
		})
	})

	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeEnvelope(w http.ResponseWriter, responseBody interface{}) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"requestSuccessful": true,
		"responseBody":      responseBody,
	})
}

func newTestClient(t *testing.T, baseURL string, tokens ports.TokenCache) *Client {
	t.Helper()
	return NewClient(Config{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		SecretKey:    "test-secret",
		ContractCode: "100693167467",
	}, tokens, slog.Default())
}

func TestVend_Airtime(t *testing.T) {
	fake := &fakeMonnify{t: t, vendStatus: "SUCCESS"}
	srv := fake.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL, newMemTokenCache())

	result, err := client.Vend(context.Background(), ports.VendRequest{
		Reference:   "req-123",
		Network:     "mtn",
		PhoneNumber: "08031234567",
		Amount:      valueobjects.FromNaira(200),
		IsAirtime:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "MNFY-TX-1", result.TransactionReference)
	assert.Equal(t, "req-123", result.VendReference)
	assert.Equal(t, int64(30000), result.VendAmount.Kobo())
	assert.Equal(t, 0, fake.validates, "airtime skips customer validation")

	require.Len(t, fake.vendPayloads, 1)
	payload := fake.vendPayloads[0]
	assert.Equal(t, "req-123", payload["vendReference"])
	assert.Equal(t, "MTN_AIRTIME", payload["billerCode"])
	assert.Equal(t, "08031234567", payload["customerId"])
}

func TestVend_DataValidatesCustomer(t *testing.T) {
	fake := &fakeMonnify{t: t, vendStatus: "SUCCESS"}
	srv := fake.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL, newMemTokenCache())

	_, err := client.Vend(context.Background(), ports.VendRequest{
		Reference:   "req-456",
		Network:     "mtn",
		PhoneNumber: "08031234567",
		Amount:      valueobjects.FromNaira(300),
		ProductCode: "MTN-DATA-1GB-30D",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, fake.validates)
	require.Len(t, fake.vendPayloads, 1)
	assert.Equal(t, "val-ref-77", fake.vendPayloads[0]["validationReference"])
	assert.Equal(t, "MTN-DATA-1GB-30D", fake.vendPayloads[0]["productCode"])
}

func TestVend_InProgressIsRequeried(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the requery delay")
	}

	fake := &fakeMonnify{t: t, vendStatus: "IN_PROGRESS", requeryStatus: "DELIVERED"}
	srv := fake.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL, newMemTokenCache())

	result, err := client.Vend(context.Background(), ports.VendRequest{
		Reference:   "req-789",
		Network:     "mtn",
		PhoneNumber: "08031234567",
		Amount:      valueobjects.FromNaira(200),
		IsAirtime:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "MNFY-TX-1", result.TransactionReference)
}

func TestVend_StuckInProgressFails(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the requery delay")
	}

	fake := &fakeMonnify{t: t, vendStatus: "IN_PROGRESS", requeryStatus: "IN_PROGRESS"}
	srv := fake.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL, newMemTokenCache())

	_, err := client.Vend(context.Background(), ports.VendRequest{
		Reference:   "req-790",
		Network:     "mtn",
		PhoneNumber: "08031234567",
		Amount:      valueobjects.FromNaira(200),
		IsAirtime:   true,
	})

	pe, ok := domainErrors.IsProviderError(err)
	require.True(t, ok, "error = %v", err)
	assert.Equal(t, domainErrors.ProviderFailed, pe.Kind)
}

func TestVend_RejectedByProvider(t *testing.T) {
	fake := &fakeMonnify{t: t, rejectVend: true}
	srv := fake.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL, newMemTokenCache())

	_, err := client.Vend(context.Background(), ports.VendRequest{
		Reference:   "req-791",
		Network:     "mtn",
		PhoneNumber: "08031234567",
		Amount:      valueobjects.FromNaira(200),
		IsAirtime:   true,
	})

	pe, ok := domainErrors.IsProviderError(err)
	require.True(t, ok, "error = %v", err)
	assert.Equal(t, domainErrors.ProviderRejected, pe.Kind)
	assert.Contains(t, pe.Reason, "insufficient float")
}

func TestVend_UnknownNetworkRejected(t *testing.T) {
	fake := &fakeMonnify{t: t, vendStatus: "SUCCESS"}
	srv := fake.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL, newMemTokenCache())

	_, err := client.Vend(context.Background(), ports.VendRequest{
		Reference:   "req-792",
		Network:     "vodafone",
		PhoneNumber: "08031234567",
		Amount:      valueobjects.FromNaira(200),
		IsAirtime:   true,
	})

	pe, ok := domainErrors.IsProviderError(err)
	require.True(t, ok, "error = %v", err)
	assert.Equal(t, domainErrors.ProviderRejected, pe.Kind)
	assert.Empty(t, fake.vendPayloads, "no vend attempt without a biller")
}

func TestAccessToken_CachedTokenSkipsLogin(t *testing.T) {
	fake := &fakeMonnify{t: t}
	srv := fake.server()
	defer srv.Close()

	tokens := newMemTokenCache()
	tokens.tokens[tokenCacheKey] = "fresh-token"
	client := newTestClient(t, srv.URL, tokens)

	_, err := client.Billers(context.Background(), "AIRTIME")
	require.NoError(t, err)
	assert.Equal(t, 0, fake.logins)
}

func TestCall_ReauthenticatesOn401(t *testing.T) {
	fake := &fakeMonnify{t: t}
	srv := fake.server()
	defer srv.Close()

	// A stale token forces a 401 on the first attempt; the client must drop
	// it, log in again, and retry once.
	tokens := newMemTokenCache()
	tokens.tokens[tokenCacheKey] = "stale-token"
	client := newTestClient(t, srv.URL, tokens)

	billers, err := client.Billers(context.Background(), "AIRTIME")
	require.NoError(t, err)
	assert.Len(t, billers, 2)
	assert.Equal(t, 1, fake.logins)
	assert.Equal(t, "fresh-token", tokens.tokens[tokenCacheKey])
}

func TestDataPlans(t *testing.T) {
	fake := &fakeMonnify{t: t}
	srv := fake.server()
	defer srv.Close()

	client := newTestClient(t, srv.URL, newMemTokenCache())

	plans, err := client.DataPlans(context.Background(), "mtn")
	require.NoError(t, err)

	require.Len(t, plans, 2)
	assert.Equal(t, "MTN-DATA-1GB-30D", plans[0].ID)
	assert.Equal(t, "mtn", plans[0].Network)
	assert.Equal(t, "regular", plans[0].PlanType)
	assert.Equal(t, int64(30000), plans[0].Amount.Kobo())
}

func TestVend_ProviderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	client := newTestClient(t, srv.URL, newMemTokenCache())

	_, err := client.Billers(context.Background(), "AIRTIME")
	pe, ok := domainErrors.IsProviderError(err)
	require.True(t, ok, "error = %v", err)
	assert.Equal(t, domainErrors.ProviderUnreachable, pe.Kind)
}
