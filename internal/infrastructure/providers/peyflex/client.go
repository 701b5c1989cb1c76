// Package peyflex implements the single-step vendor gateway for the shared
// and gifting data families plus fallback airtime.
//
// The API has one quirk worth naming: some deployments answer a successful
// vend with HTTP 403 and a body that still says "successful". The status
// code alone is therefore not trusted; the body decides.
package peyflex

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

const (
	requestTimeout = 12 * time.Second
	providerName   = "PEYFLEX"
)

// Config holds the Peyflex connection settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client is the Peyflex HTTP client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// Compile-time check
var _ ports.VendorGateway = (*Client)(nil)

// NewClient creates a Peyflex client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger.With("provider", "peyflex"),
	}
}

// networkIDs maps network names to Peyflex numeric ids.
var networkIDs = map[string]int{
	"mtn":     1,
	"airtel":  2,
	"glo":     3,
	"9mobile": 4,
}

type vendRequest struct {
	Network     int    `json:"network"`
	PhoneNumber string `json:"mobile_number"`
	Plan        string `json:"plan,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Reference   string `json:"reference"`
	Airtime     bool   `json:"is_airtime,omitempty"`
}

type vendResponse struct {
	Status    string      `json:"status"`
	Message   string      `json:"message"`
	Reference string      `json:"reference"`
	PlanName  string      `json:"plan_name"`
	Amount    json.Number `json:"amount"`
}

// Vend fulfills one purchase in a single call.
func (c *Client) Vend(ctx context.Context, req ports.VendRequest) (ports.VendResult, error) {
	networkID, ok := networkIDs[strings.ToLower(req.Network)]
	if !ok {
		return ports.VendResult{}, domainErrors.NewProviderError(providerName,
			domainErrors.ProviderRejected, fmt.Sprintf("unknown network %q", req.Network), nil)
	}

	path := "/api/data/"
	payload := vendRequest{
		Network:     networkID,
		PhoneNumber: req.PhoneNumber,
		Plan:        req.ProductCode,
		Reference:   req.Reference,
	}
	if req.IsAirtime {
		path = "/api/topup/"
		payload = vendRequest{
			Network:     networkID,
			PhoneNumber: req.PhoneNumber,
			Amount:      req.Amount.String(),
			Reference:   req.Reference,
			Airtime:     true,
		}
	}

	status, body, err := c.post(ctx, path, payload)
	if err != nil {
		return ports.VendResult{}, err
	}

	var v vendResponse
	decodeErr := json.Unmarshal(body, &v)

	// Success detection: 2xx with an explicit success status or, when the
	// status field is absent, a success keyword in the body. The provider
	// also delivers some successful vends as 403 with a keyword body.
	succeeded := (status < 300 && decodeErr == nil && strings.EqualFold(v.Status, "success")) ||
		(status < 300 && v.Status == "" && hasSuccessKeyword(body)) ||
		(status == http.StatusForbidden && hasSuccessKeyword(body))

	if !succeeded {
		reason := v.Message
		if reason == "" {
			reason = truncate(string(body), 200)
		}
		kind := domainErrors.ProviderRejected
		if status >= 500 {
			kind = domainErrors.ProviderFailed
		}
		return ports.VendResult{}, domainErrors.NewProviderError(providerName, kind, reason, nil)
	}

	amount := req.Amount
	if v.Amount != "" {
		if parsed, err := valueobjects.Parse(v.Amount.String()); err == nil {
			amount = parsed
		}
	}
	reference := v.Reference
	if reference == "" {
		reference = req.Reference
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)

	return ports.VendResult{
		TransactionReference: reference,
		VendReference:        req.Reference,
		ProductName:          v.PlanName,
		VendAmount:           amount,
		Commission:           valueobjects.Zero(), // commission computed from rate, not reported
		Raw:                  raw,
	}, nil
}

type planRow struct {
	ID       json.Number `json:"id"`
	Name     string      `json:"name"`
	PlanType string      `json:"plan_type"`
	Amount   json.Number `json:"amount"`
	Validity string      `json:"validity"`
}

// DataPlans lists the plans for a network.
func (c *Client) DataPlans(ctx context.Context, network string) ([]ports.DataPlan, error) {
	networkID, ok := networkIDs[strings.ToLower(network)]
	if !ok {
		return nil, domainErrors.ErrUnknownNetwork
	}

	status, body, err := c.get(ctx, fmt.Sprintf("/api/network/%d/plans/", networkID))
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			fmt.Sprintf("plan list returned status %d", status), nil)
	}

	var rows []planRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			"plan list not understood", err)
	}

	plans := make([]ports.DataPlan, 0, len(rows))
	for _, r := range rows {
		amount, err := valueobjects.Parse(r.Amount.String())
		if err != nil {
			continue
		}
		planType := r.PlanType
		if planType == "" {
			planType = strings.ToLower(network) + "_share"
		}
		plans = append(plans, ports.DataPlan{
			ID:       r.ID.String(),
			Name:     r.Name,
			Network:  strings.ToLower(network),
			PlanType: planType,
			Amount:   amount,
			Validity: r.Validity,
		})
	}
	return plans, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (int, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, http.NoBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, c.transportError(err)
	}
	return resp.StatusCode, body, nil
}

func (c *Client) transportError(err error) error {
	reason := "provider unreachable"
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		reason = fmt.Sprintf("provider did not answer within %s", requestTimeout)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		reason = fmt.Sprintf("provider did not answer within %s", requestTimeout)
	}
	return domainErrors.NewProviderError(providerName, domainErrors.ProviderUnreachable, reason, err)
}

// successKeywords are the words the provider uses, inconsistently, to report
// a delivered vend.
var successKeywords = []string{"success", "credited", "completed", "approved"}

func hasSuccessKeyword(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
