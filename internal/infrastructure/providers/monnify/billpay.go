package monnify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Compile-time check
var _ ports.BillPayGateway = (*Client)(nil)

// requeryDelay is how long to wait before the single requery after an
// IN_PROGRESS vend response.
const requeryDelay = 3 * time.Second

// billerRow is the wire shape of a biller.
type billerRow struct {
	BillerCode string `json:"billerCode"`
	Name       string `json:"name"`
	Category   string `json:"category"`
}

// Billers lists billers for a category ("AIRTIME", "DATA_BUNDLE").
func (c *Client) Billers(ctx context.Context, category string) ([]ports.Biller, error) {
	resp, err := c.call(ctx, "GET", "/api/v1/vas/billers?category="+category, nil)
	if err != nil {
		return nil, err
	}
	var rows []billerRow
	if err := json.Unmarshal(resp.ResponseBody, &rows); err != nil {
		return nil, domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			"biller list not understood", err)
	}
	out := make([]ports.Biller, 0, len(rows))
	for _, r := range rows {
		out = append(out, ports.Biller{Code: r.BillerCode, Name: r.Name, Category: r.Category})
	}
	return out, nil
}

// productRow is the wire shape of a biller product.
type productRow struct {
	ProductCode string      `json:"productCode"`
	Name        string      `json:"name"`
	Amount      json.Number `json:"amount"`
}

// BillerProducts lists the products under a biller.
func (c *Client) BillerProducts(ctx context.Context, billerCode string) ([]ports.BillerProduct, error) {
	resp, err := c.call(ctx, "GET", "/api/v1/vas/biller/"+billerCode+"/products", nil)
	if err != nil {
		return nil, err
	}
	var rows []productRow
	if err := json.Unmarshal(resp.ResponseBody, &rows); err != nil {
		return nil, domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			"product list not understood", err)
	}
	out := make([]ports.BillerProduct, 0, len(rows))
	for _, r := range rows {
		amount, err := valueobjects.Parse(r.Amount.String())
		if err != nil {
			continue
		}
		out = append(out, ports.BillerProduct{Code: r.ProductCode, Name: r.Name, Amount: amount})
	}
	return out, nil
}

// DataPlans maps a network's data-bundle products into normalized plans.
func (c *Client) DataPlans(ctx context.Context, network string) ([]ports.DataPlan, error) {
	billers, err := c.Billers(ctx, "DATA_BUNDLE")
	if err != nil {
		return nil, err
	}

	var billerCode string
	for _, b := range billers {
		if strings.EqualFold(b.Name, network) || strings.Contains(strings.ToLower(b.Code), strings.ToLower(network)) {
			billerCode = b.Code
			break
		}
	}
	if billerCode == "" {
		return nil, fmt.Errorf("%w: no data biller for %q", domainErrors.ErrUnknownNetwork, network)
	}

	products, err := c.BillerProducts(ctx, billerCode)
	if err != nil {
		return nil, err
	}

	plans := make([]ports.DataPlan, 0, len(products))
	for _, p := range products {
		plans = append(plans, ports.DataPlan{
			ID:       p.Code,
			Name:     p.Name,
			Network:  strings.ToLower(network),
			PlanType: "regular",
			Amount:   p.Amount,
		})
	}
	return plans, nil
}

// validateRequest / validateResponse cover the pre-vend customer check.
type validateRequest struct {
	BillerCode  string `json:"billerCode"`
	ProductCode string `json:"productCode,omitempty"`
	CustomerID  string `json:"customerId"`
}

type validateResponse struct {
	ValidationReference string `json:"validationReference"`
}

// validateCustomer runs the customer-validation handshake when the product
// requires it. Airtime vends skip it.
func (c *Client) validateCustomer(ctx context.Context, billerCode, productCode, customerID string) (string, error) {
	resp, err := c.call(ctx, "POST", "/api/v1/vas/customer/validate", validateRequest{
		BillerCode:  billerCode,
		ProductCode: productCode,
		CustomerID:  customerID,
	})
	if err != nil {
		return "", err
	}
	var v validateResponse
	if err := json.Unmarshal(resp.ResponseBody, &v); err != nil {
		return "", domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			"validation response not understood", err)
	}
	return v.ValidationReference, nil
}

// vendRequest is the purchase payload. VendReference is our request id, so
// an accidental resend cannot double-vend.
type vendRequest struct {
	VendReference       string `json:"vendReference"`
	BillerCode          string `json:"billerCode"`
	ProductCode         string `json:"productCode,omitempty"`
	CustomerID          string `json:"customerId"`
	Amount              string `json:"amount"`
	ValidationReference string `json:"validationReference,omitempty"`
}

// vendResponse is the vend/requery body.
type vendResponse struct {
	VendStatus           string          `json:"vendStatus"`
	TransactionReference string          `json:"transactionReference"`
	VendReference        string          `json:"vendReference"`
	ProductName          string          `json:"productName"`
	Amount               json.Number     `json:"amount"`
	Commission           json.Number     `json:"commission"`
	Raw                  json.RawMessage `json:"-"`
}

// Vend fulfills one purchase. An IN_PROGRESS answer is requeried once after
// a short delay; still-in-progress counts as failure and the caller aborts
// the purchase (the vendReference makes that safe).
func (c *Client) Vend(ctx context.Context, req ports.VendRequest) (ports.VendResult, error) {
	category := "DATA_BUNDLE"
	if req.IsAirtime {
		category = "AIRTIME"
	}

	billers, err := c.Billers(ctx, category)
	if err != nil {
		return ports.VendResult{}, err
	}
	var billerCode string
	for _, b := range billers {
		if strings.EqualFold(b.Name, req.Network) || strings.Contains(strings.ToLower(b.Code), strings.ToLower(req.Network)) {
			billerCode = b.Code
			break
		}
	}
	if billerCode == "" {
		return ports.VendResult{}, domainErrors.NewProviderError(providerName,
			domainErrors.ProviderRejected, fmt.Sprintf("no %s biller for network %q", category, req.Network), nil)
	}

	validationRef := ""
	if !req.IsAirtime {
		validationRef, err = c.validateCustomer(ctx, billerCode, req.ProductCode, req.PhoneNumber)
		if err != nil {
			return ports.VendResult{}, err
		}
	}

	resp, err := c.call(ctx, "POST", "/api/v1/vas/pay", vendRequest{
		VendReference:       req.Reference,
		BillerCode:          billerCode,
		ProductCode:         req.ProductCode,
		CustomerID:          req.PhoneNumber,
		Amount:              req.Amount.String(),
		ValidationReference: validationRef,
	})
	if err != nil {
		return ports.VendResult{}, err
	}

	result, status, err := c.decodeVend(resp.ResponseBody)
	if err != nil {
		return ports.VendResult{}, err
	}

	if status == "IN_PROGRESS" {
		select {
		case <-ctx.Done():
			return ports.VendResult{}, c.transportError(ctx.Err())
		case <-time.After(requeryDelay):
		}
		result, status, err = c.requery(ctx, req.Reference)
		if err != nil {
			return ports.VendResult{}, err
		}
	}

	if status != "SUCCESS" && status != "DELIVERED" {
		return ports.VendResult{}, domainErrors.NewProviderError(providerName,
			domainErrors.ProviderFailed, fmt.Sprintf("vend ended in status %s", status), nil)
	}
	return result, nil
}

// requery fetches the outcome of a vend by its reference.
func (c *Client) requery(ctx context.Context, vendReference string) (ports.VendResult, string, error) {
	resp, err := c.call(ctx, "GET", "/api/v1/vas/transaction/"+vendReference, nil)
	if err != nil {
		return ports.VendResult{}, "", err
	}
	return c.decodeVend(resp.ResponseBody)
}

func (c *Client) decodeVend(body json.RawMessage) (ports.VendResult, string, error) {
	var v vendResponse
	if err := json.Unmarshal(body, &v); err != nil {
		return ports.VendResult{}, "", domainErrors.NewProviderError(providerName,
			domainErrors.ProviderFailed, "vend response not understood", err)
	}

	amount := valueobjects.Zero()
	if v.Amount != "" {
		amount, _ = valueobjects.Parse(v.Amount.String())
	}
	commission := valueobjects.Zero()
	if v.Commission != "" {
		commission, _ = valueobjects.Parse(v.Commission.String())
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(body, &raw)

	return ports.VendResult{
		TransactionReference: v.TransactionReference,
		VendReference:        v.VendReference,
		ProductName:          v.ProductName,
		VendAmount:           amount,
		Commission:           commission,
		Raw:                  raw,
	}, strings.ToUpper(v.VendStatus), nil
}
