package monnify

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	domainErrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// Compile-time check
var _ ports.AccountProvisioner = (*Client)(nil)

// reservedAccountRequest provisions dedicated deposit accounts for a user.
// The accountReference is what funding webhooks carry back.
type reservedAccountRequest struct {
	AccountReference     string `json:"accountReference"`
	AccountName          string `json:"accountName"`
	CurrencyCode         string `json:"currencyCode"`
	ContractCode         string `json:"contractCode"`
	CustomerEmail        string `json:"customerEmail"`
	CustomerName         string `json:"customerName"`
	GetAllAvailableBanks bool   `json:"getAllAvailableBanks"`
}

type reservedAccountResponse struct {
	AccountReference string `json:"accountReference"`
	Accounts         []struct {
		BankName      string `json:"bankName"`
		BankCode      string `json:"bankCode"`
		AccountNumber string `json:"accountNumber"`
		AccountName   string `json:"accountName"`
	} `json:"accounts"`
}

// CreateReservedAccounts provisions the reserved bank accounts. Idempotent
// on the provider side per accountReference: repeating the call returns the
// same accounts.
func (c *Client) CreateReservedAccounts(ctx context.Context, userID uuid.UUID, accountReference, accountName, email string) ([]entities.ReservedAccount, error) {
	resp, err := c.call(ctx, "POST", "/api/v2/bank-transfer/reserved-accounts", reservedAccountRequest{
		AccountReference:     accountReference,
		AccountName:          accountName,
		CurrencyCode:         "NGN",
		ContractCode:         c.cfg.ContractCode,
		CustomerEmail:        email,
		CustomerName:         accountName,
		GetAllAvailableBanks: true,
	})
	if err != nil {
		return nil, err
	}

	var body reservedAccountResponse
	if err := json.Unmarshal(resp.ResponseBody, &body); err != nil {
		return nil, domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			"reserved account response not understood", err)
	}

	accounts := make([]entities.ReservedAccount, 0, len(body.Accounts))
	for _, a := range body.Accounts {
		accounts = append(accounts, entities.ReservedAccount{
			BankName:      a.BankName,
			BankCode:      a.BankCode,
			AccountNumber: a.AccountNumber,
			AccountName:   a.AccountName,
		})
	}
	if len(accounts) == 0 {
		return nil, domainErrors.NewProviderError(providerName, domainErrors.ProviderFailed,
			"provider returned no reserved accounts", nil)
	}
	return accounts, nil
}
