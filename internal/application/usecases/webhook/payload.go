package webhook

import (
	"encoding/json"
	"strings"

	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// fundingEvent is the normalized view of a funding webhook. The provider
// sends two shapes over time: an event envelope with the transaction under
// eventData, and a legacy flat payload. Both normalize to this.
type fundingEvent struct {
	EventType            string
	TransactionReference string
	PaymentReference     string
	PaymentStatus        string
	AmountPaid           valueobjects.Money
	SettlementAmount     valueobjects.Money
	AccountReference     string
	CustomerEmail        string
	CustomerName         string
	Raw                  map[string]interface{}
}

// transactionBody is the wire shape of the transaction object, shared by
// both envelope styles.
type transactionBody struct {
	TransactionReference string      `json:"transactionReference"`
	PaymentReference     string      `json:"paymentReference"`
	PaymentStatus        string      `json:"paymentStatus"`
	AmountPaid           json.Number `json:"amountPaid"`
	SettlementAmount     json.Number `json:"settlementAmount"`
	AccountReference     string      `json:"accountReference"`
	Customer             struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer"`
	Product struct {
		Reference string `json:"reference"`
		Type      string `json:"type"`
	} `json:"product"`
	DestinationAccountInformation struct {
		AccountNumber string `json:"accountNumber"`
	} `json:"destinationAccountInformation"`
}

type eventEnvelope struct {
	EventType string          `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
}

// parseFundingEvent decodes either payload shape into a fundingEvent.
func parseFundingEvent(body []byte) (*fundingEvent, error) {
	var envelope eventEnvelope
	txBytes := body
	eventType := ""
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.EventData) > 0 {
		txBytes = envelope.EventData
		eventType = envelope.EventType
	}

	var tx transactionBody
	if err := json.Unmarshal(txBytes, &tx); err != nil {
		return nil, err
	}
	if tx.TransactionReference == "" {
		return nil, errors.ValidationError{Field: "transactionReference", Message: "missing transaction reference"}
	}

	amountPaid, err := parseWireAmount(tx.AmountPaid)
	if err != nil {
		return nil, errors.ValidationError{Field: "amountPaid", Message: err.Error()}
	}
	settlement := valueobjects.Zero()
	if tx.SettlementAmount != "" {
		if settlement, err = parseWireAmount(tx.SettlementAmount); err != nil {
			settlement = valueobjects.Zero()
		}
	}

	// The reserved-account reference travels under product.reference on the
	// envelope shape and accountReference on the flat one.
	accountRef := tx.Product.Reference
	if accountRef == "" {
		accountRef = tx.AccountReference
	}

	var raw map[string]interface{}
	_ = json.Unmarshal(txBytes, &raw)

	return &fundingEvent{
		EventType:            eventType,
		TransactionReference: tx.TransactionReference,
		PaymentReference:     tx.PaymentReference,
		PaymentStatus:        strings.ToUpper(strings.TrimSpace(tx.PaymentStatus)),
		AmountPaid:           amountPaid,
		SettlementAmount:     settlement,
		AccountReference:     strings.TrimSpace(accountRef),
		CustomerEmail:        strings.ToLower(strings.TrimSpace(tx.Customer.Email)),
		CustomerName:         tx.Customer.Name,
		Raw:                  raw,
	}, nil
}

func parseWireAmount(n json.Number) (valueobjects.Money, error) {
	if n == "" {
		return valueobjects.Zero(), nil
	}
	return valueobjects.Parse(n.String())
}

// isPaid reports whether the event describes completed money. Anything else
// (reversed, failed, pending) is acknowledged and dropped. Some deliveries
// omit paymentStatus; for those the envelope event type is the only signal.
func (e *fundingEvent) isPaid() bool {
	if e.PaymentStatus == "PAID" {
		return true
	}
	return e.PaymentStatus == "" && e.EventType == "SUCCESSFUL_TRANSACTION"
}
