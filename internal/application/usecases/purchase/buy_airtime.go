package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/pricing"
	"github.com/ficore-africa/vas-backend/internal/application/routing"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// Nigerian MSISDN: 0XXXXXXXXXX or +234XXXXXXXXXX, prefixes 070/080/081/090/091.
var phonePattern = regexp.MustCompile(`^(?:\+?234|0)[789][01]\d{8}$`)

func validatePhone(phone string) error {
	if !phonePattern.MatchString(strings.TrimSpace(phone)) {
		return errors.ValidationError{Field: "phone_number", Message: "not a valid Nigerian phone number"}
	}
	return nil
}

// BuyAirtimeUseCase handles airtime purchases. Airtime is the one product
// with a permitted cross-provider fallback.
type BuyAirtimeUseCase struct {
	orchestrator
}

// NewBuyAirtimeUseCase wires the airtime purchase pipeline.
func NewBuyAirtimeUseCase(
	walletRepo ports.WalletRepository,
	reservationRepo ports.ReservationRepository,
	txRepo ports.TransactionRepository,
	taskRepo ports.TaskRepository,
	userRepo ports.UserRepository,
	uow ports.UnitOfWork,
	outbox ports.OutboxRepository,
	monnify ports.BillPayGateway,
	peyflex ports.VendorGateway,
	balanceCache ports.BalanceCache,
	logger *slog.Logger,
) *BuyAirtimeUseCase {
	return &BuyAirtimeUseCase{orchestrator: newOrchestrator(
		walletRepo, reservationRepo, txRepo, taskRepo, userRepo,
		uow, outbox, monnify, peyflex, balanceCache,
		logger.With("usecase", "buy_airtime"),
	)}
}

// Execute validates the command, routes it, and runs the shared pipeline.
func (uc *BuyAirtimeUseCase) Execute(ctx context.Context, cmd dtos.BuyAirtimeCommand) (*dtos.PurchaseResultDTO, error) {
	var verrs errors.ValidationErrors

	amount, err := valueobjects.Parse(cmd.Amount)
	if err != nil {
		verrs.Add("amount", err.Error())
	}
	if err := validatePhone(cmd.PhoneNumber); err != nil {
		verrs.Add("phone_number", "not a valid Nigerian phone number")
	}
	network := strings.ToLower(strings.TrimSpace(cmd.Network))
	if !routing.IsKnownNetwork(network) {
		verrs.Add("network", fmt.Sprintf("unknown network %q", cmd.Network))
	}
	if verrs.HasErrors() {
		return nil, verrs
	}

	if amount.LessThan(pricing.AirtimeMin) || amount.GreaterThan(pricing.AirtimeMax) {
		return nil, errors.NewBusinessRuleViolation(
			"AIRTIME_AMOUNT_OUT_OF_RANGE",
			fmt.Sprintf("airtime amount must be between %s and %s", pricing.AirtimeMin, pricing.AirtimeMax),
			map[string]interface{}{"amount": amount.String()},
		)
	}

	provider, fallbackAllowed, err := routing.RouteAirtime(network)
	if err != nil {
		return nil, err
	}

	return uc.execute(ctx, purchaseIntent{
		userID:      cmd.UserID,
		vasType:     entities.VasTypeAirtime,
		network:     network,
		phoneNumber: strings.TrimSpace(cmd.PhoneNumber),
		amount:      amount,
		subtype:     "airtime",
	}, provider, fallbackAllowed)
}
