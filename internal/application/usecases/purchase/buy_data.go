package purchase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/routing"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
	"github.com/ficore-africa/vas-backend/internal/domain/valueobjects"
)

// BuyDataUseCase handles data-bundle purchases. The user's plan-type choice
// is authoritative for provider selection; there is no cross-provider
// fallback for data because plans are not interchangeable.
type BuyDataUseCase struct {
	orchestrator
}

// NewBuyDataUseCase wires the data purchase pipeline.
func NewBuyDataUseCase(
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
) *BuyDataUseCase {
	return &BuyDataUseCase{orchestrator: newOrchestrator(
		walletRepo, reservationRepo, txRepo, taskRepo, userRepo,
		uow, outbox, monnify, peyflex, balanceCache,
		logger.With("usecase", "buy_data"),
	)}
}

// Execute validates the command, resolves the provider from the plan type,
// normalizes the plan code for that provider, and runs the shared pipeline.
func (uc *BuyDataUseCase) Execute(ctx context.Context, cmd dtos.BuyDataCommand) (*dtos.PurchaseResultDTO, error) {
	var verrs errors.ValidationErrors

	amount, err := valueobjects.Parse(cmd.Amount)
	if err != nil {
		verrs.Add("amount", err.Error())
	} else if !amount.IsPositive() {
		verrs.Add("amount", "amount must be positive")
	}
	if err := validatePhone(cmd.PhoneNumber); err != nil {
		verrs.Add("phone_number", "not a valid Nigerian phone number")
	}
	network := strings.ToLower(strings.TrimSpace(cmd.Network))
	if !routing.IsKnownNetwork(network) {
		verrs.Add("network", fmt.Sprintf("unknown network %q", cmd.Network))
	}
	if strings.TrimSpace(cmd.DataPlanID) == "" {
		verrs.Add("data_plan_id", "data plan is required")
	}
	if verrs.HasErrors() {
		return nil, verrs
	}

	provider, err := routing.RouteDataPlan(cmd.PlanType, network)
	if err != nil {
		return nil, err
	}

	planCode, err := normalizePlanCode(cmd.DataPlanID, network, provider)
	if err != nil {
		return nil, err
	}

	return uc.execute(ctx, purchaseIntent{
		userID:       cmd.UserID,
		vasType:      entities.VasTypeData,
		network:      network,
		phoneNumber:  strings.TrimSpace(cmd.PhoneNumber),
		amount:       amount,
		planType:     strings.ToLower(strings.TrimSpace(cmd.PlanType)),
		dataPlanID:   planCode,
		dataPlanName: strings.TrimSpace(cmd.DataPlanName),
		subtype:      "data",
	}, provider, false)
}

// normalizePlanCode translates a plan code into the routed provider's shape
// when the client picked it from the other provider's catalog (the catalog
// endpoint serves a fallback list when the primary is down).
func normalizePlanCode(code, network string, target entities.Provider) (string, error) {
	source := detectPlanCodeProvider(code)
	if source == target {
		return code, nil
	}
	return routing.TranslatePlanCode(code, network, source, target)
}

// detectPlanCodeProvider guesses the provider a plan code came from by its
// shape. Monnify product codes are uppercase with a DATA segment.
func detectPlanCodeProvider(code string) entities.Provider {
	if strings.Contains(strings.ToUpper(code), "-DATA-") {
		return entities.ProviderMonnify
	}
	return entities.ProviderPeyflex
}
