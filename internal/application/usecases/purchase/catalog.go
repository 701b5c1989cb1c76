package purchase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/application/ports"
	"github.com/ficore-africa/vas-backend/internal/application/routing"
	"github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// CatalogUseCase serves the networks, plan-type and data-plan listings the
// mobile app renders before a purchase. Plans come from the live provider
// catalogs; when the primary catalog is down the alternate's list is served
// so the user still sees something purchasable.
type CatalogUseCase struct {
	monnify ports.BillPayGateway
	peyflex ports.VendorGateway
	logger  *slog.Logger
}

// NewCatalogUseCase wires the catalog reads.
func NewCatalogUseCase(monnify ports.BillPayGateway, peyflex ports.VendorGateway, logger *slog.Logger) *CatalogUseCase {
	return &CatalogUseCase{
		monnify: monnify,
		peyflex: peyflex,
		logger:  logger.With("usecase", "catalog"),
	}
}

// Networks lists the supported networks for a product kind. Both kinds share
// the same four networks today; the kind parameter keeps the API shape
// stable if that changes.
func (uc *CatalogUseCase) Networks(kind string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "airtime", "data":
		return routing.KnownNetworks(), nil
	default:
		return nil, errors.ValidationError{Field: "kind", Message: "kind must be airtime or data"}
	}
}

// PlanTypes lists the plan families for a network.
func (uc *CatalogUseCase) PlanTypes(network string) ([]string, error) {
	return routing.PlanTypes(network)
}

// DataPlans returns the purchasable plans for a network, primary catalog
// first. A primary outage degrades to the alternate catalog rather than an
// empty screen; the purchase path translates plan codes back if needed.
func (uc *CatalogUseCase) DataPlans(ctx context.Context, network string) ([]dtos.DataPlanDTO, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	if !routing.IsKnownNetwork(network) {
		return nil, errors.ErrUnknownNetwork
	}

	plans, err := uc.monnify.DataPlans(ctx, network)
	if err == nil && len(plans) > 0 {
		return dtos.DataPlansToDTOs(plans), nil
	}
	if err != nil {
		uc.logger.WarnContext(ctx, "primary data-plan catalog unavailable, serving alternate",
			"network", network, "error", err)
	}

	alt, altErr := uc.peyflex.DataPlans(ctx, network)
	if altErr != nil {
		if err != nil {
			return nil, err
		}
		return nil, altErr
	}
	return dtos.DataPlansToDTOs(alt), nil
}
