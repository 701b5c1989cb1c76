package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	domerrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
)

type mockBuyAirtimeUseCase struct {
	ExecuteFn func(ctx context.Context, cmd dtos.BuyAirtimeCommand) (*dtos.PurchaseResultDTO, error)
}

func (m *mockBuyAirtimeUseCase) Execute(ctx context.Context, cmd dtos.BuyAirtimeCommand) (*dtos.PurchaseResultDTO, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, cmd)
	}
	return nil, nil
}

type mockBuyDataUseCase struct {
	ExecuteFn func(ctx context.Context, cmd dtos.BuyDataCommand) (*dtos.PurchaseResultDTO, error)
}

func (m *mockBuyDataUseCase) Execute(ctx context.Context, cmd dtos.BuyDataCommand) (*dtos.PurchaseResultDTO, error) {
	if m.ExecuteFn != nil {
		return m.ExecuteFn(ctx, cmd)
	}
	return nil, nil
}

type mockCatalogUseCase struct {
	NetworksFn  func(kind string) ([]string, error)
	PlanTypesFn func(network string) ([]string, error)
	DataPlansFn func(ctx context.Context, network string) ([]dtos.DataPlanDTO, error)
}

func (m *mockCatalogUseCase) Networks(kind string) ([]string, error) {
	if m.NetworksFn != nil {
		return m.NetworksFn(kind)
	}
	return []string{"mtn", "airtel", "glo", "9mobile"}, nil
}

func (m *mockCatalogUseCase) PlanTypes(network string) ([]string, error) {
	if m.PlanTypesFn != nil {
		return m.PlanTypesFn(network)
	}
	return nil, nil
}

func (m *mockCatalogUseCase) DataPlans(ctx context.Context, network string) ([]dtos.DataPlanDTO, error) {
	if m.DataPlansFn != nil {
		return m.DataPlansFn(ctx, network)
	}
	return nil, nil
}

func setupPurchaseTestRouter(handler *PurchaseHandler, userID uuid.UUID) *gin.Engine {
	SetupValidator()
	router := gin.New()
	group := router.Group("/api/v1")
	if userID != uuid.Nil {
		group.Use(asUser(userID))
	}
	handler.RegisterRoutes(group)
	return router
}

func TestPurchaseHandler_BuyAirtime(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	t.Run("Accepted", func(t *testing.T) {
		mockUseCase := &mockBuyAirtimeUseCase{
			ExecuteFn: func(_ context.Context, cmd dtos.BuyAirtimeCommand) (*dtos.PurchaseResultDTO, error) {
				assert.Equal(t, userID, cmd.UserID)
				assert.Equal(t, "08031234567", cmd.PhoneNumber)
				assert.Equal(t, "mtn", cmd.Network)
				assert.Equal(t, "500", cmd.Amount)
				return &dtos.PurchaseResultDTO{
					TransactionID:    uuid.NewString(),
					ProcessingStatus: "QUEUED",
					Provider:         "MONNIFY",
					AvailableBalance: "500.00",
				}, nil
			},
		}
		handler := NewPurchaseHandler(mockUseCase, &mockBuyDataUseCase{}, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, userID)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/purchase/buy-airtime", gin.H{
			"phone_number": "08031234567",
			"network":      "mtn",
			"amount":       "500",
		}))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Contains(t, w.Body.String(), "QUEUED")
	})

	t.Run("BadPhoneRejectedBeforeUseCase", func(t *testing.T) {
		called := false
		mockUseCase := &mockBuyAirtimeUseCase{
			ExecuteFn: func(_ context.Context, _ dtos.BuyAirtimeCommand) (*dtos.PurchaseResultDTO, error) {
				called = true
				return nil, nil
			},
		}
		handler := NewPurchaseHandler(mockUseCase, &mockBuyDataUseCase{}, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, userID)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/purchase/buy-airtime", gin.H{
			"phone_number": "12345",
			"network":      "mtn",
			"amount":       "500",
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "phone_number")
		assert.False(t, called)
	})

	t.Run("InsufficientFundsIs422", func(t *testing.T) {
		mockUseCase := &mockBuyAirtimeUseCase{
			ExecuteFn: func(_ context.Context, _ dtos.BuyAirtimeCommand) (*dtos.PurchaseResultDTO, error) {
				return nil, domerrors.ErrInsufficientFunds
			},
		}
		handler := NewPurchaseHandler(mockUseCase, &mockBuyDataUseCase{}, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, userID)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/purchase/buy-airtime", gin.H{
			"phone_number": "08031234567",
			"network":      "mtn",
			"amount":       "500",
		}))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Contains(t, w.Body.String(), "INSUFFICIENT_FUNDS")
	})

	t.Run("DuplicateIs409", func(t *testing.T) {
		mockUseCase := &mockBuyAirtimeUseCase{
			ExecuteFn: func(_ context.Context, _ dtos.BuyAirtimeCommand) (*dtos.PurchaseResultDTO, error) {
				return nil, domerrors.ErrRecentDuplicate
			},
		}
		handler := NewPurchaseHandler(mockUseCase, &mockBuyDataUseCase{}, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, userID)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/purchase/buy-airtime", gin.H{
			"phone_number": "08031234567",
			"network":      "mtn",
			"amount":       "500",
		}))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "DUPLICATE_REQUEST")
	})

	t.Run("UnauthenticatedIs401", func(t *testing.T) {
		handler := NewPurchaseHandler(&mockBuyAirtimeUseCase{}, &mockBuyDataUseCase{}, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, uuid.Nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/purchase/buy-airtime", gin.H{
			"phone_number": "08031234567",
			"network":      "mtn",
			"amount":       "500",
		}))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPurchaseHandler_BuyData(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	t.Run("Accepted", func(t *testing.T) {
		mockUseCase := &mockBuyDataUseCase{
			ExecuteFn: func(_ context.Context, cmd dtos.BuyDataCommand) (*dtos.PurchaseResultDTO, error) {
				assert.Equal(t, "mtn-1gb-monthly", cmd.DataPlanID)
				assert.Equal(t, "sme", cmd.PlanType)
				return &dtos.PurchaseResultDTO{ProcessingStatus: "QUEUED", Provider: "PEYFLEX"}, nil
			},
		}
		handler := NewPurchaseHandler(&mockBuyAirtimeUseCase{}, mockUseCase, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, userID)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/purchase/buy-data", gin.H{
			"phone_number": "08031234567",
			"network":      "mtn",
			"data_plan_id": "mtn-1gb-monthly",
			"plan_type":    "sme",
			"amount":       "1000",
		}))

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("ProviderDownIs503WithAlternatives", func(t *testing.T) {
		mockUseCase := &mockBuyDataUseCase{
			ExecuteFn: func(_ context.Context, _ dtos.BuyDataCommand) (*dtos.PurchaseResultDTO, error) {
				err := domerrors.NewProviderError("PEYFLEX", domerrors.ProviderUnavailable, "sme vending is down", nil)
				err.Alternatives = []string{"gifting"}
				return nil, err
			},
		}
		handler := NewPurchaseHandler(&mockBuyAirtimeUseCase{}, mockUseCase, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, userID)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/purchase/buy-data", gin.H{
			"phone_number": "08031234567",
			"network":      "mtn",
			"data_plan_id": "mtn-1gb-monthly",
			"plan_type":    "sme",
			"amount":       "1000",
		}))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "gifting")
	})

	t.Run("MissingPlanTypeIs400", func(t *testing.T) {
		handler := NewPurchaseHandler(&mockBuyAirtimeUseCase{}, &mockBuyDataUseCase{}, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, userID)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/v1/purchase/buy-data", gin.H{
			"phone_number": "08031234567",
			"network":      "mtn",
			"data_plan_id": "mtn-1gb-monthly",
			"amount":       "1000",
		}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "plan_type")
	})
}

func TestPurchaseHandler_Catalog(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Networks", func(t *testing.T) {
		handler := NewPurchaseHandler(&mockBuyAirtimeUseCase{}, &mockBuyDataUseCase{}, &mockCatalogUseCase{})
		router := setupPurchaseTestRouter(handler, uuid.Nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/purchase/networks/airtime", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "9mobile")
	})

	t.Run("UnknownKindIs400", func(t *testing.T) {
		catalog := &mockCatalogUseCase{
			NetworksFn: func(_ string) ([]string, error) {
				return nil, domerrors.ErrUnknownNetwork
			},
		}
		handler := NewPurchaseHandler(&mockBuyAirtimeUseCase{}, &mockBuyDataUseCase{}, catalog)
		router := setupPurchaseTestRouter(handler, uuid.Nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/purchase/networks/electricity", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("DataPlans", func(t *testing.T) {
		catalog := &mockCatalogUseCase{
			DataPlansFn: func(_ context.Context, network string) ([]dtos.DataPlanDTO, error) {
				assert.Equal(t, "mtn", network)
				return []dtos.DataPlanDTO{
					{ID: "plan-1", Name: "1GB Monthly", Network: "mtn", PlanType: "regular", Amount: "300.00"},
				}, nil
			},
		}
		handler := NewPurchaseHandler(&mockBuyAirtimeUseCase{}, &mockBuyDataUseCase{}, catalog)
		router := setupPurchaseTestRouter(handler, uuid.Nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/purchase/data-plans/MTN", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "1GB Monthly")
	})
}
