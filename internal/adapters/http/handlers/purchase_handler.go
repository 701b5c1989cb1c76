// Package handlers - VAS purchase and catalog handlers.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/adapters/http/common"
	"github.com/ficore-africa/vas-backend/internal/adapters/http/middleware"
	"github.com/ficore-africa/vas-backend/internal/application/dtos"
)

type BuyAirtimeUseCase interface {
	Execute(ctx context.Context, cmd dtos.BuyAirtimeCommand) (*dtos.PurchaseResultDTO, error)
}

type BuyDataUseCase interface {
	Execute(ctx context.Context, cmd dtos.BuyDataCommand) (*dtos.PurchaseResultDTO, error)
}

type CatalogUseCase interface {
	Networks(kind string) ([]string, error)
	PlanTypes(network string) ([]string, error)
	DataPlans(ctx context.Context, network string) ([]dtos.DataPlanDTO, error)
}

// PurchaseHandler serves the purchase and catalog surface.
type PurchaseHandler struct {
	buyAirtime BuyAirtimeUseCase
	buyData    BuyDataUseCase
	catalog    CatalogUseCase
}

// NewPurchaseHandler creates a PurchaseHandler.
func NewPurchaseHandler(buyAirtime BuyAirtimeUseCase, buyData BuyDataUseCase, catalog CatalogUseCase) *PurchaseHandler {
	return &PurchaseHandler{
		buyAirtime: buyAirtime,
		buyData:    buyData,
		catalog:    catalog,
	}
}

// BuyAirtimeRequest is an airtime purchase body.
type BuyAirtimeRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required,ng_phone"`
	Network     string `json:"network" binding:"required,min=3,max=20"`
	Amount      string `json:"amount" binding:"required,money_amount"`
}

// BuyDataRequest is a data purchase body. PlanType decides the provider;
// the plan id alone is not trusted for routing.
type BuyDataRequest struct {
	PhoneNumber  string `json:"phone_number" binding:"required,ng_phone"`
	Network      string `json:"network" binding:"required,min=3,max=20"`
	DataPlanID   string `json:"data_plan_id" binding:"required,max=100"`
	DataPlanName string `json:"data_plan_name" binding:"omitempty,max=200"`
	PlanType     string `json:"plan_type" binding:"required,max=50"`
	Amount       string `json:"amount" binding:"required,money_amount"`
}

// BuyAirtime vends airtime and queues settlement. Replies 202: the debit is
// reserved, not yet committed.
func (h *PurchaseHandler) BuyAirtime(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req BuyAirtimeRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.buyAirtime.Execute(c.Request.Context(), dtos.BuyAirtimeCommand{
		UserID:      userID,
		PhoneNumber: req.PhoneNumber,
		Network:     req.Network,
		Amount:      req.Amount,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, result)
}

// BuyData vends a data plan and queues settlement.
func (h *PurchaseHandler) BuyData(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req BuyDataRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.buyData.Execute(c.Request.Context(), dtos.BuyDataCommand{
		UserID:       userID,
		PhoneNumber:  req.PhoneNumber,
		Network:      req.Network,
		DataPlanID:   req.DataPlanID,
		DataPlanName: req.DataPlanName,
		PlanType:     req.PlanType,
		Amount:       req.Amount,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusAccepted, result)
}

// Networks lists supported networks for airtime or data.
func (h *PurchaseHandler) Networks(c *gin.Context) {
	kind := strings.ToLower(c.Param("kind"))

	networks, err := h.catalog.Networks(kind)
	if err != nil {
		common.BadRequestResponse(c, "Unknown catalog kind: "+kind)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"networks": networks})
}

// PlanTypes lists the plan families available on a network.
func (h *PurchaseHandler) PlanTypes(c *gin.Context) {
	network := strings.ToLower(c.Param("network"))

	planTypes, err := h.catalog.PlanTypes(network)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"network": network, "plan_types": planTypes})
}

// DataPlans lists purchasable plans for a network, with provider fallback.
func (h *PurchaseHandler) DataPlans(c *gin.Context) {
	network := strings.ToLower(c.Param("network"))

	plans, err := h.catalog.DataPlans(c.Request.Context(), network)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"network": network, "plans": plans})
}

// RegisterRoutes mounts the purchase surface.
//
// Routes:
//   - POST /purchase/buy-airtime
//   - POST /purchase/buy-data
//   - GET  /purchase/networks/:kind
//   - GET  /purchase/data-plans/:network
//   - GET  /purchase/data-plan-types/:network
func (h *PurchaseHandler) RegisterRoutes(router *gin.RouterGroup) {
	purchase := router.Group("/purchase")
	{
		buys := purchase.Group("")
		buys.Use(middleware.PurchaseRateLimit())
		{
			buys.POST("/buy-airtime", h.BuyAirtime)
			buys.POST("/buy-data", h.BuyData)
		}

		purchase.GET("/networks/:kind", h.Networks)
		purchase.GET("/data-plans/:network", h.DataPlans)
		purchase.GET("/data-plan-types/:network", h.PlanTypes)
	}
}
