// Package handlers - admin operations: wallet adjustments and PIN resets.
// All routes here sit behind the admin role.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/adapters/http/common"
	"github.com/ficore-africa/vas-backend/internal/adapters/http/middleware"
	"github.com/ficore-africa/vas-backend/internal/application/dtos"
)

type AdminAdjustUseCase interface {
	Execute(ctx context.Context, cmd dtos.AdminAdjustCommand) (*dtos.TransactionDTO, error)
}

type AdminPinResetUseCase interface {
	AdminReset(ctx context.Context, adminID, userID uuid.UUID, note string) error
}

// AdminHandler serves the back-office surface.
type AdminHandler struct {
	adjust   AdminAdjustUseCase
	pinReset AdminPinResetUseCase
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(adjust AdminAdjustUseCase, pinReset AdminPinResetUseCase) *AdminHandler {
	return &AdminHandler{adjust: adjust, pinReset: pinReset}
}

// AdjustRequest is a manual refund or deduction. Reference is the admin's
// idempotency key: replaying the same reference returns the original row.
type AdjustRequest struct {
	UserID    string `json:"user_id" binding:"required,uuid"`
	Amount    string `json:"amount" binding:"required,money_amount"`
	Reference string `json:"reference" binding:"required,min=8,max=100"`
	Reason    string `json:"reason" binding:"required,min=5,max=500"`
	Deduct    bool   `json:"deduct"`
}

// PinResetRequest clears a user's spending PIN.
type PinResetRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	Note   string `json:"note" binding:"required,min=5,max=500"`
}

// Adjust credits or debits a user's wallet outside the purchase flow.
func (h *AdminHandler) Adjust(c *gin.Context) {
	adminID := middleware.GetAuthUserID(c)
	if adminID == uuid.Nil {
		common.UnauthorizedResponse(c, "Admin not authenticated")
		return
	}

	var req AdjustRequest
	if !BindJSON(c, &req) {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.BadRequestResponse(c, "Invalid user id")
		return
	}

	result, err := h.adjust.Execute(c.Request.Context(), dtos.AdminAdjustCommand{
		AdminID:   adminID,
		UserID:    userID,
		Amount:    req.Amount,
		Reference: req.Reference,
		Reason:    req.Reason,
		Deduct:    req.Deduct,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusOK, result)
}

// ResetPin clears a user's PIN so they can set a new one. Audited.
func (h *AdminHandler) ResetPin(c *gin.Context) {
	adminID := middleware.GetAuthUserID(c)
	if adminID == uuid.Nil {
		common.UnauthorizedResponse(c, "Admin not authenticated")
		return
	}

	var req PinResetRequest
	if !BindJSON(c, &req) {
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		common.BadRequestResponse(c, "Invalid user id")
		return
	}

	if err := h.pinReset.AdminReset(c.Request.Context(), adminID, userID, req.Note); err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"pin_reset": true})
}

// RegisterRoutes mounts the admin surface.
//
// Routes:
//   - POST /admin/wallet/adjust
//   - POST /admin/wallet/pin/reset
func (h *AdminHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/wallet/adjust", h.Adjust)
	router.POST("/wallet/pin/reset", h.ResetPin)
}
