// Package handlers - wallet HTTP handlers: account creation, balance views,
// spending PIN, and transaction history.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ficore-africa/vas-backend/internal/adapters/http/common"
	"github.com/ficore-africa/vas-backend/internal/adapters/http/middleware"
	"github.com/ficore-africa/vas-backend/internal/application/dtos"
	"github.com/ficore-africa/vas-backend/internal/domain/entities"
)

// Use-case contracts, narrowed to what this handler calls.

type CreateWalletUseCase interface {
	Execute(ctx context.Context, cmd dtos.CreateWalletCommand) (*dtos.WalletDTO, error)
}

type BalanceUseCase interface {
	Wallet(ctx context.Context, userID uuid.UUID) (*dtos.WalletDTO, error)
	Balance(ctx context.Context, userID uuid.UUID) (*dtos.BalanceDTO, error)
	CurrentBalance(ctx context.Context, userID uuid.UUID) (*dtos.BalanceDTO, error)
}

type PinUseCase interface {
	Setup(ctx context.Context, cmd dtos.PinCommand) error
	Validate(ctx context.Context, cmd dtos.PinCommand) error
	Change(ctx context.Context, cmd dtos.PinCommand) error
}

type ListTransactionsUseCase interface {
	Execute(ctx context.Context, userID uuid.UUID, vasType *entities.VasType, status *entities.VasStatus, page, perPage int) (*dtos.TransactionPageDTO, error)
}

type SyncTransactionsUseCase interface {
	Execute(ctx context.Context, cmd dtos.SyncTransactionsCommand) (*dtos.SyncResultDTO, error)
}

// WalletHandler serves the wallet surface.
type WalletHandler struct {
	createWallet CreateWalletUseCase
	balance      BalanceUseCase
	pin          PinUseCase
	listTx       ListTransactionsUseCase
	syncTx       SyncTransactionsUseCase
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(
	createWallet CreateWalletUseCase,
	balance BalanceUseCase,
	pin PinUseCase,
	listTx ListTransactionsUseCase,
	syncTx SyncTransactionsUseCase,
) *WalletHandler {
	return &WalletHandler{
		createWallet: createWallet,
		balance:      balance,
		pin:          pin,
		listTx:       listTx,
		syncTx:       syncTx,
	}
}

// CreateWalletRequest carries the display name and email forwarded to the
// reserved-account provisioning call.
type CreateWalletRequest struct {
	AccountName string `json:"account_name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
}

// PinRequest is a single-PIN operation body.
type PinRequest struct {
	Pin string `json:"pin" binding:"required,pin"`
}

// ChangePinRequest carries old and new PIN.
type ChangePinRequest struct {
	Pin    string `json:"pin" binding:"required,pin"`
	NewPin string `json:"new_pin" binding:"required,pin"`
}

// SyncTransactionsRequest is the client's reference snapshot.
type SyncTransactionsRequest struct {
	References []string `json:"references" binding:"required,max=200"`
}

// CreateWallet provisions the wallet and its reserved deposit accounts.
// Idempotent: repeating the call returns the existing wallet.
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req CreateWalletRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.createWallet.Execute(c.Request.Context(), dtos.CreateWalletCommand{
		UserID:      userID,
		AccountName: req.AccountName,
		Email:       req.Email,
	})
	if err != nil {
		// Provisioning can fail after the wallet row exists; the wallet is
		// still returned so the client can retry account creation later.
		if result != nil {
			common.Success(c, http.StatusAccepted, result)
			return
		}
		common.HandleDomainError(c, err)
		return
	}

	common.Success(c, http.StatusCreated, result)
}

// GetWallet returns the full wallet view.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	result, err := h.balance.Wallet(c.Request.Context(), userID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, result)
}

// GetBalance returns the authoritative balance from the database.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	result, err := h.balance.Balance(c.Request.Context(), userID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, result)
}

// GetCurrentBalance is the cache-first polling variant used while a purchase
// is settling.
func (h *WalletHandler) GetCurrentBalance(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	result, err := h.balance.CurrentBalance(c.Request.Context(), userID)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, result)
}

// SetupPin sets the spending PIN for the first time.
func (h *WalletHandler) SetupPin(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req PinRequest
	if !BindJSON(c, &req) {
		return
	}

	if err := h.pin.Setup(c.Request.Context(), dtos.PinCommand{UserID: userID, Pin: req.Pin}); err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"pin_set": true})
}

// ValidatePin checks the PIN, counting failed attempts toward the lockout.
func (h *WalletHandler) ValidatePin(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req PinRequest
	if !BindJSON(c, &req) {
		return
	}

	if err := h.pin.Validate(c.Request.Context(), dtos.PinCommand{UserID: userID, Pin: req.Pin}); err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"valid": true})
}

// ChangePin replaces the PIN after validating the current one.
func (h *WalletHandler) ChangePin(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req ChangePinRequest
	if !BindJSON(c, &req) {
		return
	}

	if err := h.pin.Change(c.Request.Context(), dtos.PinCommand{UserID: userID, Pin: req.Pin, NewPin: req.NewPin}); err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"pin_changed": true})
}

// ListTransactions returns the user's ledger, newest first.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	pagination := ParsePagination(c)

	var vasType *entities.VasType
	if t := c.Query("type"); t != "" {
		parsed := entities.VasType(t)
		if !parsed.IsValid() {
			common.BadRequestResponse(c, "Unknown transaction type: "+t)
			return
		}
		vasType = &parsed
	}
	var status *entities.VasStatus
	if s := c.Query("status"); s != "" {
		parsed := entities.VasStatus(s)
		if !parsed.IsValid() {
			common.BadRequestResponse(c, "Unknown transaction status: "+s)
			return
		}
		status = &parsed
	}

	result, err := h.listTx.Execute(c.Request.Context(), userID, vasType, status, pagination.Page, pagination.PerPage)
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}

	common.SuccessWithMeta(c, http.StatusOK, result, BuildMeta(pagination, result.Total))
}

// SyncTransactions reconciles a client-side snapshot against the ledger.
func (h *WalletHandler) SyncTransactions(c *gin.Context) {
	userID := middleware.GetAuthUserID(c)
	if userID == uuid.Nil {
		common.UnauthorizedResponse(c, "User not authenticated")
		return
	}

	var req SyncTransactionsRequest
	if !BindJSON(c, &req) {
		return
	}

	result, err := h.syncTx.Execute(c.Request.Context(), dtos.SyncTransactionsCommand{
		UserID:     userID,
		References: req.References,
	})
	if err != nil {
		common.HandleDomainError(c, err)
		return
	}
	common.Success(c, http.StatusOK, result)
}

// RegisterRoutes mounts the wallet surface.
//
// Routes:
//   - POST /wallet/create
//   - GET  /wallet
//   - GET  /wallet/balance
//   - GET  /wallet/balance/current
//   - POST /wallet/pin/setup
//   - POST /wallet/pin/validate
//   - POST /wallet/pin/change
//   - GET  /wallet/transactions/all
//   - POST /wallet/transactions/sync
func (h *WalletHandler) RegisterRoutes(router *gin.RouterGroup) {
	wallet := router.Group("/wallet")
	{
		wallet.POST("/create", h.CreateWallet)
		wallet.GET("", h.GetWallet)
		wallet.GET("/balance", h.GetBalance)
		wallet.GET("/balance/current", h.GetCurrentBalance)

		pin := wallet.Group("/pin")
		pin.Use(middleware.PinRateLimit())
		{
			pin.POST("/setup", h.SetupPin)
			pin.POST("/validate", h.ValidatePin)
			pin.POST("/change", h.ChangePin)
		}

		wallet.GET("/transactions/all", h.ListTransactions)
		wallet.POST("/transactions/sync", h.SyncTransactions)
	}
}
