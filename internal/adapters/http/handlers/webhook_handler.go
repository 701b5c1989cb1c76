// Package handlers - funding webhook handler.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ficore-africa/vas-backend/internal/adapters/http/common"
	"github.com/ficore-africa/vas-backend/internal/adapters/http/middleware"
	"github.com/ficore-africa/vas-backend/internal/application/usecases/webhook"
	domainerrors "github.com/ficore-africa/vas-backend/internal/domain/errors"
)

// signatureHeader carries the HMAC-SHA-512 of the raw body.
const signatureHeader = "monnify-signature"

// maxWebhookBody bounds the body read. Webhook payloads are small; anything
// bigger is not Monnify.
const maxWebhookBody = 1 << 20

type ProcessFundingUseCase interface {
	Execute(ctx context.Context, body []byte, signature string) (webhook.Outcome, error)
}

// WebhookHandler receives provider webhooks. Not behind JWT auth: the HMAC
// signature is the authentication.
type WebhookHandler struct {
	processFunding ProcessFundingUseCase
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(processFunding ProcessFundingUseCase) *WebhookHandler {
	return &WebhookHandler{processFunding: processFunding}
}

// Funding handles the Monnify funding webhook. The signature is computed
// over the raw body, so the body must be read before any JSON binding.
// Every outcome other than a signature failure is acked with 200: Monnify
// retries non-200 responses, and a retry cannot fix a malformed or
// unresolvable event.
func (h *WebhookHandler) Funding(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		common.BadRequestResponse(c, "Could not read request body")
		return
	}

	outcome, err := h.processFunding.Execute(c.Request.Context(), body, c.GetHeader(signatureHeader))
	if err != nil {
		if errors.Is(err, domainerrors.ErrWebhookSignatureInvalid) {
			middleware.RecordWebhook("signature_invalid")
			common.UnauthorizedResponse(c, "Signature verification failed")
			return
		}
		// Transient processing failure (DB down, lock conflict): non-200 so
		// the provider redelivers.
		middleware.RecordWebhook("error")
		common.InternalErrorResponse(c, "Webhook processing failed")
		return
	}

	middleware.RecordWebhook(string(outcome))
	common.Success(c, http.StatusOK, gin.H{"outcome": string(outcome)})
}

// RegisterRoutes mounts the webhook route on an unauthenticated group.
func (h *WebhookHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/wallet/webhook", h.Funding)
}
