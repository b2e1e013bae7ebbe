package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureHeader carries the HMAC digest of the raw request body.
const SignatureHeader = "Signature"

// HandlePaymentWebhook ingests one signed delivery from the payment
// processor. Any outcome the pipeline considers handled answers 200 so
// the processor stops redelivering; only signature and envelope
// failures answer 400, and only a ledger write failure answers 500.
func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.webhookSvc.Ingest(c.Request.Context(), payload, c.GetHeader(SignatureHeader)); err != nil {
		s.log.Warn("webhook ingest failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
