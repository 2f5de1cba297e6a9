package calls

import (
	"crypto/subtle"
	"io"
	"net/http"

	"voiceagent-platform/internal/telephony"
	"voiceagent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives provider lifecycle events.
//
// The provider retries on non-2xx, and its retries are the main source of
// duplicate events, so this endpoint acknowledges with 200 regardless of
// processing outcome. Idempotent application makes the duplicates harmless;
// a 5xx here would only convert them into retry storms.
type WebhookHandler struct {
	Lifecycle *Lifecycle

	// Secret guards the endpoint when the provider supports signing.
	// Empty means unauthenticated (local/dev).
	Secret string
}

const webhookSecretHeader = "X-Webhook-Secret"

func (h WebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Secret != "" {
		got := c.GetHeader(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		log.Warn("webhook body read failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"received": false})
		return
	}

	payload, err := telephony.ParseWebhookPayload(body)
	if err != nil {
		log.Warn("webhook payload parse failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"received": false})
		return
	}

	if err := h.Lifecycle.ApplyEvent(c.Request.Context(), log, payload); err != nil {
		// Storage hiccup: acknowledge anyway and rely on the provider's
		// next event (or a replay) to converge; the upsert is idempotent.
		log.Error("webhook event processing failed", "type", payload.Type, "provider_call_id", payload.Call.ID, "err", err)
		c.JSON(http.StatusOK, gin.H{"received": true, "processed": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "processed": true})
}
