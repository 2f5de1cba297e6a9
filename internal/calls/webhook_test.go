package calls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voiceagent-platform/internal/sessions"

	"github.com/gin-gonic/gin"
)

func newWebhookRouter(secret string) (*gin.Engine, *Lifecycle, *MemoryStore) {
	gin.SetMode(gin.TestMode)
	store := NewMemoryStore()
	l := NewLifecycle(store, sessions.NewRegistry(), nil)
	r := gin.New()
	r.POST("/webhooks/voice", WebhookHandler{Lifecycle: l, Secret: secret}.Handle)
	return r, l, store
}

func post(r *gin.Engine, secret, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/voice", strings.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	r, _, _ := newWebhookRouter("s3cret")

	if w := post(r, "wrong", `{}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := post(r, "", `{}`); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing secret, got %d", w.Code)
	}
}

func TestWebhook_AcksMalformedPayload(t *testing.T) {
	r, _, store := newWebhookRouter("")

	w := post(r, "", `{not json`)
	if w.Code != http.StatusOK {
		t.Fatalf("malformed payload must still be acknowledged, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"received":false`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
	if _, err := store.GetByProviderCallID(context.Background(), ""); err == nil {
		t.Fatalf("no row may be created from garbage")
	}
}

func TestWebhook_ProcessesStartedEvent(t *testing.T) {
	r, _, store := newWebhookRouter("s3cret")

	body := `{
		"type": "call.started",
		"call": {
			"id": "prov-1",
			"status": "in-progress",
			"startedAt": "2025-03-05T12:00:00Z",
			"customer": {"number": "+15551234567"},
			"metadata": {"org_id": "org-1", "agent_id": "agent-1"}
		}
	}`
	w := post(r, "s3cret", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"processed":true`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}

	c, err := store.GetByProviderCallID(context.Background(), "prov-1")
	if err != nil {
		t.Fatalf("call not recorded: %v", err)
	}
	if c.Status != CallStatusInProgress || c.OrgID != "org-1" {
		t.Fatalf("unexpected call: %+v", c)
	}
}

func TestWebhook_AcksUnknownEventType(t *testing.T) {
	r, _, _ := newWebhookRouter("")

	w := post(r, "", `{"type":"call.speech-update","call":{"id":"prov-1"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("unknown types must be acknowledged, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"processed":true`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}
