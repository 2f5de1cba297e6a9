package telephony

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"voiceagent-platform/internal/config"

	"github.com/go-resty/resty/v2"
)

// HTTPProvider talks to the voice-call provider's JSON REST API.
//
// Endpoints:
//   POST   /call                 originate
//   POST   /call/{id}/control    inject message into a live call
//   DELETE /call/{id}            hang up
//   GET    /health               liveness
type HTTPProvider struct {
	client *resty.Client
}

func NewHTTPProvider(cfg config.ProviderConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("telephony: provider base url is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("telephony: provider api key is required")
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &HTTPProvider{client: client}, nil
}

func (p *HTTPProvider) Name() string { return "http" }

func (p *HTTPProvider) HealthCheck(ctx context.Context) error {
	resp, err := p.client.R().SetContext(ctx).Get("/health")
	if err != nil {
		return fmt.Errorf("telephony: health check failed: %w", err)
	}
	if resp.IsError() {
		return &ProviderError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

type originateResponse struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func (p *HTTPProvider) OriginateCall(ctx context.Context, req OriginateRequest) (OriginateResult, error) {
	if req.To == "" || req.From == "" || req.AgentID == "" {
		return OriginateResult{}, errors.New("telephony: originate requires agent, from and to")
	}

	var out originateResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"assistantId": req.AgentID,
			"phoneNumber": map[string]string{"from": req.From},
			"customer":    map[string]string{"number": req.To},
			"metadata":    req.Metadata,
		}).
		SetResult(&out).
		Post("/call")
	if err != nil {
		return OriginateResult{}, fmt.Errorf("telephony: originate request failed: %w", err)
	}
	if resp.IsError() {
		return OriginateResult{}, &ProviderError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	if out.ID == "" {
		return OriginateResult{}, errors.New("telephony: provider response missing call id")
	}
	return OriginateResult{ProviderCallID: out.ID, Status: out.Status, CreatedAt: out.CreatedAt}, nil
}

func (p *HTTPProvider) InjectMessage(ctx context.Context, req InjectRequest) error {
	if req.ProviderCallID == "" {
		return errors.New("telephony: provider call id is required")
	}
	if !req.Channel.Valid() {
		return fmt.Errorf("telephony: invalid channel %q", req.Channel)
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"type":    "say",
			"channel": string(req.Channel),
			"message": req.Message,
		}).
		Post("/call/" + req.ProviderCallID + "/control")
	if err != nil {
		return fmt.Errorf("telephony: inject request failed: %w", err)
	}
	if resp.IsError() {
		return &ProviderError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

func (p *HTTPProvider) EndCall(ctx context.Context, providerCallID string) error {
	if providerCallID == "" {
		return errors.New("telephony: provider call id is required")
	}

	resp, err := p.client.R().SetContext(ctx).Delete("/call/" + providerCallID)
	if err != nil {
		return fmt.Errorf("telephony: end request failed: %w", err)
	}
	// The provider answers 404 for calls it no longer tracks; the lifecycle
	// event has or will come through the webhook either way.
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return &ProviderError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}
