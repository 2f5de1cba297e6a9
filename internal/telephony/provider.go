package telephony

import (
	"context"
	"fmt"
	"time"
)

// VoiceProvider defines the provider-agnostic interface used by business logic.
//
// Rules:
// - No provider SDK/HTTP calls outside telephony adapters.
// - All requests must be org-scoped (org_id required in metadata).
// - Keep request/response types provider-agnostic; store provider raw payloads
//   in metadata if needed.
type VoiceProvider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// OriginateCall starts an outbound call driven by the configured agent.
	OriginateCall(ctx context.Context, req OriginateRequest) (OriginateResult, error)

	// InjectMessage speaks into a live call: "caller" is a barge-in audible
	// to the callee, "agent" is a whisper audible only to the agent side.
	InjectMessage(ctx context.Context, req InjectRequest) error

	// EndCall hangs up a live call at the provider.
	EndCall(ctx context.Context, providerCallID string) error
}

// OriginateRequest carries everything the provider needs to place a call.
// Metadata is echoed back on webhook events and is the only way to correlate
// them to org/campaign/agent/contact.
type OriginateRequest struct {
	AgentID string `json:"agent_id"`

	// From and To are E.164.
	From string `json:"from"`
	To   string `json:"to"`

	Metadata CallMetadata `json:"metadata"`
}

// CallMetadata is the correlation blob attached to every origination.
type CallMetadata struct {
	OrgID      string `json:"org_id"`
	CampaignID string `json:"campaign_id,omitempty"`
	AgentID    string `json:"agent_id"`
	ContactID  string `json:"contact_id,omitempty"`
}

type OriginateResult struct {
	// ProviderCallID is the provider's unique identifier for this call.
	ProviderCallID string `json:"provider_call_id"`

	// Status is the provider's initial call status (typically "queued").
	Status string `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// Channel selects who hears an injected message.
type Channel string

const (
	ChannelCaller Channel = "caller" // barge-in
	ChannelAgent  Channel = "agent"  // whisper
)

func (c Channel) Valid() bool {
	return c == ChannelCaller || c == ChannelAgent
}

type InjectRequest struct {
	ProviderCallID string  `json:"provider_call_id"`
	Channel        Channel `json:"channel"`
	Message        string  `json:"message"`
}

// ProviderError is a non-2xx response from the provider API. Callers use the
// status code to decide whether a failure is transient.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("telephony: provider returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying later could succeed.
func (e *ProviderError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
