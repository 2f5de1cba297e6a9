package campaigns

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Dispatcher places one call for one contact. Implemented by the dispatch
// package; a Result with a nil error covers every policy outcome, the error
// return is reserved for infrastructure faults.
type Dispatcher interface {
	Dispatch(ctx context.Context, campaign Campaign, contact Contact) (Result, error)
}

// Summary aggregates one tick. Counts cover contacts handed to the
// dispatcher; Errors carries isolated per-unit failures, Completed counts
// campaigns closed by this tick.
type Summary struct {
	Processed  int      `json:"processed"`
	Dispatched int      `json:"dispatched"`
	Deferred   int      `json:"deferred"`
	Denied     int      `json:"denied"`
	Failed     int      `json:"failed"`
	Completed  int      `json:"completed"`
	Errors     []string `json:"errors,omitempty"`
}

// Options bound one tick.
type Options struct {
	// TickBudget is the wall-clock ceiling for a single tick.
	TickBudget time.Duration
	// DefaultBatchSize applies to campaigns without their own batch size.
	DefaultBatchSize int
	// DeferThreshold stops a campaign's batch after this many consecutive
	// limiter deferrals; the rest of the batch cannot fare better.
	DeferThreshold int
}

const (
	defaultTickBudget = 2 * time.Minute
	defaultBatchSize  = 50
	defaultDeferrals  = 3
)

// Scheduler drives due campaigns. Stateless between ticks; any number of
// instances may tick concurrently because attempt claims are conditional
// updates and limiter state lives in Redis.
type Scheduler struct {
	store      Store
	dispatcher Dispatcher
	log        *slog.Logger
	opts       Options
}

func NewScheduler(store Store, dispatcher Dispatcher, log *slog.Logger, opts Options) *Scheduler {
	if opts.TickBudget <= 0 {
		opts.TickBudget = defaultTickBudget
	}
	if opts.DefaultBatchSize <= 0 {
		opts.DefaultBatchSize = defaultBatchSize
	}
	if opts.DeferThreshold <= 0 {
		opts.DeferThreshold = defaultDeferrals
	}
	return &Scheduler{store: store, dispatcher: dispatcher, log: log, opts: opts}
}

// RunTick processes every due campaign once. Per-contact failures are
// isolated into the summary; only a failure to list campaigns aborts the
// tick, since nothing was attempted yet and the next tick retries wholesale.
func (s *Scheduler) RunTick(ctx context.Context, now time.Time) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.TickBudget)
	defer cancel()

	var sum Summary

	due, err := s.store.ListDueCampaigns(ctx, now)
	if err != nil {
		return sum, fmt.Errorf("campaigns: list due: %w", err)
	}

	for _, campaign := range due {
		if ctx.Err() != nil {
			sum.Errors = append(sum.Errors, "tick budget exhausted")
			break
		}
		s.runCampaign(ctx, campaign, &sum)
	}

	s.completeEnded(ctx, now, &sum)
	return sum, nil
}

func (s *Scheduler) runCampaign(ctx context.Context, campaign Campaign, sum *Summary) {
	batch := campaign.BatchSize
	if batch <= 0 {
		batch = s.opts.DefaultBatchSize
	}

	contacts, err := s.store.ListPendingContacts(ctx, campaign.ID, campaign.MaxAttempts, batch)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("campaign %s: list pending: %v", campaign.ID, err))
		return
	}

	deferrals := 0
	for _, contact := range contacts {
		if ctx.Err() != nil {
			sum.Errors = append(sum.Errors, "tick budget exhausted")
			return
		}

		res, err := s.dispatcher.Dispatch(ctx, campaign, contact)
		sum.Processed++
		if err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("contact %s: %v", contact.ID, err))
			continue
		}

		switch res.Outcome {
		case OutcomeDispatched:
			sum.Dispatched++
			deferrals = 0
		case OutcomeDenied:
			sum.Denied++
			deferrals = 0
		case OutcomeFailed:
			sum.Failed++
			deferrals = 0
		case OutcomeSkipped:
			deferrals = 0
		case OutcomeDeferred:
			sum.Deferred++
			deferrals++
			if deferrals >= s.opts.DeferThreshold {
				s.log.Info("campaign backed off after consecutive deferrals",
					"campaign_id", campaign.ID, "deferrals", deferrals)
				return
			}
		}
	}
}

// completeEnded closes running campaigns whose schedule window has passed
// and which owe no more calls. Best-effort; failures surface in the summary
// and the next tick retries.
func (s *Scheduler) completeEnded(ctx context.Context, now time.Time, sum *Summary) {
	ended, err := s.store.ListEndedRunning(ctx, now)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("list ended campaigns: %v", err))
		return
	}
	for _, campaign := range ended {
		pending, err := s.store.HasPendingContacts(ctx, campaign.ID, campaign.MaxAttempts)
		if err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("campaign %s: pending check: %v", campaign.ID, err))
			continue
		}
		if pending {
			continue
		}
		if err := s.store.CompleteCampaign(ctx, campaign.ID, now); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("campaign %s: complete: %v", campaign.ID, err))
			continue
		}
		sum.Completed++
		s.log.Info("campaign completed", "campaign_id", campaign.ID, "org_id", campaign.OrgID)
	}
}
