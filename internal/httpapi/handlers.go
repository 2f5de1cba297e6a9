package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"voiceagent-platform/internal/audit"
	"voiceagent-platform/internal/auth"
	"voiceagent-platform/internal/calls"
	"voiceagent-platform/internal/campaigns"
	"voiceagent-platform/internal/control"
	"voiceagent-platform/internal/scheduling"
	"voiceagent-platform/internal/telephony"
	"voiceagent-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Control   *control.Service
	Audit     *audit.Service
	Scheduler *campaigns.Scheduler
}

// --- Scheduler trigger ---

// TickScheduler runs one campaign tick. Driven by an external cron; the
// shared-secret middleware guards the route. Partial failures still return
// 200 with the error list so the cron does not blind-retry a half-done tick.
func (h Handlers) TickScheduler(c *gin.Context) {
	if h.Scheduler == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scheduler not configured"})
		return
	}
	sum, err := h.Scheduler.RunTick(c.Request.Context(), time.Now().UTC())
	if err != nil {
		logger.FromGin(c).Error("tick aborted", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "tick aborted"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Live-call control ---

type injectRequest struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (h Handlers) InjectMessage(c *gin.Context) {
	if h.Control == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "control not configured"})
		return
	}
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}
	userID, _ := auth.UserID(c.Request.Context())

	var req injectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	err = h.Control.Inject(c.Request.Context(), orgID, userID, c.Param("call_id"), telephony.Channel(req.Channel), req.Message)
	if err != nil {
		abortControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "injected"})
}

func (h Handlers) EndCall(c *gin.Context) {
	if h.Control == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "control not configured"})
		return
	}
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}
	userID, _ := auth.UserID(c.Request.Context())

	if err := h.Control.EndCall(c.Request.Context(), orgID, userID, c.Param("call_id")); err != nil {
		abortControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ending"})
}

func abortControlError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, control.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, control.ErrCallNotActive):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call not active"})
	default:
		var pe *telephony.ProviderError
		if errors.As(err, &pe) {
			logger.FromGin(c).Warn("provider control request failed", "status", pe.StatusCode)
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provider request failed"})
			return
		}
		logger.FromGin(c).Error("control action failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "control action failed"})
	}
}

// --- Audit export ---

// ExportDispatches serves the org-scoped compliance export over dispatch
// audit entries.
func (h Handlers) ExportDispatches(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	orgID, err := auth.OrgID(c.Request.Context())
	if err != nil || orgID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}

	f := audit.Filter{
		OrgID:      orgID,
		Type:       audit.EntryTypeDispatch,
		CampaignID: c.Query("campaign_id"),
	}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		f.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
		f.To = t
	}
	f.Limit = intQuery(c, "limit")
	f.Offset = intQuery(c, "offset")

	entries, err := h.Audit.Export(c.Request.Context(), f)
	if err != nil {
		logger.FromGin(c).Error("audit export failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

// --- Appointment slots ---

type slotsRequest struct {
	Date            string               `json:"date"`
	Days            int                  `json:"days"`
	StartTime       string               `json:"startTime"`
	EndTime         string               `json:"endTime"`
	DurationMinutes int                  `json:"durationMinutes"`
	BufferMinutes   int                  `json:"bufferMinutes"`
	MinNoticeHours  int                  `json:"minNoticeHours"`
	MaxAdvanceDays  int                  `json:"maxAdvanceDays"`
	Bookings        []scheduling.Booking `json:"bookings"`
}

type slotsDay struct {
	Date      string   `json:"date"`
	Slots     []string `json:"slots"`
	Available bool     `json:"available"`
	Count     int      `json:"count"`
}

// QuerySlots computes bookable appointment slots for one or more days.
// Pure computation over the posted bookings; agents call it mid-conversation
// to offer concrete times.
func (h Handlers) QuerySlots(c *gin.Context) {
	var req slotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	if req.Days <= 0 {
		req.Days = 1
	}
	if req.Days > 31 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "days must be at most 31"})
		return
	}
	if req.StartTime == "" {
		req.StartTime = "09:00"
	}
	if req.EndTime == "" {
		req.EndTime = "17:00"
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}

	now := time.Now().UTC()
	out := make([]slotsDay, 0, req.Days)
	for i := 0; i < req.Days; i++ {
		date := day.AddDate(0, 0, i)
		slots, err := scheduling.GenerateSlots(date, req.StartTime, req.EndTime, req.DurationMinutes, req.BufferMinutes, req.Bookings)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slots = scheduling.FilterNotice(slots, now, req.MinNoticeHours, req.MaxAdvanceDays)

		formatted := make([]string, 0, len(slots))
		for _, s := range slots {
			formatted = append(formatted, s.Format(time.RFC3339))
		}
		out = append(out, slotsDay{
			Date:      date.Format("2006-01-02"),
			Slots:     formatted,
			Available: len(formatted) > 0,
			Count:     len(formatted),
		})
	}
	c.JSON(http.StatusOK, gin.H{"days": out})
}

func intQuery(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
