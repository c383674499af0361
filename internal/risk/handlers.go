package risk

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/moodguard/internal/alertgate"
	"github.com/mbd888/moodguard/internal/auth"
	"github.com/mbd888/moodguard/internal/logging"
	"github.com/mbd888/moodguard/internal/pagination"
	"github.com/mbd888/moodguard/internal/respond"
	"github.com/mbd888/moodguard/internal/validation"
)

// DefaultDistributionDays is the range used when the distribution request
// omits "from".
const DefaultDistributionDays = 30

// Handler serves risk analysis and alert-session endpoints.
type Handler struct {
	svc            *Service
	gate           *alertgate.Gate
	analyzeTimeout time.Duration
	now            func() time.Time
}

// NewHandler creates a risk handler. analyzeTimeout bounds the store reads of
// a single analysis; zero means no bound.
func NewHandler(svc *Service, gate *alertgate.Gate, analyzeTimeout time.Duration) *Handler {
	return &Handler{svc: svc, gate: gate, analyzeTimeout: analyzeTimeout, now: time.Now}
}

// RegisterRoutes sets up the user routes. The group must already require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/analyze", h.Analyze)
	r.GET("/history", h.History)

	s := r.Group("", auth.RequireSession())
	s.GET("/session-status", h.SessionStatus)
	s.POST("/mark-shown", h.MarkShown)
	s.POST("/session", h.OpenSession)
	s.DELETE("/session", h.CloseSession)
}

// RegisterAdminRoutes sets up the administrator routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/risk-settings", h.GetSettings)
	r.PUT("/risk-settings", h.UpdateSettings)
	r.GET("/risk-distribution", h.Distribution)
}

// Analyze handles GET /v1/risk/analyze
func (h *Handler) Analyze(c *gin.Context) {
	a, err := h.analyze(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, http.StatusOK, a)
}

func (h *Handler) analyze(ctx context.Context, userID string) (*Analysis, error) {
	if h.analyzeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.analyzeTimeout)
		defer cancel()
	}
	return h.svc.Analyze(ctx, userID)
}

// SessionStatus handles GET /v1/risk/session-status
func (h *Handler) SessionStatus(c *gin.Context) {
	shown := h.gate.CheckShown(c.Request.Context(), auth.GetSessionID(c))
	respond.OK(c, http.StatusOK, gin.H{"alreadyShown": shown})
}

// MarkShown handles POST /v1/risk/mark-shown. Only the call that performs the
// transition writes an assessment.
func (h *Handler) MarkShown(c *gin.Context) {
	ctx := c.Request.Context()
	userID, sessionID := auth.GetUserID(c), auth.GetSessionID(c)

	transitioned, err := h.gate.MarkShown(ctx, sessionID)
	if err != nil {
		logging.L(ctx).Error("failed to mark alert shown", "session_id", sessionID, "error", err)
		respond.Error(c, http.StatusServiceUnavailable, "session_unavailable", "Could not record that the alert was shown")
		return
	}

	if transitioned {
		h.recordAssessment(ctx, userID, sessionID)
	}
	respond.OK(c, http.StatusOK, gin.H{"transitioned": transitioned})
}

// recordAssessment audits the level that was shown, none included, so a
// user's latest row reflects recovery. The gate has already moved to Shown,
// so failures here are logged rather than returned.
func (h *Handler) recordAssessment(ctx context.Context, userID, sessionID string) {
	a, err := h.analyze(ctx, userID)
	if err != nil {
		logging.L(ctx).Warn("skipping risk assessment audit", "session_id", sessionID, "error", err)
		return
	}
	if err := h.svc.RecordShown(ctx, userID, sessionID, a); err != nil {
		logging.L(ctx).Warn("failed to record risk assessment", "session_id", sessionID, "error", err)
	}
}

// OpenSession handles POST /v1/risk/session (login hook).
func (h *Handler) OpenSession(c *gin.Context) {
	if err := h.gate.Open(c.Request.Context(), auth.GetSessionID(c), auth.GetUserID(c)); err != nil {
		logging.L(c.Request.Context()).Error("failed to open alert session", "error", err)
		respond.Error(c, http.StatusServiceUnavailable, "session_unavailable", "Could not open alert session")
		return
	}
	respond.OK(c, http.StatusCreated, gin.H{"sessionId": auth.GetSessionID(c), "alreadyShown": false})
}

// CloseSession handles DELETE /v1/risk/session (logout hook).
func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.gate.Close(c.Request.Context(), auth.GetSessionID(c)); err != nil {
		logging.L(c.Request.Context()).Error("failed to close alert session", "error", err)
		respond.Error(c, http.StatusServiceUnavailable, "session_unavailable", "Could not close alert session")
		return
	}
	respond.OK(c, http.StatusOK, gin.H{"closed": true})
}

// History handles GET /v1/risk/history
func (h *Handler) History(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"))
	list, err := h.svc.History(c.Request.Context(), auth.GetUserID(c), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []*Assessment{}
	}
	respond.OK(c, http.StatusOK, gin.H{"assessments": list})
}

// GetSettings handles GET /v1/admin/risk-settings
func (h *Handler) GetSettings(c *gin.Context) {
	cfg, err := h.svc.GetConfig(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, http.StatusOK, cfg)
}

// UpdateSettings handles PUT /v1/admin/risk-settings
func (h *Handler) UpdateSettings(c *gin.Context) {
	var cfg Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	updated, err := h.svc.UpdateConfig(c.Request.Context(), &cfg, auth.AdminID(c))
	if errors.Is(err, ErrConfiguration) {
		respond.Error(c, http.StatusBadRequest, "invalid_settings", err.Error())
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, http.StatusOK, updated)
}

// Distribution handles GET /v1/admin/risk-distribution?from=YYYY-MM-DD&to=YYYY-MM-DD.
// Both dates are inclusive.
func (h *Handler) Distribution(c *gin.Context) {
	to := h.now().UTC()
	if s := c.Query("to"); s != "" {
		d, err := validation.ParseDate(s)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_date", "to must be YYYY-MM-DD")
			return
		}
		to = d
	}
	to = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	from := to.AddDate(0, 0, -DefaultDistributionDays)
	if s := c.Query("from"); s != "" {
		d, err := validation.ParseDate(s)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "invalid_date", "from must be YYYY-MM-DD")
			return
		}
		from = d
	}
	if !from.Before(to) {
		respond.Error(c, http.StatusBadRequest, "invalid_range", "from must not be after to")
		return
	}

	d, err := h.svc.Distribution(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, http.StatusOK, d)
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrConfiguration):
		respond.Error(c, http.StatusInternalServerError, "configuration_error",
			"Risk thresholds are misconfigured. Please contact an administrator.")
	case errors.Is(err, ErrDataUnavailable), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusServiceUnavailable, "data_unavailable",
			"We couldn't check your recent mood patterns right now. Please try again later.")
	default:
		logging.L(c.Request.Context()).Error("unexpected risk error", "error", err)
		respond.Error(c, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
