package diary

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/moodguard/internal/auth"
	"github.com/mbd888/moodguard/internal/emotion"
	"github.com/mbd888/moodguard/internal/logging"
	"github.com/mbd888/moodguard/internal/respond"
	"github.com/mbd888/moodguard/internal/validation"
)

// MaxWindowDays bounds the window a client may read back.
const MaxWindowDays = 365

// Handler provides the diary ingestion endpoints.
type Handler struct {
	store Store
}

// NewHandler creates a diary handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up diary routes. The group must already require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/diary/entries", h.Upsert)
	r.GET("/diary/entries", h.Recent)
}

type upsertRequest struct {
	Date    string `json:"date"`
	Emotion string `json:"emotion"`
}

// Upsert handles POST /v1/risk/diary/entries
func (h *Handler) Upsert(c *gin.Context) {
	var req upsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	e, parseErr := emotion.Parse(req.Emotion)
	errs := validation.Validate(
		validation.Date("date", req.Date),
		validation.Required("emotion", req.Emotion),
	)
	if parseErr != nil && req.Emotion != "" {
		errs = append(errs, validation.ValidationError{Field: "emotion", Message: "is not a recognised emotion"})
	}
	if len(errs) > 0 {
		respond.Invalid(c, errs)
		return
	}

	date, _ := validation.ParseDate(req.Date)
	entry := &Entry{UserID: auth.GetUserID(c), Date: Day(date), Emotion: e}
	if err := entry.Validate(); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_entry", err.Error())
		return
	}

	if err := h.store.Upsert(c.Request.Context(), entry); err != nil {
		logging.L(c.Request.Context()).Error("failed to upsert diary entry", "error", err)
		respond.Error(c, http.StatusServiceUnavailable, "data_unavailable", "Could not save the diary entry")
		return
	}
	respond.OK(c, http.StatusOK, entry)
}

// Recent handles GET /v1/risk/diary/entries?days=N
func (h *Handler) Recent(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "14"))
	if err != nil || days <= 0 || days > MaxWindowDays {
		respond.Error(c, http.StatusBadRequest, "invalid_days", "days must be between 1 and 365")
		return
	}

	entries, err := h.store.RecentEntries(c.Request.Context(), auth.GetUserID(c), days)
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to read diary window", "error", err)
		respond.Error(c, http.StatusServiceUnavailable, "data_unavailable", "Could not read diary entries")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	respond.OK(c, http.StatusOK, gin.H{"entries": entries, "days": days})
}
