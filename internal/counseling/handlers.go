package counseling

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/moodguard/internal/idgen"
	"github.com/mbd888/moodguard/internal/logging"
	"github.com/mbd888/moodguard/internal/pagination"
	"github.com/mbd888/moodguard/internal/respond"
	"github.com/mbd888/moodguard/internal/traces"
	"github.com/mbd888/moodguard/internal/validation"
)

// Handler serves the counseling resource endpoints.
type Handler struct {
	store Store
	now   func() time.Time
}

// NewHandler creates a counseling handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store, now: time.Now}
}

// RegisterRoutes sets up the user-facing routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/counseling-resources", h.ListAvailable)
}

// RegisterAdminRoutes sets up the administrator routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	g := r.Group("/counseling-resources")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", validation.IDParamMiddleware("id"), h.Get)
	g.PUT("/:id", validation.IDParamMiddleware("id"), h.Update)
	g.DELETE("/:id", validation.IDParamMiddleware("id"), h.Delete)
}

// ResourceRequest is the body of create and update calls.
type ResourceRequest struct {
	Name           string `json:"name"`
	Category       string `json:"category"`
	Phone          string `json:"phone"`
	Website        string `json:"website"`
	Description    string `json:"description"`
	OperatingHours string `json:"operatingHours"`
	IsUrgent       bool   `json:"isUrgent"`
	IsAvailable    *bool  `json:"isAvailable"`
}

func (req *ResourceRequest) apply(r *Resource) {
	r.Name = validation.SanitizeString(req.Name, 1000)
	r.Category = Category(validation.SanitizeString(req.Category, 32))
	r.Phone = validation.SanitizeString(req.Phone, 100)
	r.Website = validation.SanitizeString(req.Website, 1000)
	r.Description = validation.SanitizeString(req.Description, 4000)
	r.OperatingHours = validation.SanitizeString(req.OperatingHours, 1000)
	r.Urgent = req.IsUrgent
	if req.IsAvailable != nil {
		r.Available = *req.IsAvailable
	}
}

// ListAvailable handles GET /v1/risk/counseling-resources
func (h *Handler) ListAvailable(c *gin.Context) {
	h.list(c, true)
}

// List handles GET /v1/admin/counseling-resources
func (h *Handler) List(c *gin.Context) {
	h.list(c, false)
}

func (h *Handler) list(c *gin.Context, availableOnly bool) {
	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_cursor", "cursor is malformed")
		return
	}
	limit := pagination.ParseLimit(c.Query("limit"))

	items, err := h.store.List(c.Request.Context(), ListOptions{
		Limit:         limit + 1,
		After:         cursor,
		AvailableOnly: availableOnly,
	})
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list counseling resources", "error", err)
		respond.Error(c, http.StatusServiceUnavailable, "data_unavailable", "Failed to list counseling resources")
		return
	}

	page, next, more := pagination.ComputePage(items, limit, func(r *Resource) (time.Time, string) {
		return r.CreatedAt, r.ID
	})
	if page == nil {
		page = []*Resource{}
	}
	respond.OK(c, http.StatusOK, gin.H{
		"resources":  page,
		"nextCursor": next,
		"hasMore":    more,
	})
}

// Get handles GET /v1/admin/counseling-resources/:id
func (h *Handler) Get(c *gin.Context) {
	r, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Failed to get counseling resource")
		return
	}
	respond.OK(c, http.StatusOK, r)
}

// Create handles POST /v1/admin/counseling-resources
func (h *Handler) Create(c *gin.Context) {
	var req ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	now := h.now().UTC()
	r := &Resource{
		ID:        idgen.WithPrefix(idgen.PrefixResource),
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	req.apply(r)
	if errs := r.Validate(); len(errs) > 0 {
		respond.Invalid(c, errs)
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "counseling.Create", traces.ResourceID(r.ID))
	defer span.End()
	if err := h.store.Create(ctx, r); err != nil {
		traces.Fail(span, err, "store")
		h.storeError(c, err, "Failed to create counseling resource")
		return
	}
	logging.L(ctx).Info("counseling resource created", "resource_id", r.ID, "urgent", r.Urgent)
	respond.OK(c, http.StatusCreated, r)
}

// Update handles PUT /v1/admin/counseling-resources/:id
func (h *Handler) Update(c *gin.Context) {
	var req ResourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "counseling.Update", traces.ResourceID(c.Param("id")))
	defer span.End()

	r, err := h.store.Get(ctx, c.Param("id"))
	if err != nil {
		h.storeError(c, err, "Failed to get counseling resource")
		return
	}
	req.apply(r)
	if errs := r.Validate(); len(errs) > 0 {
		respond.Invalid(c, errs)
		return
	}
	r.UpdatedAt = h.now().UTC()

	if err := h.store.Update(ctx, r); err != nil {
		traces.Fail(span, err, "store")
		h.storeError(c, err, "Failed to update counseling resource")
		return
	}
	respond.OK(c, http.StatusOK, r)
}

// Delete handles DELETE /v1/admin/counseling-resources/:id
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	ctx, span := traces.StartSpan(c.Request.Context(), "counseling.Delete", traces.ResourceID(id))
	defer span.End()

	if err := h.store.SoftDelete(ctx, id, h.now().UTC()); err != nil {
		h.storeError(c, err, "Failed to delete counseling resource")
		return
	}
	logging.L(ctx).Info("counseling resource deleted", "resource_id", id)
	respond.OK(c, http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) storeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, ErrNotFound) {
		respond.Error(c, http.StatusNotFound, "not_found", "Counseling resource not found")
		return
	}
	logging.L(c.Request.Context()).Error(msg, "error", err)
	respond.Error(c, http.StatusServiceUnavailable, "data_unavailable", msg)
}
