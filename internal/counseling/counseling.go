// Package counseling keeps the registry of counseling resources shown to
// users, including the urgent contacts attached to high-risk analyses.
package counseling

import (
	"context"
	"errors"
	"time"

	"github.com/mbd888/moodguard/internal/pagination"
	"github.com/mbd888/moodguard/internal/validation"
)

var ErrNotFound = errors.New("counseling: resource not found")

// Category groups resources for display.
type Category string

const (
	CategoryEmergency    Category = "emergency"
	CategoryProfessional Category = "professional"
	CategoryHotline      Category = "hotline"
	CategoryMedical      Category = "medical"
)

// Categories lists every category.
func Categories() []Category {
	return []Category{CategoryEmergency, CategoryProfessional, CategoryHotline, CategoryMedical}
}

// Resource is a counseling organisation or line.
type Resource struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Category       Category   `json:"category"`
	Phone          string     `json:"phone,omitempty"`
	Website        string     `json:"website,omitempty"`
	Description    string     `json:"description,omitempty"`
	OperatingHours string     `json:"operatingHours,omitempty"`
	Urgent         bool       `json:"isUrgent"`
	Available      bool       `json:"isAvailable"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	DeletedAt      *time.Time `json:"deletedAt,omitempty"`
}

// Validate checks the admin-editable fields.
func (r *Resource) Validate() validation.ValidationErrors {
	cats := make([]string, 0, 4)
	for _, c := range Categories() {
		cats = append(cats, string(c))
	}
	return validation.Validate(
		validation.Required("name", r.Name),
		validation.MaxLength("name", r.Name, 255),
		validation.OneOf("category", string(r.Category), cats...),
		validation.Phone("phone", r.Phone),
		validation.WebURL("website", r.Website),
		validation.MaxLength("website", r.Website, 500),
		validation.MaxLength("description", r.Description, 2000),
		validation.MaxLength("operatingHours", r.OperatingHours, 255),
	)
}

// ListOptions selects a page of live (non-deleted) resources ordered by
// (createdAt, id).
type ListOptions struct {
	Limit         int
	After         *pagination.Cursor
	AvailableOnly bool
}

// Store persists resources. Deleted resources are invisible to every method.
type Store interface {
	Create(ctx context.Context, r *Resource) error
	Get(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context, opts ListOptions) ([]*Resource, error)
	Update(ctx context.Context, r *Resource) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	// ListUrgentPhones returns the phone numbers of urgent resources.
	ListUrgentPhones(ctx context.Context) ([]string, error)
}
