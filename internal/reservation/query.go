package reservation

import (
	"time"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/model"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// ListQuery holds the pagination and filter options of the listing
// operations.  Zero Page and Limit mean "use the default".
type ListQuery struct {
	Page   int
	Limit  int
	Status *model.Status
	// Date restricts results to reservations starting on that calendar day,
	// given as local midnight in the service time zone.
	Date *time.Time
}

// Normalize fills defaults and validates the result.
func (q ListQuery) Normalize() (ListQuery, error) {
	if q.Page == 0 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	details := map[string]string{}
	if q.Page < 1 {
		details["page"] = "must be at least 1"
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		details["limit"] = "must be between 1 and 100"
	}
	if q.Status != nil && !q.Status.Valid() {
		details["status"] = "must be ACTIVE, CANCELLED or COMPLETED"
	}
	if len(details) > 0 {
		return q, apperr.Wrap(apperr.CodeValidation, ErrInvalidQuery, "invalid list query").WithDetails(details)
	}
	return q, nil
}

func (q ListQuery) Offset() int { return (q.Page - 1) * q.Limit }

// Filter is what the store receives: ownership scope plus normalized paging.
type Filter struct {
	UserID       *uint64
	RestaurantID *uint64
	Status       *model.Status
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

func (q ListQuery) filter() Filter {
	f := Filter{Status: q.Status, Limit: q.Limit, Offset: q.Offset()}
	if q.Date != nil {
		from := q.Date.UTC()
		to := q.Date.AddDate(0, 0, 1).UTC()
		f.From, f.To = &from, &to
	}
	return f
}

// Page is one page of a listing.
type Page struct {
	Items []model.Reservation `json:"items"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
	Total int                 `json:"total"`
}
