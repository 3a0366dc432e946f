package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/middleware"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/reservation"
)

// ReservationService is the part of the engine the HTTP layer drives.
type ReservationService interface {
	Book(ctx context.Context, actor model.Actor, req reservation.BookRequest) (model.Reservation, error)
	Get(ctx context.Context, actor model.Actor, id uint64) (model.Reservation, error)
	Cancel(ctx context.Context, actor model.Actor, id uint64) (model.Reservation, error)
	Delete(ctx context.Context, actor model.Actor, id uint64) error
	ListMine(ctx context.Context, actor model.Actor, q reservation.ListQuery) (reservation.Page, error)
	ListAll(ctx context.Context, actor model.Actor, q reservation.ListQuery) (reservation.Page, error)
	ListForRestaurant(ctx context.Context, actor model.Actor, restaurantID uint64, q reservation.ListQuery) (reservation.Page, error)
	Availability(ctx context.Context, q reservation.AvailabilityQuery) (reservation.PointAvailability, error)
	DayAvailability(ctx context.Context, q reservation.AvailabilityQuery) (reservation.DayAvailability, error)
	Location() *time.Location
}

type ReservationHandler struct {
	svc ReservationService
}

func NewReservationHandler(svc ReservationService) *ReservationHandler {
	return &ReservationHandler{svc: svc}
}

type bookBody struct {
	RestaurantID uint64 `json:"restaurant_id" validate:"required"`
	Date         string `json:"date" validate:"required"`
	Time         string `json:"time" validate:"required"`
	Duration     int    `json:"duration" validate:"omitempty,min=1,max=240"`
	Seats        int    `json:"seats" validate:"required,min=1"`
}

// listParams are the query parameters shared by every listing route.
type listParams struct {
	Page   int    `query:"page" validate:"omitempty,min=1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Status string `query:"status" validate:"omitempty,oneof=ACTIVE CANCELLED COMPLETED"`
	Date   string `query:"date"`
}

func (p listParams) toQuery(loc *time.Location) (reservation.ListQuery, error) {
	q := reservation.ListQuery{Page: p.Page, Limit: p.Limit}
	if p.Status != "" {
		s := model.Status(p.Status)
		q.Status = &s
	}
	if p.Date != "" {
		day, err := reservation.ParseDate(p.Date, loc)
		if err != nil {
			return q, err
		}
		q.Date = &day
	}
	return q, nil
}

func actorOf(c echo.Context) (model.Actor, error) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return model.Actor{}, apperr.New(apperr.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// Book handles POST /v1/reservations.
func (h *ReservationHandler) Book(c echo.Context) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var body bookBody
	if err := bindValid(c, &body); err != nil {
		return err
	}
	r, err := h.svc.Book(c.Request().Context(), actor, reservation.BookRequest{
		RestaurantID: body.RestaurantID,
		Date:         body.Date,
		Time:         body.Time,
		Duration:     body.Duration,
		Seats:        body.Seats,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, r)
}

// ListMine handles GET /v1/reservations.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	return h.list(c, func(ctx context.Context, actor model.Actor, q reservation.ListQuery) (reservation.Page, error) {
		return h.svc.ListMine(ctx, actor, q)
	})
}

// ListAll handles GET /v1/admin/reservations.
func (h *ReservationHandler) ListAll(c echo.Context) error {
	return h.list(c, func(ctx context.Context, actor model.Actor, q reservation.ListQuery) (reservation.Page, error) {
		return h.svc.ListAll(ctx, actor, q)
	})
}

// ListForRestaurant handles GET /v1/restaurants/:id/reservations.
func (h *ReservationHandler) ListForRestaurant(c echo.Context) error {
	restaurantID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	return h.list(c, func(ctx context.Context, actor model.Actor, q reservation.ListQuery) (reservation.Page, error) {
		return h.svc.ListForRestaurant(ctx, actor, restaurantID, q)
	})
}

type listFunc func(ctx context.Context, actor model.Actor, q reservation.ListQuery) (reservation.Page, error)

func (h *ReservationHandler) list(c echo.Context, fn listFunc) error {
	actor, err := actorOf(c)
	if err != nil {
		return err
	}
	var params listParams
	if err := bindValid(c, &params); err != nil {
		return err
	}
	q, err := params.toQuery(h.svc.Location())
	if err != nil {
		return err
	}
	page, err := fn(c.Request().Context(), actor, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Cancel handles PATCH /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	r, err := h.svc.Cancel(c.Request().Context(), actor, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

// Delete handles DELETE /v1/reservations/:id.  Only finished reservations
// can be removed.
func (h *ReservationHandler) Delete(c echo.Context) error {
	actor, id, err := h.actorAndID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ReservationHandler) actorAndID(c echo.Context) (model.Actor, uint64, error) {
	actor, err := actorOf(c)
	if err != nil {
		return model.Actor{}, 0, err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return model.Actor{}, 0, err
	}
	return actor, id, nil
}
