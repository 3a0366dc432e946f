package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/reservation"
)

type availabilityParams struct {
	Date     string `query:"date"`
	Time     string `query:"time"`
	Seats    int    `query:"seats" validate:"omitempty,min=1"`
	Duration int    `query:"duration" validate:"omitempty,min=1,max=240"`
}

// Availability handles GET /v1/restaurants/:id/availability.  With a time
// parameter it answers for that window; without one it returns the hourly
// day scan.
func (h *ReservationHandler) Availability(c echo.Context) error {
	restaurantID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var p availabilityParams
	if err := bindValid(c, &p); err != nil {
		return err
	}
	q := reservation.AvailabilityQuery{
		RestaurantID: restaurantID,
		Date:         p.Date,
		Time:         p.Time,
		Seats:        p.Seats,
		Duration:     p.Duration,
	}
	ctx := c.Request().Context()
	if p.Time != "" {
		res, err := h.svc.Availability(ctx, q)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, res)
	}
	res, err := h.svc.DayAvailability(ctx, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
