package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/restaurant-reservation/internal/apperr"
	"github.com/iliyamo/restaurant-reservation/internal/model"
	"github.com/iliyamo/restaurant-reservation/internal/repository"
	"github.com/iliyamo/restaurant-reservation/internal/reservation"
)

// RestaurantDirectory is the read-only restaurant catalog.
type RestaurantDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.Restaurant, error)
	Search(ctx context.Context, q repository.RestaurantSearch) ([]model.Restaurant, int, error)
}

type RestaurantHandler struct {
	dir RestaurantDirectory
}

func NewRestaurantHandler(dir RestaurantDirectory) *RestaurantHandler {
	return &RestaurantHandler{dir: dir}
}

type searchParams struct {
	Name     string `query:"name" validate:"max=100"`
	Location string `query:"location" validate:"max=100"`
	// Cuisines is a comma separated list; a restaurant matches if it serves
	// any of them.
	Cuisines string `query:"cuisines"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

type restaurantPage struct {
	Items []model.Restaurant `json:"items"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
	Total int                `json:"total"`
}

// Search handles GET /v1/restaurants.
func (h *RestaurantHandler) Search(c echo.Context) error {
	var p searchParams
	if err := bindValid(c, &p); err != nil {
		return err
	}
	q := repository.RestaurantSearch{
		Name:     strings.TrimSpace(p.Name),
		Location: strings.TrimSpace(p.Location),
		Page:     p.Page,
		Limit:    p.Limit,
	}
	if q.Page == 0 {
		q.Page = reservation.DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = reservation.DefaultLimit
	}
	for _, cu := range strings.Split(p.Cuisines, ",") {
		if cu = strings.TrimSpace(cu); cu != "" {
			q.Cuisines = append(q.Cuisines, cu)
		}
	}

	items, total, err := h.dir.Search(c.Request().Context(), q)
	if err != nil {
		return apperr.Wrap(apperr.CodeUnavailable, err, "restaurant search failed")
	}
	if items == nil {
		items = []model.Restaurant{}
	}
	return c.JSON(http.StatusOK, restaurantPage{Items: items, Page: q.Page, Limit: q.Limit, Total: total})
}

// Get handles GET /v1/restaurants/:id.
func (h *RestaurantHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	rest, err := h.dir.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, reservation.ErrRestaurantNotFound) {
			return apperr.Wrap(apperr.CodeNotFound, err, "restaurant not found")
		}
		return apperr.Wrap(apperr.CodeUnavailable, err, "restaurant lookup failed")
	}
	return c.JSON(http.StatusOK, rest)
}
