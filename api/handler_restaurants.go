package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tanpawarit/table-reservation-agent/reservation"
)

// ListRestaurants handles GET /v1/restaurants?cuisine=&location=&min_rating=&price_range=.
func (h *Handler) ListRestaurants(c *gin.Context) {
	filter := reservation.RestaurantFilter{
		Cuisine:    c.Query("cuisine"),
		Location:   c.Query("location"),
		PriceRange: c.Query("price_range"),
	}
	if raw := c.Query("min_rating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 5 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "min_rating must be a number between 0 and 5"})
			return
		}
		filter.MinRating = v
	}

	list, err := h.store.ListRestaurants(c.Request.Context(), filter)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to list restaurants"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "restaurants": list})
}

// GetRestaurant handles GET /v1/restaurants/:id.
func (h *Handler) GetRestaurant(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid restaurant id"})
		return
	}
	r, err := h.store.GetRestaurant(c.Request.Context(), id)
	switch {
	case errors.Is(err, reservation.ErrRestaurantNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "restaurant not found"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load restaurant"})
		return
	}
	c.JSON(http.StatusOK, r)
}

type ReservationResponse struct {
	ConfirmationCode string `json:"confirmation_code"`
	reservation.Reservation
}

// ListReservations handles GET /v1/users/:user/reservations. The optional
// name query matches reservations made before a user id was known.
func (h *Handler) ListReservations(c *gin.Context) {
	owner := reservation.Owner{UserID: c.Param("user"), Name: c.Query("name")}
	list, err := h.store.ListReservationsFor(c.Request.Context(), owner)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to list reservations"})
		return
	}

	out := make([]ReservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, ReservationResponse{ConfirmationCode: r.ConfirmationCode(), Reservation: r})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "reservations": out})
}
