package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	qstashx "github.com/tanpawarit/table-reservation-agent/pkg/qstash"
)

// QStash strips the Upstash-Forward- prefix on delivery.
const eventTopicHeader = "X-Event-Topic"

const maxEventBytes = 64 << 10

type reservationEvent struct {
	ReservationID    int64  `json:"reservation_id"`
	ConfirmationCode string `json:"confirmation_code"`
	RestaurantID     int64  `json:"restaurant_id"`
	UserID           string `json:"user_id"`
	Date             string `json:"date"`
	Time             string `json:"time"`
	PartySize        int    `json:"party_size"`
	Status           string `json:"status"`
}

// ReceiveEvent handles POST /v1/events/qstash, the delivery side of the
// reservation events the tool router publishes.
func (h *Handler) ReceiveEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.verifier.Verify(c.GetHeader(qstashx.SignatureHeader), body, h.hookURL); err != nil {
		log.Warn().Err(err).Msg("api: rejected event delivery")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var ev reservationEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.ReservationID <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}

	log.Info().
		Str("topic", c.GetHeader(eventTopicHeader)).
		Int64("reservation_id", ev.ReservationID).
		Str("confirmation_code", ev.ConfirmationCode).
		Str("status", ev.Status).
		Str("user_id", ev.UserID).
		Msg("api: reservation event delivered")
	c.JSON(http.StatusOK, gin.H{"received": true})
}
