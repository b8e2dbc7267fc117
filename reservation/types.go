package reservation

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Restaurant is immutable once seeded.
type Restaurant struct {
	ID           int64    `json:"id" yaml:"id"`
	Name         string   `json:"name" yaml:"name"`
	Cuisine      string   `json:"cuisine" yaml:"cuisine"`
	Location     string   `json:"location" yaml:"location"`
	Rating       float64  `json:"rating" yaml:"rating"`
	PriceRange   string   `json:"price_range" yaml:"price_range"`
	Capacity     int      `json:"capacity" yaml:"capacity"`
	Features     []string `json:"features" yaml:"features"`
	Description  string   `json:"description" yaml:"description"`
	OpeningHours string   `json:"opening_hours,omitempty" yaml:"opening_hours"`
}

// Slot is the availability row for one restaurant at one date and time.
// 0 <= SeatsRemaining <= Restaurant.Capacity.
type Slot struct {
	RestaurantID   int64  `json:"restaurant_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	SeatsRemaining int    `json:"seats_remaining"`
}

type SlotKey struct {
	RestaurantID int64
	Date         string
	Time         string
}

func (s Slot) Key() SlotKey {
	return SlotKey{RestaurantID: s.RestaurantID, Date: s.Date, Time: s.Time}
}

type Reservation struct {
	ID              int64     `json:"reservation_id"`
	RestaurantID    int64     `json:"restaurant_id"`
	RestaurantName  string    `json:"restaurant_name,omitempty"`
	Location        string    `json:"location,omitempty"`
	UserID          string    `json:"user_id,omitempty"`
	UserName        string    `json:"user_name"`
	UserEmail       string    `json:"user_email,omitempty"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	PartySize       int       `json:"party_size"`
	Status          Status    `json:"status"`
	SpecialRequests string    `json:"special_requests,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ConfirmationCode renders the reservation id; unique as long as ids are.
func (r Reservation) ConfirmationCode() string {
	return ConfirmationCode(r.ID)
}

func ConfirmationCode(id int64) string {
	return fmt.Sprintf("GF-%04d", id)
}

// Owner identifies whose reservations an operation acts on. A non-empty
// UserID wins over Name.
type Owner struct {
	UserID string
	Name   string
}

func (o Owner) IsZero() bool {
	return strings.TrimSpace(o.UserID) == "" && strings.TrimSpace(o.Name) == ""
}

func (o Owner) Owns(r Reservation) bool {
	if id := strings.TrimSpace(o.UserID); id != "" && r.UserID != "" {
		return id == r.UserID
	}
	return strings.EqualFold(strings.TrimSpace(o.Name), strings.TrimSpace(r.UserName))
}

type BookingRequest struct {
	RestaurantID    int64
	Date            string
	Time            string
	PartySize       int
	UserID          string
	UserName        string
	UserEmail       string
	SpecialRequests string
}

type Availability struct {
	RestaurantID   int64  `json:"restaurant_id"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	PartySize      int    `json:"party_size"`
	Available      bool   `json:"available"`
	SeatsRemaining int    `json:"seats_available"`
	Reason         string `json:"reason,omitempty"`
}

// RestaurantFilter predicates are optional and conjunctive.
type RestaurantFilter struct {
	Cuisine    string
	Location   string
	MinRating  float64
	PriceRange string
}

func (f RestaurantFilter) Matches(r Restaurant) bool {
	if c := strings.TrimSpace(f.Cuisine); c != "" && !strings.EqualFold(c, r.Cuisine) {
		return false
	}
	if l := strings.TrimSpace(f.Location); l != "" && !strings.Contains(strings.ToLower(r.Location), strings.ToLower(l)) {
		return false
	}
	if f.MinRating > 0 && r.Rating < f.MinRating {
		return false
	}
	if p := strings.TrimSpace(f.PriceRange); p != "" && p != r.PriceRange {
		return false
	}
	return true
}

func (f RestaurantFilter) cacheKey() string {
	return fmt.Sprintf("%s|%s|%.2f|%s",
		strings.ToLower(strings.TrimSpace(f.Cuisine)),
		strings.ToLower(strings.TrimSpace(f.Location)),
		f.MinRating,
		strings.TrimSpace(f.PriceRange),
	)
}

type AnalyticsFilter struct {
	Cuisine      string
	Location     string
	RestaurantID int64
}

type CountByKey struct {
	Key   string `json:"key" bun:"label"`
	Count int    `json:"count" bun:"total"`
}

type RestaurantStats struct {
	RestaurantID      int64   `json:"restaurant_id"`
	RestaurantName    string  `json:"restaurant_name"`
	Rating            float64 `json:"rating"`
	Capacity          int     `json:"capacity"`
	TotalReservations int     `json:"total_reservations"`
	SeatsBooked       int     `json:"seats_booked"`
}

type Analytics struct {
	TotalReservations int              `json:"total_reservations"`
	PopularCuisines   []CountByKey     `json:"popular_cuisines"`
	BusiestTimes      []CountByKey     `json:"busiest_times"`
	Restaurant        *RestaurantStats `json:"restaurant,omitempty"`
}

const analyticsTopN = 5
