package reservation

import "context"

// Store owns restaurant, slot and reservation state and is its only writer.
// Book and Cancel are atomic: the read-check-write on a slot is one unit.
type Store interface {
	GetRestaurant(ctx context.Context, id int64) (Restaurant, error)
	ListRestaurants(ctx context.Context, filter RestaurantFilter) ([]Restaurant, error)
	CheckAvailability(ctx context.Context, restaurantID int64, date, time string, partySize int) (Availability, error)
	Book(ctx context.Context, req BookingRequest) (Reservation, error)
	Cancel(ctx context.Context, reservationID int64, owner Owner) (Reservation, error)
	ListReservationsFor(ctx context.Context, owner Owner) ([]Reservation, error)
	AvailableTimes(ctx context.Context, restaurantID int64, date string, partySize int) ([]string, error)
	Analytics(ctx context.Context, filter AnalyticsFilter) (Analytics, error)
}

// Seeder loads batch data. It runs outside any request path.
type Seeder interface {
	UpsertRestaurants(ctx context.Context, restaurants []Restaurant) error
	// InsertSlots adds slots that do not exist yet. Existing slots keep
	// their remaining seats, so confirmed bookings stay counted.
	InsertSlots(ctx context.Context, slots []Slot) error
}
