package reservation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	_ Store  = (*MemoryStore)(nil)
	_ Seeder = (*MemoryStore)(nil)
)

// MemoryStore keeps everything in process. Book and Cancel hold the write
// lock for the whole read-check-write; listings only take the read lock.
type MemoryStore struct {
	mu           sync.RWMutex
	restaurants  map[int64]Restaurant
	slots        map[SlotKey]int
	reservations map[int64]*Reservation
	nextID       int64
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		restaurants:  make(map[int64]Restaurant, 64),
		slots:        make(map[SlotKey]int, 1024),
		reservations: make(map[int64]*Reservation, 64),
		now:          time.Now,
	}
}

func (s *MemoryStore) UpsertRestaurants(_ context.Context, restaurants []Restaurant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range restaurants {
		if r.ID <= 0 {
			return fmt.Errorf("restaurant %q: id must be positive", r.Name)
		}
		r.Features = append([]string(nil), r.Features...)
		s.restaurants[r.ID] = r
	}
	return nil
}

func (s *MemoryStore) InsertSlots(_ context.Context, slots []Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range slots {
		r, ok := s.restaurants[slot.RestaurantID]
		if !ok {
			return fmt.Errorf("%w: id=%d", ErrRestaurantNotFound, slot.RestaurantID)
		}
		if slot.SeatsRemaining < 0 || slot.SeatsRemaining > r.Capacity {
			return fmt.Errorf("slot %d %s %s: seats %d outside [0,%d]", slot.RestaurantID, slot.Date, slot.Time, slot.SeatsRemaining, r.Capacity)
		}
		if _, ok := s.slots[slot.Key()]; ok {
			continue
		}
		s.slots[slot.Key()] = slot.SeatsRemaining
	}
	return nil
}

func (s *MemoryStore) GetRestaurant(_ context.Context, id int64) (Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.restaurants[id]
	if !ok {
		return Restaurant{}, fmt.Errorf("%w: id=%d", ErrRestaurantNotFound, id)
	}
	return r, nil
}

func (s *MemoryStore) ListRestaurants(_ context.Context, filter RestaurantFilter) ([]Restaurant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Restaurant, 0, len(s.restaurants))
	for _, r := range s.restaurants {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CheckAvailability(_ context.Context, restaurantID int64, date, tm string, partySize int) (Availability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seats, ok := s.slots[SlotKey{RestaurantID: restaurantID, Date: date, Time: tm}]
	if !ok {
		return Availability{}, fmt.Errorf("%w: restaurant=%d date=%s time=%s", ErrNoSuchSlot, restaurantID, date, tm)
	}
	return availabilityFor(restaurantID, date, tm, partySize, seats), nil
}

func (s *MemoryStore) Book(_ context.Context, req BookingRequest) (Reservation, error) {
	if req.PartySize <= 0 {
		return Reservation{}, ErrInvalidPartySize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	restaurant, ok := s.restaurants[req.RestaurantID]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: id=%d", ErrRestaurantNotFound, req.RestaurantID)
	}
	key := SlotKey{RestaurantID: req.RestaurantID, Date: req.Date, Time: req.Time}
	seats, ok := s.slots[key]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: restaurant=%d date=%s time=%s", ErrNoSuchSlot, req.RestaurantID, req.Date, req.Time)
	}
	if seats < req.PartySize {
		return Reservation{}, fmt.Errorf("%w: only %d seats available, need %d", ErrInsufficientCapacity, seats, req.PartySize)
	}

	s.slots[key] = seats - req.PartySize
	s.nextID++
	res := &Reservation{
		ID:              s.nextID,
		RestaurantID:    restaurant.ID,
		RestaurantName:  restaurant.Name,
		Location:        restaurant.Location,
		UserID:          strings.TrimSpace(req.UserID),
		UserName:        strings.TrimSpace(req.UserName),
		UserEmail:       strings.TrimSpace(req.UserEmail),
		Date:            req.Date,
		Time:            req.Time,
		PartySize:       req.PartySize,
		Status:          StatusConfirmed,
		SpecialRequests: strings.TrimSpace(req.SpecialRequests),
		CreatedAt:       s.now().UTC(),
	}
	s.reservations[res.ID] = res
	return *res, nil
}

func (s *MemoryStore) Cancel(_ context.Context, reservationID int64, owner Owner) (Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[reservationID]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: id=%d", ErrReservationNotFound, reservationID)
	}
	if !owner.IsZero() && !owner.Owns(*res) {
		return Reservation{}, fmt.Errorf("%w: id=%d", ErrNotOwner, reservationID)
	}
	if res.Status == StatusCancelled {
		return Reservation{}, fmt.Errorf("%w: id=%d", ErrAlreadyCancelled, reservationID)
	}

	key := SlotKey{RestaurantID: res.RestaurantID, Date: res.Date, Time: res.Time}
	seats, ok := s.slots[key]
	if !ok {
		return Reservation{}, fmt.Errorf("%w: restaurant=%d date=%s time=%s", ErrNoSuchSlot, res.RestaurantID, res.Date, res.Time)
	}
	restored := seats + res.PartySize
	if capacity := s.restaurants[res.RestaurantID].Capacity; capacity > 0 && restored > capacity {
		restored = capacity
	}
	s.slots[key] = restored
	res.Status = StatusCancelled
	return *res, nil
}

func (s *MemoryStore) ListReservationsFor(_ context.Context, owner Owner) ([]Reservation, error) {
	if owner.IsZero() {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Reservation, 0, 4)
	for _, res := range s.reservations {
		if res.Status == StatusConfirmed && owner.Owns(*res) {
			out = append(out, *res)
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *MemoryStore) AvailableTimes(_ context.Context, restaurantID int64, date string, partySize int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.restaurants[restaurantID]; !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrRestaurantNotFound, restaurantID)
	}
	times := make([]string, 0, 16)
	for key, seats := range s.slots {
		if key.RestaurantID == restaurantID && key.Date == date && seats >= partySize {
			times = append(times, key.Time)
		}
	}
	sort.Strings(times)
	return times, nil
}

func (s *MemoryStore) Analytics(_ context.Context, filter AnalyticsFilter) (Analytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats *RestaurantStats
	if filter.RestaurantID > 0 {
		r, ok := s.restaurants[filter.RestaurantID]
		if !ok {
			return Analytics{}, fmt.Errorf("%w: id=%d", ErrRestaurantNotFound, filter.RestaurantID)
		}
		stats = &RestaurantStats{
			RestaurantID:   r.ID,
			RestaurantName: r.Name,
			Rating:         r.Rating,
			Capacity:       r.Capacity,
		}
	}

	match := RestaurantFilter{Cuisine: filter.Cuisine, Location: filter.Location}
	cuisines := make(map[string]int)
	times := make(map[string]int)
	total := 0
	for _, res := range s.reservations {
		if res.Status != StatusConfirmed {
			continue
		}
		r := s.restaurants[res.RestaurantID]
		if !match.Matches(r) {
			continue
		}
		if stats != nil && res.RestaurantID == stats.RestaurantID {
			stats.TotalReservations++
			stats.SeatsBooked += res.PartySize
		}
		total++
		cuisines[r.Cuisine]++
		times[res.Time]++
	}

	return Analytics{
		TotalReservations: total,
		PopularCuisines:   topCounts(cuisines, analyticsTopN),
		BusiestTimes:      topCounts(times, analyticsTopN),
		Restaurant:        stats,
	}, nil
}

func availabilityFor(restaurantID int64, date, tm string, partySize, seats int) Availability {
	av := Availability{
		RestaurantID:   restaurantID,
		Date:           date,
		Time:           tm,
		PartySize:      partySize,
		SeatsRemaining: seats,
		Available:      seats >= partySize,
	}
	if !av.Available {
		av.Reason = fmt.Sprintf("Only %d seats available, need %d", seats, partySize)
	}
	return av
}

func sortReservations(rs []Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Date != rs[j].Date {
			return rs[i].Date < rs[j].Date
		}
		if rs[i].Time != rs[j].Time {
			return rs[i].Time < rs[j].Time
		}
		return rs[i].ID < rs[j].ID
	})
}

func topCounts(counts map[string]int, n int) []CountByKey {
	out := make([]CountByKey, 0, len(counts))
	for k, c := range counts {
		out = append(out, CountByKey{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
