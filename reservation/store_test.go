package reservation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var seedStart = time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)

type storeUnderTest interface {
	Store
	Seeder
}

func newSeededStores(t *testing.T) map[string]storeUnderTest {
	t.Helper()
	ctx := context.Background()

	f, err := LoadSeedFile("testdata/restaurants.yaml")
	require.NoError(t, err)

	mem := NewMemoryStore()

	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	sqlStore := NewBunStore(db)
	require.NoError(t, sqlStore.Migrate(ctx))

	stores := map[string]storeUnderTest{
		"memory": mem,
		"sqlite": sqlStore,
	}
	for name, s := range stores {
		n, err := Seed(ctx, s, f, seedStart)
		require.NoError(t, err, name)
		require.Equal(t, 4*3*4, n, name)
	}
	return stores
}

func seatsAt(t *testing.T, s Store, restaurantID int64, date, tm string) int {
	t.Helper()
	av, err := s.CheckAvailability(context.Background(), restaurantID, date, tm, 1)
	require.NoError(t, err)
	return av.SeatsRemaining
}

func TestStore_BookThenCancelRestoresSeats(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.Equal(t, 10, seatsAt(t, s, 5, "2025-11-11", "19:00"))

			res, err := s.Book(ctx, BookingRequest{
				RestaurantID: 5,
				Date:         "2025-11-11",
				Time:         "19:00",
				PartySize:    4,
				UserName:     "Asha",
			})
			require.NoError(t, err)
			assert.Equal(t, StatusConfirmed, res.Status)
			assert.Equal(t, "GoodFoods - Japanese - MG Road", res.RestaurantName)
			assert.Equal(t, ConfirmationCode(res.ID), res.ConfirmationCode())
			assert.Equal(t, 6, seatsAt(t, s, 5, "2025-11-11", "19:00"))

			cancelled, err := s.Cancel(ctx, res.ID, Owner{Name: "asha"})
			require.NoError(t, err)
			assert.Equal(t, StatusCancelled, cancelled.Status)
			assert.Equal(t, 10, seatsAt(t, s, 5, "2025-11-11", "19:00"))

			_, err = s.Cancel(ctx, res.ID, Owner{Name: "Asha"})
			require.ErrorIs(t, err, ErrAlreadyCancelled)
			assert.Equal(t, 10, seatsAt(t, s, 5, "2025-11-11", "19:00"))
		})
	}
}

func TestStore_ConcurrentBookingsNeverOversell(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			var (
				g        errgroup.Group
				booked   atomic.Int32
				rejected atomic.Int32
			)
			for i := 0; i < 25; i++ {
				g.Go(func() error {
					_, err := s.Book(context.Background(), BookingRequest{
						RestaurantID: 5,
						Date:         "2025-11-12",
						Time:         "20:00",
						PartySize:    1,
						UserName:     "load",
					})
					switch {
					case err == nil:
						booked.Add(1)
					case errors.Is(err, ErrInsufficientCapacity):
						rejected.Add(1)
					default:
						return err
					}
					return nil
				})
			}
			require.NoError(t, g.Wait())
			assert.EqualValues(t, 10, booked.Load())
			assert.EqualValues(t, 15, rejected.Load())
			assert.Equal(t, 0, seatsAt(t, s, 5, "2025-11-12", "20:00"))
		})
	}
}

func TestStore_ConcurrentCancelRestoresOnce(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			res, err := s.Book(ctx, BookingRequest{RestaurantID: 2, Date: "2025-11-10", Time: "18:00", PartySize: 6, UserName: "Ravi"})
			require.NoError(t, err)

			var (
				g         errgroup.Group
				succeeded atomic.Int32
			)
			for i := 0; i < 8; i++ {
				g.Go(func() error {
					_, err := s.Cancel(ctx, res.ID, Owner{})
					if err == nil {
						succeeded.Add(1)
						return nil
					}
					if errors.Is(err, ErrAlreadyCancelled) {
						return nil
					}
					return err
				})
			}
			require.NoError(t, g.Wait())
			assert.EqualValues(t, 1, succeeded.Load())
			assert.Equal(t, 20, seatsAt(t, s, 2, "2025-11-10", "18:00"))
		})
	}
}

func TestStore_BookErrors(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			cases := []struct {
				name string
				req  BookingRequest
				want error
			}{
				{"unknown restaurant", BookingRequest{RestaurantID: 99, Date: "2025-11-10", Time: "18:00", PartySize: 2}, ErrRestaurantNotFound},
				{"no slot", BookingRequest{RestaurantID: 1, Date: "2025-11-10", Time: "09:00", PartySize: 2}, ErrNoSuchSlot},
				{"zero party", BookingRequest{RestaurantID: 1, Date: "2025-11-10", Time: "18:00", PartySize: 0}, ErrInvalidPartySize},
				{"over capacity", BookingRequest{RestaurantID: 5, Date: "2025-11-10", Time: "18:00", PartySize: 11}, ErrInsufficientCapacity},
			}
			for _, tc := range cases {
				_, err := s.Book(ctx, tc.req)
				require.ErrorIs(t, err, tc.want, tc.name)
			}
			assert.Equal(t, 10, seatsAt(t, s, 5, "2025-11-10", "18:00"))
		})
	}
}

func TestStore_CancelErrors(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Cancel(ctx, 4242, Owner{})
			require.ErrorIs(t, err, ErrReservationNotFound)

			res, err := s.Book(ctx, BookingRequest{RestaurantID: 1, Date: "2025-11-10", Time: "19:00", PartySize: 2, UserID: "u-1", UserName: "Meera"})
			require.NoError(t, err)

			_, err = s.Cancel(ctx, res.ID, Owner{UserID: "u-2", Name: "Meera"})
			require.ErrorIs(t, err, ErrNotOwner)
			assert.Equal(t, 38, seatsAt(t, s, 1, "2025-11-10", "19:00"))

			_, err = s.Cancel(ctx, res.ID, Owner{UserID: "u-1"})
			require.NoError(t, err)
		})
	}
}

// setSlotSeats and dropSlot change a slot behind the store's back.
func setSlotSeats(t *testing.T, s Store, key SlotKey, seats int) {
	t.Helper()
	switch st := s.(type) {
	case *MemoryStore:
		st.mu.Lock()
		st.slots[key] = seats
		st.mu.Unlock()
	case *BunStore:
		_, err := st.db.NewUpdate().
			Model((*slotRow)(nil)).
			Set("seats_remaining = ?", seats).
			Where("restaurant_id = ?", key.RestaurantID).
			Where("slot_date = ?", key.Date).
			Where("slot_time = ?", key.Time).
			Exec(context.Background())
		require.NoError(t, err)
	default:
		t.Fatalf("unexpected store %T", s)
	}
}

func dropSlot(t *testing.T, s Store, key SlotKey) {
	t.Helper()
	switch st := s.(type) {
	case *MemoryStore:
		st.mu.Lock()
		delete(st.slots, key)
		st.mu.Unlock()
	case *BunStore:
		_, err := st.db.NewDelete().
			Model((*slotRow)(nil)).
			Where("restaurant_id = ?", key.RestaurantID).
			Where("slot_date = ?", key.Date).
			Where("slot_time = ?", key.Time).
			Exec(context.Background())
		require.NoError(t, err)
	default:
		t.Fatalf("unexpected store %T", s)
	}
}

func TestStore_ReseedKeepsBookedSeats(t *testing.T) {
	f, err := LoadSeedFile("testdata/restaurants.yaml")
	require.NoError(t, err)

	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			res, err := s.Book(ctx, BookingRequest{RestaurantID: 5, Date: "2025-11-11", Time: "19:00", PartySize: 4, UserName: "Asha"})
			require.NoError(t, err)
			require.Equal(t, 6, seatsAt(t, s, 5, "2025-11-11", "19:00"))

			_, err = Seed(ctx, s, f, seedStart)
			require.NoError(t, err)
			assert.Equal(t, 6, seatsAt(t, s, 5, "2025-11-11", "19:00"))

			_, err = s.Cancel(ctx, res.ID, Owner{Name: "Asha"})
			require.NoError(t, err)
			assert.Equal(t, 10, seatsAt(t, s, 5, "2025-11-11", "19:00"))
		})
	}
}

func TestStore_CancelNeverExceedsCapacity(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := SlotKey{RestaurantID: 5, Date: "2025-11-11", Time: "19:00"}
			asha := Owner{Name: "Asha"}

			res, err := s.Book(ctx, BookingRequest{RestaurantID: 5, Date: key.Date, Time: key.Time, PartySize: 4, UserName: "Asha"})
			require.NoError(t, err)
			setSlotSeats(t, s, key, 9)

			_, err = s.Cancel(ctx, res.ID, asha)
			require.NoError(t, err)
			assert.Equal(t, 10, seatsAt(t, s, 5, key.Date, key.Time))

			res, err = s.Book(ctx, BookingRequest{RestaurantID: 5, Date: key.Date, Time: key.Time, PartySize: 2, UserName: "Asha"})
			require.NoError(t, err)
			dropSlot(t, s, key)

			_, err = s.Cancel(ctx, res.ID, asha)
			require.ErrorIs(t, err, ErrNoSuchSlot)
			list, err := s.ListReservationsFor(ctx, asha)
			require.NoError(t, err)
			require.Len(t, list, 1)
			assert.Equal(t, StatusConfirmed, list[0].Status)
		})
	}
}

func TestStore_ConfirmationCodesAreUnique(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			seen := make(map[string]struct{})
			for i := 0; i < 6; i++ {
				res, err := s.Book(context.Background(), BookingRequest{RestaurantID: 1, Date: "2025-11-11", Time: "18:00", PartySize: 2, UserName: "Dev"})
				require.NoError(t, err)
				code := res.ConfirmationCode()
				assert.Regexp(t, `^GF-\d{4,}$`, code)
				_, dup := seen[code]
				require.False(t, dup, code)
				seen[code] = struct{}{}
			}
		})
	}
}

func TestStore_ListRestaurantsFilters(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			all, err := s.ListRestaurants(ctx, RestaurantFilter{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, int64(5), all[0].ID)

			italian, err := s.ListRestaurants(ctx, RestaurantFilter{Cuisine: "italian"})
			require.NoError(t, err)
			require.Len(t, italian, 2)
			assert.Equal(t, []int64{1, 3}, []int64{italian[0].ID, italian[1].ID})

			loc, err := s.ListRestaurants(ctx, RestaurantFilter{Location: "indira"})
			require.NoError(t, err)
			require.Len(t, loc, 1)
			assert.Equal(t, int64(2), loc[0].ID)
			assert.Equal(t, []string{"Vegan Options"}, loc[0].Features)

			rated, err := s.ListRestaurants(ctx, RestaurantFilter{Cuisine: "Italian", MinRating: 4.0, PriceRange: "$$$"})
			require.NoError(t, err)
			require.Len(t, rated, 1)
			assert.Equal(t, int64(1), rated[0].ID)

			_, err = s.GetRestaurant(ctx, 404)
			require.ErrorIs(t, err, ErrRestaurantNotFound)
		})
	}
}

func TestStore_AvailabilityAndTimes(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Book(ctx, BookingRequest{RestaurantID: 5, Date: "2025-11-10", Time: "19:00", PartySize: 8, UserName: "Kiran"})
			require.NoError(t, err)

			av, err := s.CheckAvailability(ctx, 5, "2025-11-10", "19:00", 4)
			require.NoError(t, err)
			assert.False(t, av.Available)
			assert.Equal(t, 2, av.SeatsRemaining)
			assert.NotEmpty(t, av.Reason)

			_, err = s.CheckAvailability(ctx, 5, "2025-12-25", "19:00", 4)
			require.ErrorIs(t, err, ErrNoSuchSlot)

			times, err := s.AvailableTimes(ctx, 5, "2025-11-10", 4)
			require.NoError(t, err)
			assert.Equal(t, []string{"18:00", "20:00", "21:00"}, times)
		})
	}
}

func TestStore_ListReservationsForOwner(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			book := func(date, tm, user string) Reservation {
				res, err := s.Book(ctx, BookingRequest{RestaurantID: 1, Date: date, Time: tm, PartySize: 2, UserName: user})
				require.NoError(t, err)
				return res
			}
			late := book("2025-11-12", "18:00", "Nila")
			early := book("2025-11-10", "21:00", "Nila")
			mid := book("2025-11-11", "18:00", "Nila")
			book("2025-11-11", "18:00", "Someone Else")
			gone := book("2025-11-11", "19:00", "Nila")
			_, err := s.Cancel(ctx, gone.ID, Owner{Name: "Nila"})
			require.NoError(t, err)

			list, err := s.ListReservationsFor(ctx, Owner{Name: "nila"})
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, []int64{early.ID, mid.ID, late.ID}, []int64{list[0].ID, list[1].ID, list[2].ID})
			assert.Equal(t, "GoodFoods - Italian - Koramangala", list[0].RestaurantName)

			empty, err := s.ListReservationsFor(ctx, Owner{})
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_Analytics(t *testing.T) {
	for name, s := range newSeededStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, req := range []BookingRequest{
				{RestaurantID: 1, Date: "2025-11-10", Time: "19:00", PartySize: 2, UserName: "a"},
				{RestaurantID: 3, Date: "2025-11-10", Time: "19:00", PartySize: 3, UserName: "b"},
				{RestaurantID: 2, Date: "2025-11-10", Time: "20:00", PartySize: 4, UserName: "c"},
			} {
				_, err := s.Book(ctx, req)
				require.NoError(t, err)
			}

			a, err := s.Analytics(ctx, AnalyticsFilter{})
			require.NoError(t, err)
			assert.Equal(t, 3, a.TotalReservations)
			require.NotEmpty(t, a.PopularCuisines)
			assert.Equal(t, CountByKey{Key: "Italian", Count: 2}, a.PopularCuisines[0])
			assert.Equal(t, CountByKey{Key: "19:00", Count: 2}, a.BusiestTimes[0])
			assert.Nil(t, a.Restaurant)

			one, err := s.Analytics(ctx, AnalyticsFilter{RestaurantID: 3})
			require.NoError(t, err)
			require.NotNil(t, one.Restaurant)
			assert.Equal(t, 1, one.Restaurant.TotalReservations)
			assert.Equal(t, 3, one.Restaurant.SeatsBooked)

			thai, err := s.Analytics(ctx, AnalyticsFilter{Cuisine: "thai"})
			require.NoError(t, err)
			assert.Equal(t, 1, thai.TotalReservations)
		})
	}
}
