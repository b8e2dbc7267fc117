package tool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/reservation"
)

// Friday 2025-11-07, 15:00 local.
var testNow = time.Date(2025, 11, 7, 15, 0, 0, 0, time.UTC)

type factMap map[string]string

func (f factMap) Fact(key, def string) string {
	if v, ok := f[key]; ok {
		return v
	}
	return def
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func newTestRouter(t *testing.T) (*Router, *reservation.MemoryStore, *recordingPublisher) {
	t.Helper()

	store := reservation.NewMemoryStore()
	seed := reservation.SeedFile{
		Restaurants: []reservation.Restaurant{
			{ID: 1, Name: "GoodFoods - Italian - Koramangala", Cuisine: "Italian", Location: "Koramangala, Bangalore", Rating: 4.5, PriceRange: "$$", Capacity: 10, Features: []string{"Romantic", "Outdoor Seating"}},
			{ID: 2, Name: "GoodFoods - Thai - Indiranagar", Cuisine: "Thai", Location: "Indiranagar, Bangalore", Rating: 4.9, PriceRange: "$$", Capacity: 4},
			{ID: 3, Name: "GoodFoods - Italian - Whitefield", Cuisine: "Italian", Location: "Whitefield, Bangalore", Rating: 3.9, PriceRange: "$", Capacity: 2},
		},
		Slots: reservation.SlotPlan{Days: 14, FirstSlot: "18:00", LastSlot: "21:00", StepMin: 60},
	}
	if _, err := reservation.Seed(context.Background(), store, seed, testNow); err != nil {
		t.Fatalf("seed: %v", err)
	}
	pub := &recordingPublisher{}
	return NewRouter(store, WithPublisher(pub)), store, pub
}

func call(name string, args map[string]any) contractx.ToolCall {
	return contractx.ToolCall{Name: name, Args: args}
}

func TestNormalizeDate(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"today":         "2025-11-07",
		"Tonight":       "2025-11-07",
		"tomorrow":      "2025-11-08",
		"next friday":   "2025-11-14",
		"next Saturday": "2025-11-08",
		"next mon":      "2025-11-10",
		"next week":     "2025-11-14",
		"wednesday":     "2025-11-12",
		"2025-12-01":    "2025-12-01",
		" 2025-12-01 ":  "2025-12-01",
	}
	for in, want := range cases {
		got, err := NormalizeDate(in, testNow)
		if err != nil {
			t.Fatalf("NormalizeDate(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeDate(%q) = %s, want %s", in, got, want)
		}
	}
	for _, bad := range []string{"12/01/2025", "someday", "2025-13-01"} {
		if _, err := NormalizeDate(bad, testNow); err == nil {
			t.Fatalf("NormalizeDate(%q) must fail", bad)
		}
	}
}

func TestNormalizeTime(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"7pm":      "19:00",
		"7 PM":     "19:00",
		"7:30 pm":  "19:30",
		"7 p.m.":   "19:00",
		"12am":     "00:00",
		"12pm":     "12:00",
		"11am":     "11:00",
		"19:00":    "19:00",
		"19:00:00": "19:00",
		"9:05":     "09:05",
		"noon":     "12:00",
	}
	for in, want := range cases {
		got, err := NormalizeTime(in)
		if err != nil {
			t.Fatalf("NormalizeTime(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeTime(%q) = %s, want %s", in, got, want)
		}
		again, err := NormalizeTime(got)
		if err != nil || again != got {
			t.Fatalf("NormalizeTime must be idempotent: %q -> %q -> %q (%v)", in, got, again, err)
		}
	}
	for _, bad := range []string{"25:00", "13pm", "0am", "7:5", "abc", "pm", "19:60"} {
		if _, err := NormalizeTime(bad); err == nil {
			t.Fatalf("NormalizeTime(%q) must fail", bad)
		}
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	out := router.Dispatch(context.Background(), call("order_pizza", nil), factMap{}, testNow)
	if out.Success || out.Error != "unknown tool" {
		t.Fatalf("unexpected result: %+v", out)
	}
	env := out.Envelope()
	if env["success"] != false || env["error"] != "unknown tool" {
		t.Fatalf("unexpected envelope: %#v", env)
	}
}

func TestDispatchValidation(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing restaurant", map[string]any{"date": "today", "time": "7pm", "party_size": 2}, "restaurant_id"},
		{"zero party", map[string]any{"restaurant_id": 1, "date": "today", "time": "7pm", "party_size": 0}, "party_size"},
		{"fractional party", map[string]any{"restaurant_id": 1, "date": "today", "time": "7pm", "party_size": 2.5}, "party_size"},
		{"bad time", map[string]any{"restaurant_id": 1, "date": "today", "time": "late", "party_size": 2}, "time"},
		{"bad date", map[string]any{"restaurant_id": 1, "date": "11/11", "time": "19:00", "party_size": 2}, "date"},
	}
	for _, tc := range cases {
		out := router.Dispatch(context.Background(), call(ToolBookReservation, tc.args), factMap{}, testNow)
		if out.Success {
			t.Fatalf("%s: expected failure", tc.name)
		}
		if !strings.Contains(out.Error, tc.want) {
			t.Fatalf("%s: error %q should mention %s", tc.name, out.Error, tc.want)
		}
	}
}

func TestDispatchBookNormalisesAndInjectsIdentity(t *testing.T) {
	t.Parallel()

	router, store, pub := newTestRouter(t)
	facts := factMap{contractx.FactUserName: "Asha", contractx.FactUserID: "u-1"}

	out := router.Dispatch(context.Background(), call(ToolBookReservation, map[string]any{
		"restaurant_id": "1",
		"date":          "tomorrow",
		"time":          "7pm",
		"party_size":    "4",
	}), facts, testNow)
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.String("date") != "2025-11-08" || out.String("time") != "19:00" {
		t.Fatalf("temporal args not normalised: %+v", out.Fields)
	}
	if out.String("confirmation_code") != "GF-0001" || out.String("user_name") != "Asha" {
		t.Fatalf("unexpected booking fields: %+v", out.Fields)
	}
	if out.Args["user_name"] != "Asha" {
		t.Fatalf("identity not injected into args: %#v", out.Args)
	}

	av, err := store.CheckAvailability(context.Background(), 1, "2025-11-08", "19:00", 1)
	if err != nil || av.SeatsRemaining != 6 {
		t.Fatalf("expected 6 seats left, got %+v (%v)", av, err)
	}
	if len(pub.topics) != 1 || pub.topics[0] != TopicReservationConfirmed {
		t.Fatalf("unexpected events: %v", pub.topics)
	}
}

func TestDispatchBookKeepsDialogueName(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	out := router.Dispatch(context.Background(), call(ToolBookReservation, map[string]any{
		"restaurant_id": 1,
		"date":          "2025-11-09",
		"time":          "18:00",
		"party_size":    2,
		"user_name":     "Ravi",
	}), factMap{contractx.FactUserName: "Asha"}, testNow)
	if !out.Success || out.String("user_name") != "Ravi" {
		t.Fatalf("dialogue-supplied name must win: %+v", out)
	}
}

func TestDispatchIdentityComesFromSession(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	ctx := context.Background()
	owner := factMap{contractx.FactUserID: "victim-123", contractx.FactUserName: "Vera"}
	other := factMap{contractx.FactUserID: "attacker-9", contractx.FactUserName: "Mallory"}
	claimed := map[string]any{contractx.FactUserID: "victim-123", contractx.FactUserName: "Vera"}

	booked := router.Dispatch(ctx, call(ToolBookReservation, map[string]any{
		"restaurant_id": 1, "date": "2025-11-09", "time": "19:00", "party_size": 2,
	}), owner, testNow)
	if !booked.Success {
		t.Fatalf("book: %+v", booked)
	}

	list := router.Dispatch(ctx, call(ToolGetUserReservations, claimed), other, testNow)
	if !list.Success || list.Int("count") != 0 {
		t.Fatalf("a dialogue user_id must not reveal another account's bookings: %+v", list)
	}
	if list.Args[contractx.FactUserID] != "attacker-9" {
		t.Fatalf("session user id must replace the dialogue one: %#v", list.Args)
	}

	cancelArgs := map[string]any{"reservation_id": 1}
	for k, v := range claimed {
		cancelArgs[k] = v
	}
	cancel := router.Dispatch(ctx, call(ToolCancelReservation, cancelArgs), other, testNow)
	if cancel.Success || cancel.Error != "Reservation belongs to another guest" {
		t.Fatalf("a dialogue user_id must not cancel another account's booking: %+v", cancel)
	}

	spoofed := router.Dispatch(ctx, call(ToolBookReservation, map[string]any{
		"restaurant_id": 1, "date": "2025-11-09", "time": "20:00", "party_size": 2, "user_id": "victim-123",
	}), other, testNow)
	if !spoofed.Success || spoofed.Args[contractx.FactUserID] != "attacker-9" {
		t.Fatalf("bookings are attributed to the session user: %+v", spoofed)
	}

	anonymous := router.Dispatch(ctx, call(ToolGetUserReservations, claimed), factMap{}, testNow)
	if anonymous.Success || anonymous.Error != "User name required" {
		t.Fatalf("identity tools ignore dialogue identity without a session user: %+v", anonymous)
	}

	list = router.Dispatch(ctx, call(ToolGetUserReservations, nil), owner, testNow)
	if list.Int("count") != 1 {
		t.Fatalf("owner must still see the booking: %+v", list)
	}
}

func TestDispatchBookCapacityFailureOffersAlternatives(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	out := router.Dispatch(context.Background(), call(ToolBookReservation, map[string]any{
		"restaurant_id": 3,
		"date":          "2025-11-09",
		"time":          "19:00",
		"party_size":    3,
	}), factMap{}, testNow)
	if out.Success {
		t.Fatalf("expected failure, got %+v", out)
	}
	if out.Error != "Only 2 seats available, need 3" {
		t.Fatalf("unexpected error: %q", out.Error)
	}
	if _, ok := out.Fields["alternative_times"]; ok {
		t.Fatalf("no slot seats 3 at restaurant 3, got %+v", out.Fields)
	}

	out = router.Dispatch(context.Background(), call(ToolBookReservation, map[string]any{
		"restaurant_id": 2,
		"date":          "2025-11-09",
		"time":          "19:00",
		"party_size":    4,
	}), factMap{}, testNow)
	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	out = router.Dispatch(context.Background(), call(ToolBookReservation, map[string]any{
		"restaurant_id": 2,
		"date":          "2025-11-09",
		"time":          "19:00",
		"party_size":    2,
	}), factMap{}, testNow)
	if out.Success {
		t.Fatalf("expected failure on a full slot, got %+v", out)
	}
	alts, _ := out.Fields["alternative_times"].([]string)
	if strings.Join(alts, ",") != "18:00,20:00,21:00" {
		t.Fatalf("unexpected alternatives: %#v", out.Fields["alternative_times"])
	}
}

func TestDispatchAvailability(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	ctx := context.Background()

	out := router.Dispatch(ctx, call(ToolCheckAvailability, map[string]any{
		"restaurant_id": 1, "date": "today", "time": "8pm", "party_size": 2,
	}), factMap{}, testNow)
	if !out.Success || out.Fields["available"] != true || out.Int("seats_available") != 10 {
		t.Fatalf("unexpected availability: %+v", out)
	}

	out = router.Dispatch(ctx, call(ToolCheckAvailability, map[string]any{
		"restaurant_id": 1, "date": "today", "time": "10am", "party_size": 2,
	}), factMap{}, testNow)
	if !out.Success || out.Fields["available"] != false || out.String("reason") == "" {
		t.Fatalf("missing slot must be reported as unavailable: %+v", out)
	}

	out = router.Dispatch(ctx, call(ToolCheckAvailability, map[string]any{
		"restaurant_id": 99, "date": "today", "time": "8pm", "party_size": 2,
	}), factMap{}, testNow)
	if out.Success || out.Error != "Restaurant with ID 99 not found" {
		t.Fatalf("unexpected result: %+v", out)
	}

	out = router.Dispatch(ctx, call(ToolCheckAvailability, map[string]any{
		"restaurant_id": 1, "date": "today", "time": "8pm", "party_size": 2, "cuisine": "Thai",
	}), factMap{}, testNow)
	if out.Success || !strings.Contains(out.Error, "search_restaurants") {
		t.Fatalf("expected misuse hint, got %+v", out)
	}
}

func TestDispatchSearchAvailableFirst(t *testing.T) {
	t.Parallel()

	router, store, _ := newTestRouter(t)
	ctx := context.Background()
	if _, err := store.Book(ctx, reservation.BookingRequest{RestaurantID: 2, Date: "2025-11-08", Time: "19:00", PartySize: 4, UserName: "x"}); err != nil {
		t.Fatalf("book: %v", err)
	}

	out := router.Dispatch(ctx, call(ToolRecommendRestaurants, map[string]any{
		"date": "tomorrow", "time": "7pm", "party_size": 2,
	}), factMap{}, testNow)
	if !out.Success || out.Tool != ToolSearchRestaurants {
		t.Fatalf("unexpected result: %+v", out)
	}
	recs, _ := out.Fields["recommendations"].([]map[string]any)
	if len(recs) != 3 {
		t.Fatalf("expected 3 recommendations, got %d", len(recs))
	}
	if recs[0]["id"] != int64(1) || recs[1]["id"] != int64(3) || recs[2]["id"] != int64(2) {
		t.Fatalf("available restaurants must come first by rating: %v %v %v", recs[0]["id"], recs[1]["id"], recs[2]["id"])
	}
	if recs[2]["available"] != false {
		t.Fatalf("full restaurant must be marked unavailable: %#v", recs[2])
	}

	out = router.Dispatch(ctx, call(ToolSearchRestaurants, map[string]any{"query": "romantic italian"}), factMap{}, testNow)
	recs, _ = out.Fields["recommendations"].([]map[string]any)
	if len(recs) == 0 || recs[0]["id"] != int64(1) {
		t.Fatalf("keyword ranking should put restaurant 1 first: %+v", out.Fields)
	}
	if _, checked := recs[0]["available"]; checked {
		t.Fatal("availability must only be annotated when date, time and party size are given")
	}
}

func TestDispatchCancelAndList(t *testing.T) {
	t.Parallel()

	router, store, pub := newTestRouter(t)
	ctx := context.Background()
	asha := factMap{contractx.FactUserName: "Asha"}

	booked := router.Dispatch(ctx, call(ToolBookReservation, map[string]any{
		"restaurant_id": 1, "date": "2025-11-10", "time": "20:00", "party_size": 3,
	}), asha, testNow)
	if !booked.Success {
		t.Fatalf("book: %+v", booked)
	}

	list := router.Dispatch(ctx, call(ToolListUserReservations, nil), asha, testNow)
	if !list.Success || list.Int("count") != 1 {
		t.Fatalf("unexpected listing: %+v", list)
	}

	other := router.Dispatch(ctx, call(ToolCancelReservation, map[string]any{"reservation_id": 1}), factMap{contractx.FactUserName: "Mallory"}, testNow)
	if other.Success || other.Error != "Reservation belongs to another guest" {
		t.Fatalf("cancel by a stranger must fail: %+v", other)
	}

	out := router.Dispatch(ctx, call(ToolCancelReservation, map[string]any{"reservation_id": "GF-0001"}), asha, testNow)
	if !out.Success || out.String("confirmation_code") != "GF-0001" {
		t.Fatalf("unexpected cancel: %+v", out)
	}
	av, _ := store.CheckAvailability(ctx, 1, "2025-11-10", "20:00", 1)
	if av.SeatsRemaining != 10 {
		t.Fatalf("cancel must restore seats, got %d", av.SeatsRemaining)
	}

	again := router.Dispatch(ctx, call(ToolCancelReservation, map[string]any{"reservation_id": 1}), asha, testNow)
	if again.Success || again.Error != "Reservation already cancelled" {
		t.Fatalf("unexpected second cancel: %+v", again)
	}
	missing := router.Dispatch(ctx, call(ToolCancelReservation, map[string]any{"reservation_id": 42}), asha, testNow)
	if missing.Error != "Reservation not found" {
		t.Fatalf("unexpected missing cancel: %+v", missing)
	}

	if strings.Join(pub.topics, ",") != TopicReservationConfirmed+","+TopicReservationCancelled {
		t.Fatalf("unexpected events: %v", pub.topics)
	}
}

func TestDispatchAnalytics(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	ctx := context.Background()
	for _, id := range []int{1, 3, 1} {
		out := router.Dispatch(ctx, call(ToolBookReservation, map[string]any{
			"restaurant_id": id, "date": "2025-11-12", "time": "19:00", "party_size": 1,
		}), factMap{contractx.FactUserName: "Dev"}, testNow)
		if !out.Success {
			t.Fatalf("book: %+v", out)
		}
	}

	out := router.Dispatch(ctx, call(ToolGetAnalytics, nil), factMap{}, testNow)
	a, ok := out.Fields["analytics"].(reservation.Analytics)
	if !out.Success || !ok || a.TotalReservations != 3 {
		t.Fatalf("unexpected analytics: %+v", out)
	}
	if a.PopularCuisines[0] != (reservation.CountByKey{Key: "Italian", Count: 3}) {
		t.Fatalf("unexpected cuisines: %+v", a.PopularCuisines)
	}

	out = router.Dispatch(ctx, call(ToolGetAnalytics, map[string]any{"restaurant_id": 1}), factMap{}, testNow)
	if !out.Success || out.String("restaurant_name") != "GoodFoods - Italian - Koramangala" {
		t.Fatalf("unexpected restaurant stats: %+v", out)
	}

	out = router.Dispatch(ctx, call(ToolGetAnalytics, map[string]any{"restaurant_id": 77}), factMap{}, testNow)
	if out.Success {
		t.Fatalf("expected failure for unknown restaurant: %+v", out)
	}
}

type failingRanker struct{}

func (failingRanker) Rank(context.Context, string, []reservation.Restaurant) ([]Scored, error) {
	return nil, errors.New("embedding service unavailable")
}

func TestDispatchSearchRankerFailure(t *testing.T) {
	t.Parallel()

	_, store, _ := newTestRouter(t)
	router := NewRouter(store, WithRanker(failingRanker{}), WithRanker(nil))

	out := router.Dispatch(context.Background(), call(ToolSearchRestaurants, map[string]any{"query": "thai"}), factMap{}, testNow)
	if out.Success || !strings.Contains(out.Error, "embedding service unavailable") {
		t.Fatalf("ranker errors must surface as a failed result: %+v", out)
	}

	out = router.Dispatch(context.Background(), call(ToolSearchRestaurants, map[string]any{"cuisine": "thai"}), factMap{}, testNow)
	if !out.Success {
		t.Fatalf("searches without a query never reach the ranker: %+v", out)
	}
}
