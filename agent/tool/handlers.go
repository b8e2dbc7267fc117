package tool

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/reservation"
)

func (r *Router) search(ctx context.Context, spec Spec, in Values) contractx.ToolResult {
	filter := reservation.RestaurantFilter{
		Cuisine:    in.String("cuisine"),
		Location:   in.String("location"),
		MinRating:  in.Float("min_rating"),
		PriceRange: in.String("price_range"),
	}
	candidates, err := r.store.ListRestaurants(ctx, filter)
	if err != nil {
		return contractx.Failed(spec.Name, nil, "Error getting recommendations: "+err.Error())
	}

	query := in.String("query")
	if query != "" {
		scored, err := r.ranker.Rank(ctx, query, candidates)
		if err != nil {
			return contractx.Failed(spec.Name, nil, "Error getting recommendations: "+err.Error())
		}
		candidates = candidates[:0]
		for _, s := range scored {
			candidates = append(candidates, s.Restaurant)
		}
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	type ranked struct {
		restaurant reservation.Restaurant
		checked    bool
		available  bool
		seats      int
	}
	rows := make([]ranked, 0, len(candidates))
	for _, c := range candidates {
		rows = append(rows, ranked{restaurant: c})
	}

	date, tm, party := in.String("date"), in.String("time"), in.Int("party_size")
	if date != "" && tm != "" && party > 0 {
		availableFirst := make([]ranked, 0, len(rows))
		var unavailable []ranked
		for _, row := range rows {
			row.checked = true
			av, err := r.store.CheckAvailability(ctx, row.restaurant.ID, date, tm, party)
			switch {
			case err == nil && av.Available:
				row.available, row.seats = true, av.SeatsRemaining
				availableFirst = append(availableFirst, row)
			case err == nil, errors.Is(err, reservation.ErrNoSuchSlot):
				unavailable = append(unavailable, row)
			default:
				return contractx.Failed(spec.Name, nil, "Error getting recommendations: "+err.Error())
			}
		}
		rows = append(availableFirst, unavailable...)
	}
	if len(rows) > maxRecommendations {
		rows = rows[:maxRecommendations]
	}

	recs := make([]map[string]any, 0, len(rows))
	for i, row := range rows {
		rest := row.restaurant
		rec := map[string]any{
			"rank":        i + 1,
			"id":          rest.ID,
			"name":        rest.Name,
			"cuisine":     rest.Cuisine,
			"location":    rest.Location,
			"rating":      rest.Rating,
			"price_range": rest.PriceRange,
			"capacity":    rest.Capacity,
			"features":    rest.Features,
			"description": rest.Description,
		}
		if row.checked {
			rec["available"] = row.available
			if row.available {
				rec["seats_available"] = row.seats
			}
		}
		recs = append(recs, rec)
	}

	return contractx.Succeeded(spec.Name, nil, map[string]any{
		"query":           query,
		"count":           len(recs),
		"recommendations": recs,
		"message":         fmt.Sprintf("Found %d restaurant recommendations", len(recs)),
	})
}

func (r *Router) availability(ctx context.Context, spec Spec, in Values) contractx.ToolResult {
	id, date, tm, party := in.Int("restaurant_id"), in.String("date"), in.String("time"), in.Int("party_size")

	restaurant, err := r.store.GetRestaurant(ctx, int64(id))
	if errors.Is(err, reservation.ErrRestaurantNotFound) {
		return contractx.Failed(spec.Name, nil, restaurantNotFound(id))
	}
	if err != nil {
		return contractx.Failed(spec.Name, nil, "Error checking availability: "+err.Error())
	}

	fields := map[string]any{
		"restaurant_id":   restaurant.ID,
		"restaurant_name": restaurant.Name,
		"date":            date,
		"time":            tm,
		"party_size":      party,
	}

	av, err := r.store.CheckAvailability(ctx, restaurant.ID, date, tm, party)
	switch {
	case errors.Is(err, reservation.ErrNoSuchSlot):
		av = reservation.Availability{Available: false, Reason: "No availability for that date and time"}
	case err != nil:
		return contractx.Failed(spec.Name, nil, "Error checking availability: "+err.Error())
	}

	fields["available"] = av.Available
	if av.Available {
		fields["seats_available"] = av.SeatsRemaining
		fields["message"] = fmt.Sprintf("%s has availability for %d guests", restaurant.Name, party)
		return contractx.Succeeded(spec.Name, nil, fields)
	}

	fields["reason"] = av.Reason
	fields["message"] = fmt.Sprintf("%s is not available: %s", restaurant.Name, av.Reason)
	if alts := r.alternatives(ctx, restaurant.ID, date, party); len(alts) > 0 {
		fields["alternative_times"] = alts
	}
	return contractx.Succeeded(spec.Name, nil, fields)
}

func (r *Router) book(ctx context.Context, spec Spec, in Values) contractx.ToolResult {
	req := reservation.BookingRequest{
		RestaurantID:    int64(in.Int("restaurant_id")),
		Date:            in.String("date"),
		Time:            in.String("time"),
		PartySize:       in.Int("party_size"),
		UserID:          in.String(contractx.FactUserID),
		UserName:        in.String(contractx.FactUserName),
		UserEmail:       in.String(contractx.FactUserEmail),
		SpecialRequests: in.String("special_requests"),
	}
	if req.UserName == "" {
		req.UserName = contractx.Identity{}.Name()
	}

	res, err := r.store.Book(ctx, req)
	if err != nil {
		out := contractx.Failed(spec.Name, nil, r.bookingError(ctx, req, err))
		if errors.Is(err, reservation.ErrInsufficientCapacity) || errors.Is(err, reservation.ErrNoSuchSlot) {
			if alts := r.alternatives(ctx, req.RestaurantID, req.Date, req.PartySize); len(alts) > 0 {
				out = out.With("alternative_times", alts)
			}
		}
		return out
	}

	r.publish(ctx, TopicReservationConfirmed, res)

	fields := map[string]any{
		"reservation_id":    res.ID,
		"confirmation_code": res.ConfirmationCode(),
		"restaurant_id":     res.RestaurantID,
		"restaurant_name":   res.RestaurantName,
		"date":              res.Date,
		"time":              res.Time,
		"party_size":        res.PartySize,
		"user_name":         res.UserName,
		"status":            string(res.Status),
	}
	if res.SpecialRequests != "" {
		fields["special_requests"] = res.SpecialRequests
	}
	return contractx.Succeeded(spec.Name, nil, fields)
}

func (r *Router) bookingError(ctx context.Context, req reservation.BookingRequest, err error) string {
	switch {
	case errors.Is(err, reservation.ErrRestaurantNotFound):
		return restaurantNotFound(int(req.RestaurantID))
	case errors.Is(err, reservation.ErrNoSuchSlot):
		return "No availability for that date and time"
	case errors.Is(err, reservation.ErrInvalidPartySize):
		return "party_size must be greater than zero"
	case errors.Is(err, reservation.ErrInsufficientCapacity):
		if av, avErr := r.store.CheckAvailability(ctx, req.RestaurantID, req.Date, req.Time, req.PartySize); avErr == nil && av.Reason != "" {
			return av.Reason
		}
		return "Not enough seats available"
	default:
		return "Error creating reservation: " + err.Error()
	}
}

func (r *Router) cancel(ctx context.Context, spec Spec, in Values) contractx.ToolResult {
	id := int64(in.Int("reservation_id"))
	res, err := r.store.Cancel(ctx, id, ownerFrom(in))
	switch {
	case errors.Is(err, reservation.ErrReservationNotFound):
		return contractx.Failed(spec.Name, nil, "Reservation not found")
	case errors.Is(err, reservation.ErrAlreadyCancelled):
		return contractx.Failed(spec.Name, nil, "Reservation already cancelled")
	case errors.Is(err, reservation.ErrNotOwner):
		return contractx.Failed(spec.Name, nil, "Reservation belongs to another guest")
	case err != nil:
		return contractx.Failed(spec.Name, nil, "Error cancelling reservation: "+err.Error())
	}

	r.publish(ctx, TopicReservationCancelled, res)

	return contractx.Succeeded(spec.Name, nil, map[string]any{
		"reservation_id":    res.ID,
		"confirmation_code": res.ConfirmationCode(),
		"restaurant_name":   res.RestaurantName,
		"date":              res.Date,
		"time":              res.Time,
		"party_size":        res.PartySize,
		"status":            string(res.Status),
		"message":           fmt.Sprintf("Reservation #%d has been cancelled successfully", res.ID),
	})
}

func (r *Router) listReservations(ctx context.Context, spec Spec, in Values) contractx.ToolResult {
	owner := ownerFrom(in)
	if owner.IsZero() {
		return contractx.Failed(spec.Name, nil, "User name required")
	}
	list, err := r.store.ListReservationsFor(ctx, owner)
	if err != nil {
		return contractx.Failed(spec.Name, nil, "Error retrieving reservations: "+err.Error())
	}

	items := make([]map[string]any, 0, len(list))
	for _, res := range list {
		items = append(items, map[string]any{
			"reservation_id":    res.ID,
			"confirmation_code": res.ConfirmationCode(),
			"restaurant_name":   res.RestaurantName,
			"location":          res.Location,
			"date":              res.Date,
			"time":              res.Time,
			"party_size":        res.PartySize,
			"special_requests":  res.SpecialRequests,
		})
	}
	return contractx.Succeeded(spec.Name, nil, map[string]any{
		"user_name":    owner.Name,
		"count":        len(items),
		"reservations": items,
	})
}

func (r *Router) analytics(ctx context.Context, spec Spec, in Values) contractx.ToolResult {
	filter := reservation.AnalyticsFilter{
		Cuisine:      in.String("cuisine"),
		Location:     in.String("location"),
		RestaurantID: int64(in.Int("restaurant_id")),
	}
	a, err := r.store.Analytics(ctx, filter)
	if errors.Is(err, reservation.ErrRestaurantNotFound) {
		return contractx.Failed(spec.Name, nil, "Restaurant not found")
	}
	if err != nil {
		return contractx.Failed(spec.Name, nil, "Error retrieving analytics: "+err.Error())
	}

	fields := map[string]any{
		"analytics": a,
		"message":   "General analytics retrieved successfully",
	}
	if filter.Cuisine != "" || filter.Location != "" {
		fields["filters"] = map[string]string{"cuisine": filter.Cuisine, "location": filter.Location}
		fields["message"] = "Analytics for the requested filters"
	}
	if a.Restaurant != nil {
		fields["restaurant_id"] = a.Restaurant.RestaurantID
		fields["restaurant_name"] = a.Restaurant.RestaurantName
		fields["rating"] = a.Restaurant.Rating
		fields["capacity"] = a.Restaurant.Capacity
	}
	return contractx.Succeeded(spec.Name, nil, fields)
}

func (r *Router) alternatives(ctx context.Context, restaurantID int64, date string, party int) []string {
	times, err := r.store.AvailableTimes(ctx, restaurantID, date, party)
	if err != nil || len(times) == 0 {
		return nil
	}
	if len(times) > maxAlternatives {
		times = times[:maxAlternatives]
	}
	return times
}
