package orchestratornode

import (
	"fmt"
	"strings"

	contractx "github.com/tanpawarit/table-reservation-agent/agent/contract"
	"github.com/tanpawarit/table-reservation-agent/agent/tool"
	"github.com/tanpawarit/table-reservation-agent/reservation"
)

// FallbackReply describes the last result without the backend. It never
// claims an outcome the result does not carry.
func FallbackReply(results []contractx.ToolResult) string {
	if len(results) == 0 {
		return BackendApology
	}
	last := results[len(results)-1]

	switch tool.KindOf(last.Tool) {
	case tool.KindBook:
		return bookingReply(last)
	case tool.KindSearch:
		return searchReply(last)
	case tool.KindAvailability:
		return availabilityReply(last)
	case tool.KindCancel:
		return cancelReply(last)
	case tool.KindListReservations:
		return listingReply(last)
	case tool.KindAnalytics:
		return analyticsReply(last)
	default:
		if !last.Success {
			return fmt.Sprintf("Sorry, I couldn't complete that request: %s.", trimDot(last.Error))
		}
		return "Your request has been processed."
	}
}

func bookingReply(r contractx.ToolResult) string {
	if !r.Success {
		return withAlternatives(fmt.Sprintf("I couldn't complete the booking: %s.", trimDot(r.Error)), r)
	}
	return fmt.Sprintf("Your table for %d at %s is confirmed for %s at %s. Confirmation code: %s.",
		r.Int("party_size"), r.String("restaurant_name"), r.String("date"), r.String("time"), r.String("confirmation_code"))
}

func searchReply(r contractx.ToolResult) string {
	if !r.Success {
		return fmt.Sprintf("I couldn't search for restaurants: %s.", trimDot(r.Error))
	}
	recs, _ := r.Fields["recommendations"].([]map[string]any)
	if len(recs) == 0 {
		return "I couldn't find any restaurants matching that request. Try a different cuisine, area or time."
	}
	var b strings.Builder
	b.WriteString("Here are the restaurants I found:")
	for i, rec := range recs {
		fmt.Fprintf(&b, "\n%d. %v (%v), rated %v", i+1, rec["name"], rec["location"], rec["rating"])
		if available, ok := rec["available"].(bool); ok {
			if available {
				b.WriteString(", available")
			} else {
				b.WriteString(", not available at that time")
			}
		}
	}
	b.WriteString("\nWhich one would you like?")
	return b.String()
}

func availabilityReply(r contractx.ToolResult) string {
	if !r.Success {
		return fmt.Sprintf("I couldn't check availability: %s.", trimDot(r.Error))
	}
	name := r.String("restaurant_name")
	if available, _ := r.Fields["available"].(bool); available {
		return fmt.Sprintf("%s has a table for %d on %s at %s. Would you like me to book it?",
			name, r.Int("party_size"), r.String("date"), r.String("time"))
	}
	return withAlternatives(fmt.Sprintf("%s is not available then: %s.", name, trimDot(r.String("reason"))), r)
}

func cancelReply(r contractx.ToolResult) string {
	if !r.Success {
		return fmt.Sprintf("I couldn't cancel that reservation: %s.", trimDot(r.Error))
	}
	return fmt.Sprintf("Reservation %s at %s on %s at %s has been cancelled.",
		r.String("confirmation_code"), r.String("restaurant_name"), r.String("date"), r.String("time"))
}

func listingReply(r contractx.ToolResult) string {
	if !r.Success {
		return fmt.Sprintf("I couldn't look up your reservations: %s.", trimDot(r.Error))
	}
	items, _ := r.Fields["reservations"].([]map[string]any)
	if len(items) == 0 {
		return "You have no upcoming reservations."
	}
	var b strings.Builder
	if len(items) == 1 {
		b.WriteString("You have 1 reservation:")
	} else {
		fmt.Fprintf(&b, "You have %d reservations:", len(items))
	}
	for _, it := range items {
		fmt.Fprintf(&b, "\n- %v: %v on %v at %v for %v", it["confirmation_code"], it["restaurant_name"], it["date"], it["time"], it["party_size"])
	}
	return b.String()
}

func analyticsReply(r contractx.ToolResult) string {
	if !r.Success {
		return fmt.Sprintf("I couldn't retrieve the statistics: %s.", trimDot(r.Error))
	}
	a, ok := r.Fields["analytics"].(reservation.Analytics)
	if !ok {
		return "The statistics have been retrieved."
	}
	if a.Restaurant != nil {
		return fmt.Sprintf("%s has %d confirmed reservations covering %d seats.",
			a.Restaurant.RestaurantName, a.Restaurant.TotalReservations, a.Restaurant.SeatsBooked)
	}
	reply := fmt.Sprintf("There are %d confirmed reservations.", a.TotalReservations)
	if len(a.PopularCuisines) > 0 {
		reply += fmt.Sprintf(" The most booked cuisine is %s.", a.PopularCuisines[0].Key)
	}
	if len(a.BusiestTimes) > 0 {
		reply += fmt.Sprintf(" The busiest time is %s.", a.BusiestTimes[0].Key)
	}
	return reply
}

func withAlternatives(reply string, r contractx.ToolResult) string {
	alts, _ := r.Fields["alternative_times"].([]string)
	if len(alts) == 0 {
		return reply
	}
	return reply + " Available times that day: " + strings.Join(alts, ", ") + "."
}

func trimDot(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".")
}
