package tool

import "strings"

// Kind tags each backend operation. Handlers are chosen by Kind, never by
// reflecting on the call name.
type Kind int

const (
	KindUnknown Kind = iota
	KindSearch
	KindAvailability
	KindBook
	KindCancel
	KindListReservations
	KindAnalytics
)

func (k Kind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindAvailability:
		return "availability"
	case KindBook:
		return "book"
	case KindCancel:
		return "cancel"
	case KindListReservations:
		return "list_reservations"
	case KindAnalytics:
		return "analytics"
	default:
		return "unknown"
	}
}

const (
	ToolSearchRestaurants    = "search_restaurants"
	ToolRecommendRestaurants = "recommend_restaurants"
	ToolCheckAvailability    = "check_availability"
	ToolBookReservation      = "book_reservation"
	ToolCancelReservation    = "cancel_reservation"
	ToolGetUserReservations  = "get_user_reservations"
	ToolListUserReservations = "list_user_reservations"
	ToolGetAnalytics         = "get_analytics"
)

type ArgType int

const (
	ArgString ArgType = iota
	ArgInt
	ArgNumber
)

type temporal int

const (
	notTemporal temporal = iota
	temporalDate
	temporalTime
)

type ArgSpec struct {
	Name     string
	Type     ArgType
	Required bool
	Default  any
	Desc     string

	temporal temporal
	positive bool
}

// Spec describes one operation: its canonical name, accepted aliases and
// argument shape. Identity marks operations that act on the session user.
type Spec struct {
	Kind     Kind
	Name     string
	Aliases  []string
	Desc     string
	Args     []ArgSpec
	Identity bool
}

var identityArgs = []ArgSpec{
	{Name: "user_id", Type: ArgString, Desc: "Signed-in user id"},
	{Name: "user_name", Type: ArgString, Desc: "Guest name for the reservation"},
	{Name: "user_email", Type: ArgString, Desc: "Guest email"},
}

var catalog = []Spec{
	{
		Kind:    KindSearch,
		Name:    ToolSearchRestaurants,
		Aliases: []string{ToolRecommendRestaurants},
		Desc:    "Find restaurants by free text and filters. With date, time and party_size the available ones come first.",
		Args: []ArgSpec{
			{Name: "query", Type: ArgString, Desc: "Free-text description, e.g. romantic rooftop italian"},
			{Name: "cuisine", Type: ArgString, Desc: "Cuisine, e.g. Italian"},
			{Name: "location", Type: ArgString, Desc: "Neighbourhood or area"},
			{Name: "party_size", Type: ArgInt, Desc: "Number of guests", positive: true},
			{Name: "min_rating", Type: ArgNumber, Desc: "Minimum rating 0-5"},
			{Name: "price_range", Type: ArgString, Desc: "Price tier: $, $$, $$$ or $$$$"},
			{Name: "date", Type: ArgString, Desc: "YYYY-MM-DD, today, tomorrow or next <weekday>", temporal: temporalDate},
			{Name: "time", Type: ArgString, Desc: "HH:MM or 7pm style", temporal: temporalTime},
		},
	},
	{
		Kind: KindAvailability,
		Name: ToolCheckAvailability,
		Desc: "Check whether a restaurant can seat a party at a date and time.",
		Args: []ArgSpec{
			{Name: "restaurant_id", Type: ArgInt, Required: true, Desc: "Restaurant id from search results", positive: true},
			{Name: "date", Type: ArgString, Required: true, Desc: "YYYY-MM-DD, today, tomorrow or next <weekday>", temporal: temporalDate},
			{Name: "time", Type: ArgString, Required: true, Desc: "HH:MM or 7pm style", temporal: temporalTime},
			{Name: "party_size", Type: ArgInt, Required: true, Desc: "Number of guests", positive: true},
		},
	},
	{
		Kind: KindBook,
		Name: ToolBookReservation,
		Desc: "Book a table. Only call after the guest has confirmed the details.",
		Args: append([]ArgSpec{
			{Name: "restaurant_id", Type: ArgInt, Required: true, Desc: "Restaurant id from search results", positive: true},
			{Name: "date", Type: ArgString, Required: true, Desc: "YYYY-MM-DD, today, tomorrow or next <weekday>", temporal: temporalDate},
			{Name: "time", Type: ArgString, Required: true, Desc: "HH:MM or 7pm style", temporal: temporalTime},
			{Name: "party_size", Type: ArgInt, Required: true, Desc: "Number of guests", positive: true},
			{Name: "special_requests", Type: ArgString, Desc: "Anything the restaurant should know"},
		}, identityArgs...),
		Identity: true,
	},
	{
		Kind: KindCancel,
		Name: ToolCancelReservation,
		Desc: "Cancel one of the guest's reservations by its reservation id.",
		Args: append([]ArgSpec{
			{Name: "reservation_id", Type: ArgInt, Required: true, Desc: "Numeric reservation id (GF-0012 is id 12)", positive: true},
		}, identityArgs...),
		Identity: true,
	},
	{
		Kind:     KindListReservations,
		Name:     ToolGetUserReservations,
		Aliases:  []string{ToolListUserReservations},
		Desc:     "List the guest's confirmed reservations.",
		Args:     identityArgs,
		Identity: true,
	},
	{
		Kind: KindAnalytics,
		Name: ToolGetAnalytics,
		Desc: "Booking statistics: totals, popular cuisines, busiest times, or one restaurant's numbers.",
		Args: []ArgSpec{
			{Name: "cuisine", Type: ArgString, Desc: "Limit to a cuisine"},
			{Name: "location", Type: ArgString, Desc: "Limit to an area"},
			{Name: "restaurant_id", Type: ArgInt, Desc: "Stats for one restaurant", positive: true},
		},
	},
}

var byName = func() map[string]Spec {
	out := make(map[string]Spec, len(catalog)*2)
	for _, s := range catalog {
		out[s.Name] = s
		for _, alias := range s.Aliases {
			out[alias] = s
		}
	}
	return out
}()

// Lookup resolves a canonical name or alias.
func Lookup(name string) (Spec, bool) {
	s, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

func KindOf(name string) Kind {
	s, ok := Lookup(name)
	if !ok {
		return KindUnknown
	}
	return s.Kind
}

func Specs() []Spec {
	return append([]Spec(nil), catalog...)
}

// modelArgs are the arguments the model is asked to fill.
func modelArgs(s Spec) []ArgSpec {
	out := make([]ArgSpec, 0, len(s.Args))
	for _, a := range s.Args {
		if s.Identity && isIdentityArg(a.Name) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ArgSummary lists the model-facing arguments, e.g.
// "restaurant_id int required, special_requests string".
func (s Spec) ArgSummary() string {
	args := modelArgs(s)
	parts := make([]string, 0, len(args))
	for _, a := range args {
		part := a.Name + " " + a.Type.String()
		if a.Required {
			part += " required"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func (t ArgType) String() string {
	switch t {
	case ArgInt:
		return "int"
	case ArgNumber:
		return "number"
	default:
		return "string"
	}
}

func isIdentityArg(name string) bool {
	for _, a := range identityArgs {
		if a.Name == name {
			return true
		}
	}
	return false
}
