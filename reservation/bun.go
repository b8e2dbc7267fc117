package reservation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

var (
	_ Store  = (*BunStore)(nil)
	_ Seeder = (*BunStore)(nil)
)

type restaurantRow struct {
	bun.BaseModel `bun:"table:restaurants,alias:r"`

	ID           int64    `bun:"id,pk"`
	Name         string   `bun:"name,notnull"`
	Cuisine      string   `bun:"cuisine,notnull"`
	Location     string   `bun:"location,notnull"`
	Rating       float64  `bun:"rating,notnull,default:0"`
	PriceRange   string   `bun:"price_range,notnull"`
	Capacity     int      `bun:"capacity,notnull"`
	Features     []string `bun:"features,type:text"`
	Description  string   `bun:"description"`
	OpeningHours string   `bun:"opening_hours"`
}

type slotRow struct {
	bun.BaseModel `bun:"table:availability,alias:a"`

	RestaurantID   int64  `bun:"restaurant_id,pk"`
	Date           string `bun:"slot_date,pk"`
	Time           string `bun:"slot_time,pk"`
	SeatsRemaining int    `bun:"seats_remaining,notnull"`
}

type reservationRow struct {
	bun.BaseModel `bun:"table:reservations,alias:res"`

	ID              int64          `bun:"id,pk,autoincrement"`
	RestaurantID    int64          `bun:"restaurant_id,notnull"`
	Restaurant      *restaurantRow `bun:"rel:belongs-to,join:restaurant_id=id"`
	UserID          string         `bun:"user_id"`
	UserName        string         `bun:"user_name,notnull"`
	UserEmail       string         `bun:"user_email"`
	Date            string         `bun:"slot_date,notnull"`
	Time            string         `bun:"slot_time,notnull"`
	PartySize       int            `bun:"party_size,notnull"`
	Status          string         `bun:"status,notnull"`
	SpecialRequests string         `bun:"special_requests"`
	CreatedAt       time.Time      `bun:"created_at,notnull"`
}

func (r restaurantRow) toDomain() Restaurant {
	return Restaurant{
		ID:           r.ID,
		Name:         r.Name,
		Cuisine:      r.Cuisine,
		Location:     r.Location,
		Rating:       r.Rating,
		PriceRange:   r.PriceRange,
		Capacity:     r.Capacity,
		Features:     r.Features,
		Description:  r.Description,
		OpeningHours: r.OpeningHours,
	}
}

func (r reservationRow) toDomain() Reservation {
	out := Reservation{
		ID:              r.ID,
		RestaurantID:    r.RestaurantID,
		UserID:          r.UserID,
		UserName:        r.UserName,
		UserEmail:       r.UserEmail,
		Date:            r.Date,
		Time:            r.Time,
		PartySize:       r.PartySize,
		Status:          Status(r.Status),
		SpecialRequests: r.SpecialRequests,
		CreatedAt:       r.CreatedAt,
	}
	if r.Restaurant != nil {
		out.RestaurantName = r.Restaurant.Name
		out.Location = r.Restaurant.Location
	}
	return out
}

// Open connects to postgres (pgdriver) or sqlite (go-sqlite3) and returns a
// bun handle with the matching dialect.
func Open(driver, dsn string) (*bun.DB, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pg":
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case "sqlite", "sqlite3":
		sqldb, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		// One connection so a :memory: database is shared by every query.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// BunStore persists restaurants, slots and reservations through bun.
// Seat changes are guarded by conditional UPDATEs inside a transaction so
// two bookings can never both take the last seats.
type BunStore struct {
	db  *bun.DB
	now func() time.Time
}

func NewBunStore(db *bun.DB) *BunStore {
	db.AddQueryHook(queryLogger{})
	return &BunStore{db: db, now: time.Now}
}

func (s *BunStore) DB() *bun.DB { return s.db }

func (s *BunStore) Close() error { return s.db.Close() }

func (s *BunStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate creates the tables when missing.
func (s *BunStore) Migrate(ctx context.Context) error {
	models := []any{
		(*restaurantRow)(nil),
		(*slotRow)(nil),
		(*reservationRow)(nil),
	}
	for _, m := range models {
		if _, err := s.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	if _, err := s.db.NewCreateIndex().
		Model((*reservationRow)(nil)).
		Index("reservations_user_name_idx").
		IfNotExists().
		Column("user_name").
		Exec(ctx); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func (s *BunStore) UpsertRestaurants(ctx context.Context, restaurants []Restaurant) error {
	if len(restaurants) == 0 {
		return nil
	}
	rows := make([]restaurantRow, 0, len(restaurants))
	for _, r := range restaurants {
		if r.ID <= 0 {
			return fmt.Errorf("restaurant %q: id must be positive", r.Name)
		}
		rows = append(rows, restaurantRow{
			ID:           r.ID,
			Name:         r.Name,
			Cuisine:      r.Cuisine,
			Location:     r.Location,
			Rating:       r.Rating,
			PriceRange:   r.PriceRange,
			Capacity:     r.Capacity,
			Features:     r.Features,
			Description:  r.Description,
			OpeningHours: r.OpeningHours,
		})
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("cuisine = EXCLUDED.cuisine").
		Set("location = EXCLUDED.location").
		Set("rating = EXCLUDED.rating").
		Set("price_range = EXCLUDED.price_range").
		Set("capacity = EXCLUDED.capacity").
		Set("features = EXCLUDED.features").
		Set("description = EXCLUDED.description").
		Set("opening_hours = EXCLUDED.opening_hours").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert restaurants: %w", err)
	}
	return nil
}

const slotBatchSize = 500

func (s *BunStore) InsertSlots(ctx context.Context, slots []Slot) error {
	for start := 0; start < len(slots); start += slotBatchSize {
		end := min(start+slotBatchSize, len(slots))
		rows := make([]slotRow, 0, end-start)
		for _, slot := range slots[start:end] {
			rows = append(rows, slotRow{
				RestaurantID:   slot.RestaurantID,
				Date:           slot.Date,
				Time:           slot.Time,
				SeatsRemaining: slot.SeatsRemaining,
			})
		}
		_, err := s.db.NewInsert().
			Model(&rows).
			On("CONFLICT (restaurant_id, slot_date, slot_time) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert slots: %w", err)
		}
	}
	return nil
}

func (s *BunStore) GetRestaurant(ctx context.Context, id int64) (Restaurant, error) {
	return getRestaurant(ctx, s.db, id)
}

func getRestaurant(ctx context.Context, db bun.IDB, id int64) (Restaurant, error) {
	var row restaurantRow
	err := db.NewSelect().Model(&row).Where("r.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return Restaurant{}, fmt.Errorf("%w: id=%d", ErrRestaurantNotFound, id)
	}
	if err != nil {
		return Restaurant{}, fmt.Errorf("get restaurant: %w", err)
	}
	return row.toDomain(), nil
}

func (s *BunStore) ListRestaurants(ctx context.Context, filter RestaurantFilter) ([]Restaurant, error) {
	var rows []restaurantRow
	q := s.db.NewSelect().Model(&rows)
	if c := strings.TrimSpace(filter.Cuisine); c != "" {
		q = q.Where("LOWER(r.cuisine) = ?", strings.ToLower(c))
	}
	if l := strings.TrimSpace(filter.Location); l != "" {
		q = q.Where("LOWER(r.location) LIKE ?", "%"+strings.ToLower(l)+"%")
	}
	if filter.MinRating > 0 {
		q = q.Where("r.rating >= ?", filter.MinRating)
	}
	if p := strings.TrimSpace(filter.PriceRange); p != "" {
		q = q.Where("r.price_range = ?", p)
	}
	if err := q.OrderExpr("r.rating DESC, r.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list restaurants: %w", err)
	}
	out := make([]Restaurant, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *BunStore) CheckAvailability(ctx context.Context, restaurantID int64, date, tm string, partySize int) (Availability, error) {
	seats, err := slotSeats(ctx, s.db, restaurantID, date, tm)
	if err != nil {
		return Availability{}, err
	}
	return availabilityFor(restaurantID, date, tm, partySize, seats), nil
}

func slotSeats(ctx context.Context, db bun.IDB, restaurantID int64, date, tm string) (int, error) {
	var row slotRow
	err := db.NewSelect().
		Model(&row).
		Where("a.restaurant_id = ?", restaurantID).
		Where("a.slot_date = ?", date).
		Where("a.slot_time = ?", tm).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: restaurant=%d date=%s time=%s", ErrNoSuchSlot, restaurantID, date, tm)
	}
	if err != nil {
		return 0, fmt.Errorf("get slot: %w", err)
	}
	return row.SeatsRemaining, nil
}

func (s *BunStore) Book(ctx context.Context, req BookingRequest) (Reservation, error) {
	if req.PartySize <= 0 {
		return Reservation{}, ErrInvalidPartySize
	}

	var out Reservation
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		restaurant, err := getRestaurant(ctx, tx, req.RestaurantID)
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*slotRow)(nil)).
			Set("seats_remaining = seats_remaining - ?", req.PartySize).
			Where("restaurant_id = ?", req.RestaurantID).
			Where("slot_date = ?", req.Date).
			Where("slot_time = ?", req.Time).
			Where("seats_remaining >= ?", req.PartySize).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("reserve seats: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			seats, err := slotSeats(ctx, tx, req.RestaurantID, req.Date, req.Time)
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: only %d seats available, need %d", ErrInsufficientCapacity, seats, req.PartySize)
		}

		row := reservationRow{
			RestaurantID:    req.RestaurantID,
			UserID:          strings.TrimSpace(req.UserID),
			UserName:        strings.TrimSpace(req.UserName),
			UserEmail:       strings.TrimSpace(req.UserEmail),
			Date:            req.Date,
			Time:            req.Time,
			PartySize:       req.PartySize,
			Status:          string(StatusConfirmed),
			SpecialRequests: strings.TrimSpace(req.SpecialRequests),
			CreatedAt:       s.now().UTC(),
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}

		out = row.toDomain()
		out.RestaurantName = restaurant.Name
		out.Location = restaurant.Location
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return out, nil
}

func (s *BunStore) Cancel(ctx context.Context, reservationID int64, owner Owner) (Reservation, error) {
	var out Reservation
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row reservationRow
		err := tx.NewSelect().
			Model(&row).
			Relation("Restaurant").
			Where("res.id = ?", reservationID).
			Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: id=%d", ErrReservationNotFound, reservationID)
		}
		if err != nil {
			return fmt.Errorf("get reservation: %w", err)
		}
		current := row.toDomain()
		if !owner.IsZero() && !owner.Owns(current) {
			return fmt.Errorf("%w: id=%d", ErrNotOwner, reservationID)
		}

		res, err := tx.NewUpdate().
			Model((*reservationRow)(nil)).
			Set("status = ?", string(StatusCancelled)).
			Where("id = ?", reservationID).
			Where("status = ?", string(StatusConfirmed)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("cancel reservation: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: id=%d", ErrAlreadyCancelled, reservationID)
		}

		restore := tx.NewUpdate().
			Model((*slotRow)(nil)).
			Where("restaurant_id = ?", current.RestaurantID).
			Where("slot_date = ?", current.Date).
			Where("slot_time = ?", current.Time)
		if row.Restaurant != nil && row.Restaurant.Capacity > 0 {
			capacity := row.Restaurant.Capacity
			restore = restore.Set("seats_remaining = CASE WHEN seats_remaining + ? > ? THEN ? ELSE seats_remaining + ? END",
				current.PartySize, capacity, capacity, current.PartySize)
		} else {
			restore = restore.Set("seats_remaining = seats_remaining + ?", current.PartySize)
		}
		restored, err := restore.Exec(ctx)
		if err != nil {
			return fmt.Errorf("restore seats: %w", err)
		}
		if n, _ := restored.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: restaurant=%d date=%s time=%s", ErrNoSuchSlot, current.RestaurantID, current.Date, current.Time)
		}

		current.Status = StatusCancelled
		out = current
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}
	return out, nil
}

func (s *BunStore) ListReservationsFor(ctx context.Context, owner Owner) ([]Reservation, error) {
	if owner.IsZero() {
		return nil, nil
	}

	var rows []reservationRow
	q := s.db.NewSelect().
		Model(&rows).
		Relation("Restaurant").
		Where("res.status = ?", string(StatusConfirmed))
	name := strings.ToLower(strings.TrimSpace(owner.Name))
	if id := strings.TrimSpace(owner.UserID); id != "" {
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("res.user_id = ?", id)
			if name != "" {
				q = q.WhereOr("(res.user_id = '' AND LOWER(res.user_name) = ?)", name)
			}
			return q
		})
	} else {
		q = q.Where("LOWER(res.user_name) = ?", name)
	}
	if err := q.OrderExpr("res.slot_date ASC, res.slot_time ASC, res.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	out := make([]Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *BunStore) AvailableTimes(ctx context.Context, restaurantID int64, date string, partySize int) ([]string, error) {
	if _, err := getRestaurant(ctx, s.db, restaurantID); err != nil {
		return nil, err
	}
	var times []string
	err := s.db.NewSelect().
		Model((*slotRow)(nil)).
		Column("slot_time").
		Where("restaurant_id = ?", restaurantID).
		Where("slot_date = ?", date).
		Where("seats_remaining >= ?", partySize).
		OrderExpr("slot_time ASC").
		Scan(ctx, &times)
	if err != nil {
		return nil, fmt.Errorf("available times: %w", err)
	}
	return times, nil
}

func (s *BunStore) Analytics(ctx context.Context, filter AnalyticsFilter) (Analytics, error) {
	var out Analytics

	base := func() *bun.SelectQuery {
		q := s.db.NewSelect().
			TableExpr("reservations AS res").
			Join("JOIN restaurants AS r ON r.id = res.restaurant_id").
			Where("res.status = ?", string(StatusConfirmed))
		if c := strings.TrimSpace(filter.Cuisine); c != "" {
			q = q.Where("LOWER(r.cuisine) = ?", strings.ToLower(c))
		}
		if l := strings.TrimSpace(filter.Location); l != "" {
			q = q.Where("LOWER(r.location) LIKE ?", "%"+strings.ToLower(l)+"%")
		}
		return q
	}

	total, err := base().Count(ctx)
	if err != nil {
		return Analytics{}, fmt.Errorf("count reservations: %w", err)
	}
	out.TotalReservations = total

	out.PopularCuisines = make([]CountByKey, 0, analyticsTopN)
	if err := base().
		ColumnExpr("r.cuisine AS label").
		ColumnExpr("COUNT(*) AS total").
		GroupExpr("r.cuisine").
		OrderExpr("total DESC, label ASC").
		Limit(analyticsTopN).
		Scan(ctx, &out.PopularCuisines); err != nil {
		return Analytics{}, fmt.Errorf("popular cuisines: %w", err)
	}

	out.BusiestTimes = make([]CountByKey, 0, analyticsTopN)
	if err := base().
		ColumnExpr("res.slot_time AS label").
		ColumnExpr("COUNT(*) AS total").
		GroupExpr("res.slot_time").
		OrderExpr("total DESC, label ASC").
		Limit(analyticsTopN).
		Scan(ctx, &out.BusiestTimes); err != nil {
		return Analytics{}, fmt.Errorf("busiest times: %w", err)
	}

	if filter.RestaurantID > 0 {
		r, err := getRestaurant(ctx, s.db, filter.RestaurantID)
		if err != nil {
			return Analytics{}, err
		}
		stats := &RestaurantStats{
			RestaurantID:   r.ID,
			RestaurantName: r.Name,
			Rating:         r.Rating,
			Capacity:       r.Capacity,
		}
		if err := base().
			ColumnExpr("COUNT(*)").
			ColumnExpr("COALESCE(SUM(res.party_size), 0)").
			Where("res.restaurant_id = ?", r.ID).
			Scan(ctx, &stats.TotalReservations, &stats.SeatsBooked); err != nil {
			return Analytics{}, fmt.Errorf("restaurant stats: %w", err)
		}
		out.Restaurant = stats
	}
	return out, nil
}

type queryLogger struct{}

func (queryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (queryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		log.Warn().
			Err(event.Err).
			Str("operation", event.Operation()).
			Dur("elapsed", time.Since(event.StartTime)).
			Msg("reservation: query failed")
		return
	}
	log.Trace().
		Str("operation", event.Operation()).
		Dur("elapsed", time.Since(event.StartTime)).
		Str("query", event.Query).
		Msg("reservation: query")
}
