package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/tanpawarit/table-reservation-agent/api/mw"
	"github.com/tanpawarit/table-reservation-agent/reservation"
)

const EventsPath = "/v1/events/qstash"

type Config struct {
	Addr            string        `split_words:"true" default:":8080"`
	RatePerSecond   float64       `split_words:"true" default:"10"`
	RateBurst       int           `split_words:"true" default:"5"`
	TurnsPerMinute  int           `split_words:"true" default:"20"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	PublicURL       string        `envconfig:"PUBLIC_URL"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
}

// Deps wires the router. Events and Health are optional.
type Deps struct {
	Agent  Agent
	Store  reservation.Store
	Events Events
	Health Pinger
	NewID  func() string
	Config Config
}

// NewRouter creates and configures the gin engine.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger())

	h := NewHandler(d)
	cfg := d.Config
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 5
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	r.GET("/healthz", h.Health)

	caching := mw.Cache(cache.New(cfg.CacheTTL, 2*cfg.CacheTTL), cfg.CacheTTL)

	v1 := r.Group("/v1")
	v1.Use(mw.RateLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst))
	{
		v1.POST("/sessions", h.CreateSession)
		v1.GET("/sessions/:id/history", h.GetHistory)
		v1.DELETE("/sessions/:id", h.ResetSession)

		turns := []gin.HandlerFunc{h.PostMessage}
		if cfg.TurnsPerMinute > 0 {
			perSession := mw.RateLimiterBy(rate.Every(time.Minute/time.Duration(cfg.TurnsPerMinute)), cfg.TurnsPerMinute, func(c *gin.Context) string {
				return "session:" + c.Param("id")
			})
			turns = append([]gin.HandlerFunc{perSession}, turns...)
		}
		v1.POST("/sessions/:id/messages", turns...)

		v1.GET("/restaurants", caching, h.ListRestaurants)
		v1.GET("/restaurants/:id", caching, h.GetRestaurant)
		v1.GET("/users/:user/reservations", h.ListReservations)
	}

	if d.Events != nil {
		r.POST(EventsPath, h.ReceiveEvent)
	}

	return r
}

func newSessionID() string { return uuid.NewString() }
