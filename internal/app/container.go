package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/account"
	"github.com/nekogravitycat/table-booking-backend/internal/api"
	"github.com/nekogravitycat/table-booking-backend/internal/auth"
	"github.com/nekogravitycat/table-booking-backend/internal/config"
	"github.com/nekogravitycat/table-booking-backend/internal/reservation"
	"github.com/nekogravitycat/table-booking-backend/internal/resource"
	"github.com/nekogravitycat/table-booking-backend/internal/store"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  []string
	Store        store.Store
	// Redis backs the day schedule cache; nil disables it.
	Redis            redis.UniversalClient
	ScheduleCacheTTL time.Duration
	Logger           *zap.Logger
	JWTSecret        string
	JWTTTL           time.Duration
	BcryptCost       int
	Booking          config.BookingConfig
	Locations        []string
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router             *gin.Engine
	JWTManager         *auth.JWTManager
	AccountService     account.Service
	ResourceService    resource.Service
	ReservationService reservation.Service
}

// Schemas lists every collection in dependency order.
var Schemas = []*store.Schema{account.Schema, resource.Schema, reservation.Schema}

// Migrate defines every collection the application uses.
func Migrate(ctx context.Context, st store.Store) error {
	return store.Do(ctx, st, func(sess store.Session) error {
		for _, s := range Schemas {
			if err := sess.DefineCollection(ctx, s); err != nil {
				return fmt.Errorf("define %s: %w", s.Name, err)
			}
		}
		return nil
	})
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	// Init Components
	passwordHasher := auth.NewBcryptPasswordHasherWithCost(cfg.BcryptCost)
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	var dayCache reservation.DayCache = reservation.NopDayCache{}
	if cfg.Redis != nil {
		dayCache = reservation.NewRedisDayCache(cfg.Redis, cfg.ScheduleCacheTTL)
	}

	// Account Module
	accountService := account.NewService(cfg.Store, passwordHasher, log,
		account.WithInvalidator(dayCache))

	// Resource Module
	resourceService := resource.NewService(cfg.Store, log,
		resource.WithLocations(cfg.Locations),
		resource.WithInvalidator(dayCache))

	// Reservation Module
	reservationService := reservation.NewService(cfg.Store, dayCache, log, reservation.Options{
		Serializable:      cfg.Booking.Serializable,
		StrictTransitions: cfg.Booking.StrictTransitions,
		OpensAt:           cfg.Booking.OpensAt,
		ClosesAt:          cfg.Booking.ClosesAt,
	})

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:       cfg.IsProduction,
		ProdOrigins:        cfg.ProdOrigins,
		Logger:             log.Named("http"),
		AccountService:     accountService,
		ResourceService:    resourceService,
		ReservationService: reservationService,
		JWTManager:         jwtManager,
	})

	return &Container{
		Router:             router,
		JWTManager:         jwtManager,
		AccountService:     accountService,
		ResourceService:    resourceService,
		ReservationService: reservationService,
	}
}
