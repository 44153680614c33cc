package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/table-booking-backend/internal/account"
	accountHttp "github.com/nekogravitycat/table-booking-backend/internal/account/http"
	"github.com/nekogravitycat/table-booking-backend/internal/auth"
	"github.com/nekogravitycat/table-booking-backend/internal/reservation"
	reservationHttp "github.com/nekogravitycat/table-booking-backend/internal/reservation/http"
	"github.com/nekogravitycat/table-booking-backend/internal/resource"
	resourceHttp "github.com/nekogravitycat/table-booking-backend/internal/resource/http"
)

// Config holds the services and settings the router is assembled from.
type Config struct {
	IsProduction       bool
	ProdOrigins        []string
	Logger             *zap.Logger
	AccountService     account.Service
	ResourceService    resource.Service
	ReservationService reservation.Service
	JWTManager         *auth.JWTManager
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()

	// Global Middleware:
	// - RequestLogger: Logs one structured line per request.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(RequestLogger(log), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	config := cors.DefaultConfig()
	config.AllowOrigins = []string{
		"http://localhost:8081", // Swagger
	}
	if cfg.IsProduction {
		config.AllowOrigins = append(config.AllowOrigins, cfg.ProdOrigins...)
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", requestIDHeader}
	config.ExposeHeaders = []string{requestIDHeader}
	r.Use(cors.New(config))

	// authMiddleware: Validates the JWT and reloads the account's current role.
	authMiddleware := auth.AuthRequired(cfg.JWTManager, accountResolver(cfg.AccountService))
	// adminMiddleware: Further checks if the authenticated account is an admin.
	adminMiddleware := RequireAdmin()

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	accountHandler := accountHttp.NewHandler(cfg.AccountService, cfg.JWTManager)
	resourceHandler := resourceHttp.NewHandler(cfg.ResourceService)
	reservationHandler := reservationHttp.NewHandler(cfg.ReservationService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		accountHttp.RegisterRoutes(v1, accountHandler, authMiddleware, adminMiddleware)
		resourceHttp.RegisterRoutes(v1, resourceHandler, authMiddleware, adminMiddleware)
		reservationHttp.RegisterRoutes(v1, reservationHandler, authMiddleware, adminMiddleware)
	}

	return r
}
