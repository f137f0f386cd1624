package api

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/bookedslot"
	bookedSlotHttp "github.com/nekogravitycat/marketplace-backend/internal/bookedslot/http"
	"github.com/nekogravitycat/marketplace-backend/internal/payment"
	paymentHttp "github.com/nekogravitycat/marketplace-backend/internal/payment/http"
	"github.com/nekogravitycat/marketplace-backend/internal/paymentlock"
	"github.com/nekogravitycat/marketplace-backend/internal/realtime"
	realtimeHttp "github.com/nekogravitycat/marketplace-backend/internal/realtime/http"
	"github.com/nekogravitycat/marketplace-backend/internal/reservation"
	reservationHttp "github.com/nekogravitycat/marketplace-backend/internal/reservation/http"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
	slotRuleHttp "github.com/nekogravitycat/marketplace-backend/internal/slotrule/http"
)

// Config holds everything the router needs to build the handlers.
type Config struct {
	IsProduction bool
	ProdOrigins  string

	JWTManager *auth.JWTManager
	Engine     *slotrule.Engine

	RuleService    slotrule.Service
	Coordinator    reservation.Coordinator
	BookedService  bookedslot.Service
	PaymentService payment.Service
	PaymentLocker  *paymentlock.Locker
	Hub            *realtime.Hub
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information to the console.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(gin.Logger(), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	origins := allowedOrigins(cfg)
	config := cors.DefaultConfig()
	config.AllowOrigins = origins
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	config.ExposeHeaders = []string{"Retry-After"}
	r.Use(cors.New(config))

	// authMiddleware: Validates if the request contains a valid JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)
	// paymentGuard: Rejects a new payment while the caller has one in flight.
	paymentGuard := paymentlock.Guard(cfg.PaymentLocker)

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	ruleHandler := slotRuleHttp.NewHandler(cfg.RuleService, cfg.Engine.Location())
	reservationHandler := reservationHttp.NewHandler(cfg.Coordinator, cfg.Hub)
	bookedSlotHandler := bookedSlotHttp.NewHandler(cfg.BookedService)
	paymentHandler := paymentHttp.NewHandler(cfg.PaymentService)

	// Websocket upgrades only check origins in production.
	var wsOrigins []string
	if cfg.IsProduction {
		wsOrigins = origins
	}
	realtimeHandler := realtimeHttp.NewHandler(cfg.Hub, wsOrigins)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		slotRuleHttp.RegisterRoutes(v1, ruleHandler, authMiddleware)
		reservationHttp.RegisterRoutes(v1, reservationHandler, authMiddleware)
		bookedSlotHttp.RegisterRoutes(v1, bookedSlotHandler, authMiddleware)
		paymentHttp.RegisterRoutes(v1, paymentHandler, authMiddleware, paymentGuard)
		realtimeHttp.RegisterRoutes(v1, realtimeHandler, authMiddleware)
	}

	return r
}

func allowedOrigins(cfg Config) []string {
	if !cfg.IsProduction {
		return []string{
			"http://localhost:3000", // Web client
			"http://localhost:8081", // Swagger
		}
	}

	var origins []string
	for _, o := range strings.Split(cfg.ProdOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
