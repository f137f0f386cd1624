package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nekogravitycat/marketplace-backend/internal/api"
	"github.com/nekogravitycat/marketplace-backend/internal/auth"
	"github.com/nekogravitycat/marketplace-backend/internal/bookedslot"
	"github.com/nekogravitycat/marketplace-backend/internal/events"
	"github.com/nekogravitycat/marketplace-backend/internal/payment"
	"github.com/nekogravitycat/marketplace-backend/internal/paymentlock"
	"github.com/nekogravitycat/marketplace-backend/internal/realtime"
	"github.com/nekogravitycat/marketplace-backend/internal/reservation"
	"github.com/nekogravitycat/marketplace-backend/internal/slotrule"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	DBPool       *pgxpool.Pool
	Redis        *redis.Client
	Publisher    events.Publisher
	JWTSecret    string
	JWTTTL       time.Duration

	Location       *time.Location
	ReservationTTL time.Duration
	SweepSchedule  string
	PaymentLockTTL time.Duration
	GatewaySecret  string
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router     *gin.Engine
	JWTManager *auth.JWTManager
	Hub        *realtime.Hub
	Sweeper    *reservation.Sweeper
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) (*Container, error) {
	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	engine := slotrule.NewEngine(cfg.Location)

	// Booked Slot Module
	bookedRepo := bookedslot.NewPgxRepository(cfg.DBPool)
	bookedService := bookedslot.NewService(bookedRepo, cfg.Publisher)

	// Reservation Module
	ruleRepo := slotrule.NewPgxRepository(cfg.DBPool)
	resRepo := reservation.NewPgxRepository(cfg.DBPool)
	coordinator := reservation.NewCoordinator(resRepo, ruleRepo, engine, bookedService, cfg.ReservationTTL)

	sweeper, err := reservation.NewSweeper(coordinator, cfg.SweepSchedule)
	if err != nil {
		return nil, err
	}

	// Slot Rule Module
	ruleService := slotrule.NewService(ruleRepo, engine, coordinator, bookedService)

	// Realtime Module
	hub := realtime.NewHub(coordinator, bookedService, realtime.NewRedisRooms(cfg.Redis), realtime.NewRedisBus(cfg.Redis))

	// Payment Module
	locker := paymentlock.NewLocker(cfg.Redis, cfg.PaymentLockTTL)
	paymentService := payment.NewService(
		locker,
		payment.NewOrderStore(cfg.Redis),
		payment.NewHMACGateway(cfg.GatewaySecret),
		coordinator,
		ruleRepo,
		bookedService,
		cfg.Publisher,
	)

	// API Router Config
	routerParams := api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		JWTManager:     jwtManager,
		Engine:         engine,
		RuleService:    ruleService,
		Coordinator:    coordinator,
		BookedService:  bookedService,
		PaymentService: paymentService,
		PaymentLocker:  locker,
		Hub:            hub,
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:     router,
		JWTManager: jwtManager,
		Hub:        hub,
		Sweeper:    sweeper,
	}, nil
}
