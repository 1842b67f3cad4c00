package routes

import (
	"context"
	"fmt"
	"time"

	"stallbook/internal/auth"
	"stallbook/internal/bookings"
	"stallbook/internal/notifications"
	"stallbook/internal/queue"
	"stallbook/internal/reservations"
	"stallbook/internal/shared/config"
	"stallbook/internal/shared/database"
	"stallbook/internal/stallkey"
	"stallbook/internal/stalls"
	"stallbook/pkg/cache"
	"stallbook/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// Services is the wired booking core shared by the HTTP layer and the
// background jobs.
type Services struct {
	Clock       clockwork.Clock
	Keys        *stallkey.Locker
	Holds       reservations.Manager
	Coordinator queue.Coordinator
	Catalog     stalls.Catalog
	Selection   stalls.SelectionService
	Bookings    bookings.Service
	Finalizer   bookings.Finalizer
	Auth        auth.Service
	Jobs        *queue.JobProcessor
}

// NewServices picks Postgres or in-memory repositories and Redis or
// in-memory hold and queue state from cfg, then wires the core together.
func NewServices(ctx context.Context, cfg *config.Config, db *database.DB, notifier notifications.Notifier, clock clockwork.Clock) (*Services, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := logger.GetDefault()
	pg := db.GetPostgreSQL()
	rdb := db.GetRedisClient()

	var (
		holdStore  reservations.Store
		queueStore queue.Store
	)
	if cfg.UsesRedisState() {
		if rdb == nil {
			return nil, fmt.Errorf("STATE_BACKEND=redis requires Redis to be enabled")
		}
		holdStore = reservations.NewRedisStore(rdb)
		queueStore = queue.NewRedisStore(rdb, cfg.Booking.TicketRetention)
	} else {
		holdStore = reservations.NewMemoryStore(clock.Now)
		queueStore = queue.NewMemoryStore(clock.Now, cfg.Booking.TicketRetention)
	}

	var (
		stallRepo   stalls.Repository
		bookingRepo bookings.Repository
		authRepo    auth.Repository
	)
	if pg != nil {
		stallRepo = stalls.NewRepository(pg)
		bookingRepo = bookings.NewRepository(pg)
		authRepo = auth.NewRepository(pg)
	} else {
		log.Warn("Database disabled, bookings and accounts are kept in memory")
		stallRepo = stalls.NewMemoryRepository(stalls.BuildLayout(stalls.DefaultLayout)...)
		bookingRepo = bookings.NewMemoryRepository(clock.Now)
		authRepo = auth.NewMemoryRepository()
	}

	var cacheService cache.Service
	if rdb != nil {
		cacheService = cache.NewService(rdb)
	}

	s := &Services{Clock: clock, Keys: stallkey.NewLocker()}
	s.Bookings = bookings.NewService(bookingRepo, notifier, clock)
	s.Coordinator = queue.NewCoordinator(queueStore, s.Keys, clock, notifier, s.Bookings, queue.CoordinatorConfig{
		OfferWindow:    cfg.Booking.OfferWindow,
		ClaimWindow:    cfg.Booking.ClaimWindow,
		MaxQueueLength: cfg.Booking.MaxQueueLength,
	})
	s.Holds = reservations.NewManager(holdStore, s.Keys, s.Coordinator, clock, notifier, reservations.ManagerConfig{
		DefaultTTL:    cfg.Booking.ReservationTTL,
		FinalizeGrace: cfg.Booking.FinalizeGrace,
	})
	s.Catalog = stalls.NewCatalog(stallRepo, cacheService)
	s.Selection = stalls.NewSelectionService(s.Catalog, s.Holds, s.Coordinator, s.Bookings)
	s.Finalizer = bookings.NewFinalizer(bookingRepo, s.Catalog, s.Holds, s.Coordinator, notifier, clock)
	s.Auth = auth.NewService(authRepo, cfg, clock)

	holds := s.Holds
	s.Jobs = queue.NewJobProcessor(s.Coordinator, queue.HoldSweeperFunc(func(ctx context.Context) (int, error) {
		swept, err := holds.SweepExpired(ctx)
		return len(swept), err
	}), clock, &queue.JobConfig{SweepInterval: cfg.Booking.SweepInterval})

	if pg == nil {
		bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if _, err := s.Auth.EnsureAccount(bootCtx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password, auth.RoleAdmin); err != nil {
			return nil, fmt.Errorf("failed to create admin account: %w", err)
		}
	}

	return s, nil
}
