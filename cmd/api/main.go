package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	httptransport "github.com/deskflow/helpdesk/internal/api/http"
	"github.com/deskflow/helpdesk/internal/api/http/handlers"
	"github.com/deskflow/helpdesk/internal/auth"
	"github.com/deskflow/helpdesk/internal/config"
	"github.com/deskflow/helpdesk/internal/events"
	"github.com/deskflow/helpdesk/internal/observability"
	"github.com/deskflow/helpdesk/internal/persistence"
	"github.com/deskflow/helpdesk/internal/repository"
	"github.com/deskflow/helpdesk/internal/service"
	"github.com/deskflow/helpdesk/internal/sla"
	"github.com/deskflow/helpdesk/internal/worker"
)

// stores groups the repositories for whichever backend is configured.
type stores struct {
	tickets     repository.TicketStore
	audit       repository.AuditRepository
	comments    repository.CommentRepository
	attachments repository.AttachmentRepository
	feedback    repository.FeedbackRepository
	accounts    repository.AccountRepository
	teams       repository.TeamRepository
	sla         repository.SLAConfigRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var repos stores
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = postgresStores(pg)
	} else {
		repos, err = memoryStores(cfg.SeedFile, logger)
		if err != nil {
			logger.Fatal("failed to prepare in-memory store", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	calendar, err := sla.NewCalendarFromConfig(sla.SystemClock{}, cfg.Calendar)
	if err != nil {
		logger.Fatal("invalid business calendar", zap.Error(err))
	}
	clock := sla.NewSLAClock(calendar, repos.sla)
	gate := auth.NewGate()
	metrics := observability.NewMetrics()

	dispatcher := events.NewAsyncDispatcher(events.Options{
		Buffer:      cfg.Notification.Buffer,
		MaxAttempts: cfg.Notification.MaxAttempts,
	}, logger)

	var sink service.NotificationSink = service.LogSink{Logger: logger}
	if redis.Enabled() {
		sink = persistence.NewStreamSink(redis, cfg.Notification.Stream)
	}
	notificationService := service.NewNotificationService(dispatcher, sink, logger)

	auditService := service.NewAuditService(repos.audit, repos.tickets, gate)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     repos.tickets,
		CommentRepo:    repos.comments,
		AttachmentRepo: repos.attachments,
		FeedbackRepo:   repos.feedback,
		Gate:           gate,
		Clock:          clock,
		Audit:          auditService,
		Dispatcher:     dispatcher,
		Logger:         logger,
		ReopenWindow:   cfg.SLA.ReopenWindow(),
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:  repos.tickets,
		AccountRepo: repos.accounts,
		TeamRepo:    repos.teams,
		Gate:        gate,
		Clock:       clock,
		Audit:       auditService,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	slaConfigService := service.NewSLAConfigService(repos.sla, gate, clock)
	sweepService := service.NewSweepService(service.SweepDependencies{
		TicketRepo:     repos.tickets,
		Lifecycle:      ticketService,
		Clock:          clock,
		Audit:          auditService,
		Dispatcher:     dispatcher,
		Logger:         logger,
		Batch:          cfg.SLA.SweepBatch,
		AutoCloseAfter: cfg.SLA.AutoCloseAfter(),
	})

	notifyCtx, stopNotify := context.WithCancel(ctx)
	notifyDone := worker.StartNotificationWorker(notifyCtx, dispatcher, notificationService)
	sweepCtx, stopSweep := context.WithCancel(ctx)

	sweepCfg := worker.SweepWorkerConfig{
		Interval: cfg.SLA.SweepInterval(),
		Lease:    cfg.SLA.SweepLease(),
		Metrics:  metrics,
		Logger:   logger,
	}
	if redis.Enabled() {
		sweepCfg.Locker = persistence.NewLease(redis, cfg.App.Name+"-"+uuid.NewString())
	}
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		worker.NewSweepWorker(sweepService, sweepCfg).Run(sweepCtx)
	}()

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens, repos.accounts, repos.teams)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		StaffTickets:   handlers.NewStaffTicketsHandler(ticketService, assignmentService),
		Audit:          handlers.NewAuditHandler(auditService),
		SLA:            handlers.NewSLAHandler(slaConfigService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// Producers stop first so the dispatcher drains every event they published.
	stopSweep()
	<-sweepDone
	stopNotify()
	<-notifyDone
}

func postgresStores(pg *persistence.Postgres) stores {
	pool := pg.PoolHandle()
	return stores{
		tickets:     repository.NewTicketRepository(pool),
		audit:       repository.NewAuditRepository(pool),
		comments:    repository.NewCommentRepository(pool),
		attachments: repository.NewAttachmentRepository(pool),
		feedback:    repository.NewFeedbackRepository(pool),
		accounts:    repository.NewAccountRepository(pool),
		teams:       repository.NewTeamRepository(pool),
		sla:         repository.NewSLAConfigRepository(pool),
	}
}

func memoryStores(seedFile string, logger *zap.Logger) (stores, error) {
	mem := repository.NewMemory()
	if seedFile != "" {
		seed, err := repository.LoadSeedFile(seedFile)
		if err != nil {
			return stores{}, err
		}
		if err := seed.Apply(mem, time.Now().UTC()); err != nil {
			return stores{}, err
		}
		logger.Info("seeded in-memory store",
			zap.String("file", seedFile),
			zap.Int("accounts", len(seed.Accounts)),
			zap.Int("teams", len(seed.Teams)))
	}
	return stores{
		tickets:     mem.Tickets(),
		audit:       mem.Audit(),
		comments:    mem.Comments(),
		attachments: mem.Attachments(),
		feedback:    mem.Feedback(),
		accounts:    mem.Accounts(),
		teams:       mem.Teams(),
		sla:         mem.SLAConfigs(),
	}, nil
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
