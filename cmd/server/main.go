package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	grpclib "google.golang.org/grpc"

	redisadapter "github.com/rebuildfund/rebuildfund-backend/internal/adapter/cache/redis"
	grpcadapter "github.com/rebuildfund/rebuildfund-backend/internal/adapter/grpc"
	"github.com/rebuildfund/rebuildfund-backend/internal/adapter/httpapi"
	"github.com/rebuildfund/rebuildfund-backend/internal/adapter/repository/memory"
	"github.com/rebuildfund/rebuildfund-backend/internal/adapter/repository/postgres"
	"github.com/rebuildfund/rebuildfund-backend/internal/adapter/storage/cloudinary"
	"github.com/rebuildfund/rebuildfund-backend/internal/auth"
	"github.com/rebuildfund/rebuildfund-backend/internal/config"
	"github.com/rebuildfund/rebuildfund-backend/internal/domain"
	"github.com/rebuildfund/rebuildfund-backend/internal/observability"
	"github.com/rebuildfund/rebuildfund-backend/internal/platform/logger"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/aggregate"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/dashboard"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/investment"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/ledger"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/project"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/reconcile"
	"github.com/rebuildfund/rebuildfund-backend/internal/usecase/seeder"
)

// storage bundles the ports backed by the configured driver
type storage struct {
	uow         domain.UnitOfWork
	projects    domain.ProjectRepository
	investments domain.InvestmentRepository
	close       func() error
}

func main() {
	// 1. Configuration and logging
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, log, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Server.Mode,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		log.Fatal("failed to init tracing", "error", err)
	}

	// 2. Storage
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open storage", "driver", cfg.Database.Driver, "error", err)
	}
	defer func() {
		if err := store.close(); err != nil {
			log.Warn("storage close failed", "error", err)
		}
	}()

	// 3. Optional adapters
	collector := observability.NewMetricsCollector()
	registry := prometheus.NewRegistry()
	registry.MustRegister(collector, collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	minimum, _ := cfg.Investment.Minimum()
	opts := []investment.Option{
		investment.WithLogger(log),
		investment.WithHooks(collector),
		investment.WithRetryPolicy(investment.RetryPolicy{
			MaxAttempts: cfg.Investment.MaxAttempts,
			BaseBackoff: cfg.Investment.BaseBackoff,
			MaxBackoff:  cfg.Investment.MaxBackoff,
		}),
	}
	if cfg.Redis.Enabled {
		cache, err := redisadapter.NewReplayCache(ctx, redisadapter.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		}
		defer cache.Close()
		opts = append(opts, investment.WithReplayCache(cache))
	}

	var images domain.ImageStore
	if cfg.Cloudinary.Enabled() {
		cld, err := cloudinary.NewImageStore(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder, log)
		if err != nil {
			log.Fatal("failed to init cloudinary", "error", err)
		}
		images = cld
	} else {
		log.Info("cloudinary not configured, image uploads disabled")
	}

	// 4. Services (Use Cases)
	updater := aggregate.NewUpdater()
	investmentService := investment.NewInvestmentService(
		store.uow, store.investments, store.projects,
		ledger.NewWriter(minimum),
		updater,
		opts...,
	)
	projectService := project.NewProjectService(store.projects, store.investments, images, log)
	dashboardService := dashboard.NewDashboardService(store.projects, store.investments)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// 5. Reconciler
	var job *reconcile.Job
	if cfg.Reconcile.Enabled {
		job = reconcile.NewJob(
			aggregate.NewReconcileService(store.uow, store.projects, updater),
			cfg.Reconcile.Interval, cfg.Reconcile.Repair, log, collector,
		)
		if err := job.Start(); err != nil {
			log.Fatal("failed to start reconciler", "error", err)
		}
	}

	// 6. gRPC server
	grpcServer := grpcadapter.NewGRPCServer(grpcadapter.NewServer(investmentService, projectService), tokens, log)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		log.Fatal("failed to listen", "addr", cfg.Server.GRPCAddr, "error", err)
	}
	go func() {
		log.Info("gRPC server listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("gRPC server failed", "error", err)
		}
	}()

	// 7. HTTP server
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler:        httpapi.NewHandler(investmentService, projectService, dashboardService, tokens, log),
		AuthMiddleware: httpapi.NewAuthMiddleware(log, tokens),
		Log:            log,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		AllowOrigins:   cfg.CORS.AllowOrigins,
		ServiceName:    cfg.Tracing.ServiceName,
		DevTokens:      cfg.Server.Mode == "debug",
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", "error", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down gracefully")
	shutdown(cfg.Server.ShutdownTimeout, log, grpcServer, httpServer, job, shutdownTracing)
}

// openStorage connects the configured driver. The memory driver is seeded
// with demo projects so a fresh process has something to invest in.
func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.Database.Driver == "memory" {
		s := memory.NewStore()
		projects := memory.NewProjectRepository(s)
		n, err := seeder.NewDemoSeeder(projects).Seed(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("memory store ready", "seeded_projects", n)
		return &storage{
			uow:         s,
			projects:    projects,
			investments: memory.NewInvestmentRepository(s),
			close:       func() error { return nil },
		}, nil
	}

	// Give a freshly started Postgres container a moment to accept connections
	if cfg.Database.StartupDelay > 0 {
		time.Sleep(cfg.Database.StartupDelay)
	}
	db, err := postgres.NewDB(ctx, cfg.Database.DSN(), postgres.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.Info("database schema applied")
	}
	return &storage{
		uow:         postgres.NewUnitOfWork(db, cfg.Database.LockTimeout),
		projects:    postgres.NewProjectRepository(db),
		investments: postgres.NewInvestmentRepository(db),
		close:       db.Close,
	}, nil
}

func shutdown(
	timeout time.Duration,
	log *logger.Logger,
	grpcServer *grpclib.Server,
	httpServer *http.Server,
	job *reconcile.Job,
	shutdownTracing func(context.Context) error,
) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if job != nil {
		if err := job.Stop(); err != nil {
			log.Warn("reconciler stop failed", "error", err)
		}
	}
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("HTTP shutdown failed", "error", err)
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		grpcServer.Stop()
	}

	if err := shutdownTracing(ctx); err != nil {
		log.Warn("tracing shutdown failed", "error", err)
	}
	log.Info("servers stopped")
}
