package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/account"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/ledger"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/order"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/domain/ordernum"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/handler"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/internal/storage/postgres"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/pkg/health"
	"github.com/soufyane73/E-commerce-Parapharmacy-Platform/pkg/httpmiddleware"
)

const (
	serviceName           = "parapharmacy-api"
	consumerCounter       = "orders:consumer"
	instrumentationPrefix = "github.com/soufyane73/E-commerce-Parapharmacy-Platform/"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, t *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	meter := t.MeterProvider().Meter(instrumentationPrefix + "order")
	tracer := t.TracerProvider().Tracer(instrumentationPrefix + "order")

	// Health checks.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	if err := healthSvc.RegisterMetrics(t.MeterProvider().Meter(instrumentationPrefix + "health")); err != nil {
		return errors.Wrap(err, "health metrics")
	}

	// Repositories.
	products := postgres.NewProductRepository(pool)
	carts := postgres.NewCartRepository(pool)
	accounts := postgres.NewAccountRepository(pool)
	clients := postgres.NewClientRepository(pool)
	orders := postgres.NewOrderStore(pool, lg.Named("orders.store"))

	// Client ledger, optionally behind a worker queue.
	policy, err := ledger.ParsePolicy(cfg.Ledger.UnknownClient)
	if err != nil {
		return errors.Wrap(err, "ledger policy")
	}
	ledgerSvc, err := ledger.NewService(clients, policy, lg.Named("ledger"), meter)
	if err != nil {
		return errors.Wrap(err, "create ledger")
	}
	var (
		recorder ledger.Recorder = ledgerSvc
		async    *ledger.Async
	)
	if cfg.Ledger.Async {
		async, err = ledger.NewAsync(ledgerSvc, ledger.AsyncOptions{
			Workers:      cfg.Ledger.Workers,
			QueueSize:    cfg.Ledger.QueueSize,
			DrainTimeout: cfg.Ledger.DrainTimeout,
		}, lg.Named("ledger"), meter)
		if err != nil {
			return errors.Wrap(err, "create async ledger")
		}
		recorder = async
	}

	orderSvc, err := order.NewService(order.Config{
		Timeout:        cfg.Orders.Timeout,
		NumberAttempts: cfg.Orders.NumberAttempts,
	}, order.Deps{
		Products:        products,
		Carts:           carts,
		Store:           orders,
		ConsumerNumbers: ordernum.NewDailySequence(cfg.Orders.ConsumerPrefix, consumerCounter, cfg.Orders.SequenceWidth),
		BulkNumbers:     ordernum.NewTimestamp(cfg.Orders.BulkPrefix),
		Ledger:          recorder,
		Logger:          lg.Named("orders"),
		Meter:           meter,
		Tracer:          tracer,
	})
	if err != nil {
		return errors.Wrap(err, "create order service")
	}

	// HTTP: health endpoints + API routes on one mux.
	h := handler.NewHandler(orderSvc, account.NewAuthenticator(accounts, []byte(cfg.TokenPepper)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, httpmiddleware.Route)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Orders.Timeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.InjectLogger(lg.Named("http")),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument(serviceName, t.TracerProvider(), t.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
		),
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// The ledger queue is stopped only after the listener has shut down.
	ledgerCtx, stopLedger := context.WithCancel(context.WithoutCancel(ctx))
	defer stopLedger()

	g, gctx := errgroup.WithContext(ctx)
	if async != nil {
		g.Go(func() error {
			return async.Run(ledgerCtx)
		})
	}
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: drop readiness, drain, then stop.
		<-gctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		if ctx.Err() != nil {
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		stopLedger()
		return nil
	})
	return g.Wait()
}
