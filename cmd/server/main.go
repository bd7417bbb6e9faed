package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/gatherly/internal/auth"
	"github.com/mmynk/gatherly/internal/budget"
	"github.com/mmynk/gatherly/internal/chat"
	"github.com/mmynk/gatherly/internal/config"
	"github.com/mmynk/gatherly/internal/dashboard"
	"github.com/mmynk/gatherly/internal/friends"
	"github.com/mmynk/gatherly/internal/metrics"
	"github.com/mmynk/gatherly/internal/middleware"
	"github.com/mmynk/gatherly/internal/notify"
	"github.com/mmynk/gatherly/internal/preferences"
	"github.com/mmynk/gatherly/internal/recurrence"
	"github.com/mmynk/gatherly/internal/scheduler"
	"github.com/mmynk/gatherly/internal/service"
	"github.com/mmynk/gatherly/internal/storage"
	"github.com/mmynk/gatherly/internal/storage/mongodb"
	"github.com/mmynk/gatherly/internal/storage/sqlite"
	"github.com/mmynk/gatherly/internal/templates"
	"github.com/mmynk/gatherly/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logging.Setup()

	if err := run(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.Path("./config.yaml"))
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwtSecret (JWT_SECRET) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	bus, err := openBus(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	expander := recurrence.Expander{}
	prefs := preferences.New(store)
	notifier := notify.NewNotifier(store, bus, nil).WithPreferences(prefs)
	chats := chat.New(store, notifier, bus, nil)
	manager := notify.NewManager(store, bus, m, nil)
	rollup := budget.New(store, cfg.Location(), m)
	friendAgg := friends.New(store)
	board := &dashboard.Aggregator{
		Events:        store,
		Budgets:       rollup,
		Friends:       friendAgg,
		Notifications: store,
		Expander:      expander,
		UpcomingLimit: cfg.Dashboard.UpcomingLimit,
	}

	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, 24*time.Hour)
	opts := []connect.HandlerOption{connect.WithInterceptors(
		middleware.MetricsInterceptor(m),
		middleware.RequireAuth(tokens),
		middleware.LoggingInterceptor(),
	)}

	eventOpts := []service.EventOption{
		service.WithChats(chats),
		service.WithTemplates(templates.New(store)),
	}
	if cfg.Events.FriendsOnlyInvites {
		eventOpts = append(eventOpts, service.WithFriendsOnlyInvites(friendAgg))
	}

	mux := http.NewServeMux()
	mux.Handle(service.NewEventService(store, notifier, expander, cfg.CurrencyUnit, eventOpts...).Handler(opts...))
	mux.Handle(service.NewCalendarService(store, cfg.Location(), cfg.ListHorizon(), expander).WithPreferences(prefs).Handler(opts...))
	mux.Handle(service.NewChatService(chats).Handler(opts...))
	mux.Handle(service.NewPreferenceService(prefs).Handler(opts...))
	mux.Handle(service.NewFriendService(friendAgg).Handler(opts...))
	mux.Handle(service.NewBudgetService(rollup, store, cfg.CurrencyUnit).Handler(opts...))
	mux.Handle(service.NewNotificationService(manager, store).Handler(opts...))
	mux.Handle(service.NewDashboardService(board).Handler(opts...))
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	if cfg.SweepEnabled() {
		sched := scheduler.New(slog.Default())
		sweeper := &scheduler.Sweeper{Events: store, Expander: expander, Metrics: m}
		if err := sched.AddSweep(ctx, cfg.Scheduler.CompletionSweep, sweeper); err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
		slog.Info("Completion sweep scheduled", "spec", cfg.Scheduler.CompletionSweep)
	}

	// h2c serves HTTP/2 without TLS, which Connect streaming needs behind plain HTTP.
	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: h2c.NewHandler(loggingMiddleware(corsMiddleware(mux)), &http2.Server{}),
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", cfg.Listen)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		store, err := mongodb.New(connectCtx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", "mongo", "database", cfg.Storage.MongoDatabase)
		return store, nil
	default:
		store, err := sqlite.New(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		slog.Info("Storage initialized", "driver", "sqlite", "database", cfg.Storage.SQLitePath)
		return store, nil
	}
}

func openBus(cfg *config.Config) (notify.Bus, error) {
	if cfg.Redis.Addr == "" {
		return notify.NewLocalBus(), nil
	}
	client, err := notify.NewRedis(cfg.Redis.Addr)
	if err != nil {
		return nil, err
	}
	slog.Info("Notification bus connected", "redis", cfg.Redis.Addr)
	return notify.NewRedisBus(client, nil), nil
}

// loggingMiddleware logs every plain HTTP request. RPCs are also logged by
// the connect interceptors.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Connect-Protocol-Version, Connect-Timeout-Ms")
		w.Header().Set("Access-Control-Expose-Headers", "Connect-Protocol-Version, Connect-Timeout-Ms")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
