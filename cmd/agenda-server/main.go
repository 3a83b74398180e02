package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"agenda/backend/internal/config"
	"agenda/backend/internal/domain"
	"agenda/backend/internal/jobs"
	"agenda/backend/internal/locale"
	"agenda/backend/internal/mail"
	"agenda/backend/internal/metrics"
	"agenda/backend/internal/service/appointments"
	"agenda/backend/internal/service/notifications"
	"agenda/backend/internal/store/sqlstore"
	httpapi "agenda/backend/internal/transport/http"
	grpcTransport "agenda/backend/internal/transport/grpc"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("dotenv load failed", slog.Any("err", err))
	}

	log := newLogger("info")
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = newLogger(cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)})).With(
		slog.String("service", "agenda-server"),
	)
}

func run(cfg config.Config, log *slog.Logger) error {
	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.LogLevel),
	)

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := sqlstore.Open(cfg.DatabaseURL, sqlstore.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := sqlstore.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sqlstore.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	formatter, err := locale.NewFormatter(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("locale: %w", err)
	}

	m := metrics.New()
	apptRepo := sqlstore.NewAppointmentRepo(db)
	userRepo := sqlstore.NewUserRepo(db)
	notificationRepo := sqlstore.NewNotificationRepo(db)
	jobRepo := sqlstore.NewJobRepo(db)
	queue := jobs.NewQueue(jobRepo, cfg.JobMaxAttempts)

	transport, err := newMailTransport(ctx, cfg, log.With(slog.String("component", "mail")))
	if err != nil {
		return fmt.Errorf("mail transport: %w", err)
	}
	mailer, err := mail.NewMailer(cfg.MailFrom, transport)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	emitter := notifications.NewEmitter(notificationRepo, userRepo, formatter, log.With(slog.String("component", "notifications")))

	registry := jobs.NewRegistry()
	registry.Register(domain.JobCancellationMail, mail.NewCancellationHandler(mailer, formatter))
	registry.Register(domain.JobAppointmentNotification, notifications.BookingJob(emitter))

	var notifier appointments.ProviderNotifier = emitter
	if cfg.NotificationsDeferred {
		notifier = notifications.NewDeferred(queue)
	}

	svc := appointments.NewService(
		apptRepo,
		userRepo,
		notifier,
		appointments.NewJobDispatcher(queue),
		appointments.WithFilesBaseURL(cfg.FilesBaseURL),
		appointments.WithLocation(formatter.Location()),
	)

	limiter := httpapi.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	e := httpapi.NewRouter(svc, httpapi.Options{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.HTTPRequestTimeout,
		Limiter:        limiter,
		Notifications:  emitter,
		DB:             db,
		Metrics:        m,
		Log:            log.With(slog.String("component", "http")),
	})

	grpcServer, healthServer := grpcTransport.NewServer(cfg.GRPCRequestTimeout, log.With(slog.String("component", "grpc")))
	reporter := grpcTransport.NewHealthReporter(healthServer, db, cfg.HealthInterval, log.With(slog.String("component", "health")))

	worker := jobs.NewWorker(jobRepo, registry, m, log.With(slog.String("component", "jobs")), jobs.WorkerConfig{
		Concurrency:  cfg.JobWorkers,
		PollInterval: cfg.JobPollInterval,
		Lease:        cfg.JobLease,
		Timeout:      cfg.JobTimeout,
	})

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx) })
	g.Go(func() error { return reporter.Run(gctx) })
	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			log.Info("shutdown signal received")
		}
		shutdown(log, e, grpcServer, cfg.ShutdownTimeout)
		return nil
	})

	return g.Wait()
}

func newMailTransport(ctx context.Context, cfg config.Config, log *slog.Logger) (mail.Transport, error) {
	if !cfg.MailEnabled {
		log.Info("mail delivery disabled; messages are logged")
		return mail.NewLogTransport(log), nil
	}
	switch cfg.MailDriver {
	case "ses":
		return mail.NewSESTransport(ctx, cfg.SESRegion)
	default:
		return mail.NewSMTPTransport(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	}
}

func shutdown(log *slog.Logger, e *echo.Echo, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	if strings.HasPrefix(databaseURL, "sqlite:") {
		return []any{
			slog.String("db_driver", "sqlite"),
			slog.String("db_name", strings.TrimPrefix(databaseURL, "sqlite:")),
		}
	}
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_driver", "postgres"),
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
