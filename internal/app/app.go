package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/roombook/internal/clock"
	healthcheck "github.com/vladislavdragonenkov/roombook/internal/health"
	"github.com/vladislavdragonenkov/roombook/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/roombook/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/roombook/internal/service/grpc"
	"github.com/vladislavdragonenkov/roombook/internal/service/notify"
	"github.com/vladislavdragonenkov/roombook/internal/service/reservation"
	"github.com/vladislavdragonenkov/roombook/internal/service/validation"
	"github.com/vladislavdragonenkov/roombook/internal/storage/memory"
	"github.com/vladislavdragonenkov/roombook/internal/version"
)

const grpcStopTimeout = 5 * time.Second

// Run собирает движок бронирования и обслуживает gRPC до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithFields(version.Fields()).Info("starting reservation service")

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	sysClock := clock.NewSystem(loc)

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.closeFn(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close storage")
		}
	}()

	registerer := prometheus.DefaultRegisterer
	engineMetrics := metrics.NewReservationMetricsWithRegisterer(registerer)

	store := memory.NewReservationStore(deps.snapshots,
		memory.WithLogger(logger.WithField("layer", "store")),
		memory.WithPersistObserver(engineMetrics.ObservePersist),
		memory.WithRetry(memory.RetryConfig{
			MaxAttempts:   cfg.PersistMaxAttempts,
			InitialDelay:  cfg.PersistRetryDelay,
			MaxDelay:      time.Second,
			BackoffFactor: 2,
		}),
	)
	if err := store.Load(ctx); err != nil {
		return err
	}

	notifier := notify.NewNotifier(
		notify.WithTimeout(cfg.NotifyTimeout),
		notify.WithClock(sysClock),
		notify.WithRecorder(engineMetrics),
		notify.WithLogger(logger.WithField("layer", "notify")),
	)
	notifier.Register("history", notify.LogObserver(logger.WithField("layer", "history")))
	notifier.Register("inbox", notify.InboxObserver(deps.inbox))

	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	var (
		outboxCancel context.CancelFunc
		outboxDone   <-chan struct{}
	)
	if kafkaProducer != nil {
		notifier.Register("outbox", notify.OutboxObserver(deps.outboxRepo))
		outboxCancel, outboxDone = startOutboxWorker(ctx, cfg, deps.outboxRepo, kafkaProducer, registerer, logger)
	}
	defer shutdownOutboxWorker(outboxCancel, outboxDone, logger)

	retentionCancel, retentionDone := startRetentionWorker(ctx, cfg, *deps, logger)
	defer stopRetentionWorker(retentionCancel, retentionDone, logger)

	if cfg.RabbitMQURL != "" {
		publisher, err := rabbitmq.Dial(cfg.RabbitMQURL, rabbitmq.DefaultQueue, logger.WithField("layer", "rabbitmq"))
		if err != nil {
			logger.WithError(err).Warn("failed to connect to rabbitmq, continuing without it")
		} else {
			notifier.Register("rabbitmq", publisher.Observer())
			defer func() { _ = publisher.Close() }()
		}
	}

	// Доставки завершаются до закрытия publisher-ов и outbox worker.
	defer notifier.Wait()

	engine := reservation.NewService(store,
		reservation.WithPipeline(validation.Default()),
		reservation.WithNotifier(notifier),
		reservation.WithInbox(deps.inbox),
		reservation.WithClock(sysClock),
		reservation.WithMetrics(engineMetrics),
		reservation.WithLogger(logger.WithField("layer", "engine")),
		reservation.WithFacultyAutoApprove(cfg.FacultyAutoApprove),
	)

	grpcMetrics := promgrpc.NewServerMetrics()
	if err := registerer.Register(grpcMetrics); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	grpcsvc.RegisterReservationServer(grpcServer, grpcsvc.NewReservationService(engine, logger.WithField("layer", "grpc")))
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcsvc.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.storageChecker)
	if deps.inboxChecker != nil {
		healthHandler.RegisterChecker("inbox", deps.inboxChecker)
	}
	if kafkaProducer != nil {
		healthHandler.RegisterChecker("outbox", healthcheck.NewBacklogChecker("outbox", cfg.OutboxMaxPending, func(ctx context.Context) (int, error) {
			stats, err := deps.outboxRepo.Stats(ctx)
			return stats.PendingCount, err
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC server listening on %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping gRPC server")
		healthServer.Shutdown()
		stopGRPC(grpcServer, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// stopGRPC ждёт завершения активных вызовов не дольше grpcStopTimeout.
func stopGRPC(server *grpc.Server, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(grpcStopTimeout):
		logger.Warn("graceful stop timed out, forcing stop")
		server.Stop()
	}
}

// startMetricsServer поднимает /metrics и probe-эндпоинты.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("metrics and probes available on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP останавливает HTTP-сервер с таймаутом.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
