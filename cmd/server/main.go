package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vogiaan1904/ticketbottle-admission/config"
	"github.com/vogiaan1904/ticketbottle-admission/internal/infra/redis"
	"github.com/vogiaan1904/ticketbottle-admission/internal/infra/sqlite"
	"github.com/vogiaan1904/ticketbottle-admission/internal/kafka"
	redisRepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/redis"
	sqlRepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	"github.com/vogiaan1904/ticketbottle-admission/internal/service"
	pkgKafka "github.com/vogiaan1904/ticketbottle-admission/pkg/kafka"
	pkgLog "github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/redislock"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	redisCli, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer redis.Disconnect(redisCli)

	db, err := sqlite.Connect(cfg.SQLite)
	if err != nil {
		l.Fatalf(ctx, "Failed to open SQLite store: %v", err)
	}
	defer sqlite.Disconnect(db)

	if err := sqlRepo.Bootstrap(ctx, db); err != nil {
		l.Fatalf(ctx, "Failed to bootstrap schema: %v", err)
	}

	// Kafka producer (optional: local runs work without a broker)
	prod := kafka.NewNoopProducer()
	if cfg.Kafka.Enabled {
		kSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			RetryMax:     cfg.Kafka.ProducerRetryMax,
			RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
		})
		if err != nil {
			l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
		}
		prod = kafka.NewProducer(kSyncProd, l)
	}
	defer prod.Close()

	// Repositories
	eventRepo := sqlRepo.NewSQLEventRepository(db, l)
	entryRepo := sqlRepo.NewSQLQueueEntryRepository(db, l)
	seatRepo := sqlRepo.NewSQLSeatRepository(db, l)
	reservationRepo := sqlRepo.NewSQLReservationRepository(db, l)
	registrationRepo := sqlRepo.NewSQLRegistrationRepository(db, l)
	counterRepo := redisRepo.NewRedisCounterRepository(redisCli, l)

	// Cluster-wide lock
	locker := service.NewInstrumentedLocker(
		redislock.New(redisCli, cfg.Lock.AtMostFor, cfg.Lock.AtLeastFor, l),
	)

	// Services behind the background daemon. The synchronous purchase
	// path (seat selection, payment) is exposed by the upstream API
	// layer, which builds on the same service constructors.
	seatSvc := service.NewSeatService(seatRepo, prod, l)
	shuffleSvc := service.NewShuffleService(eventRepo, entryRepo, registrationRepo, counterRepo, locker, l)
	admissionSvc := service.NewAdmissionService(service.AdmissionConfig{
		EntryWindow: cfg.Queue.EntryWindow,
		BatchSize:   cfg.Queue.AdmissionBatchSize,
	}, eventRepo, entryRepo, counterRepo, locker, prod, l)
	expirationSvc := service.NewExpirationService(entryRepo, reservationRepo, counterRepo, seatSvc, locker, prod, l)

	scheduler := service.NewScheduler(service.SchedulerConfig{
		ShuffleLead: cfg.Scheduler.ShuffleLead,
	}, eventRepo, shuffleSvc, locker, prod, l)

	processor := service.NewProcessor(admissionSvc, expirationSvc, l, service.ProcessorConfig{
		AdmissionInterval:  cfg.Queue.AdmissionInterval,
		ExpirationInterval: cfg.Queue.ExpirationInterval,
	})

	if err := scheduler.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start scheduler: %v", err)
	}
	defer scheduler.Stop(ctx)

	if err := processor.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start processor: %v", err)
	}
	defer func() {
		if err := processor.Stop(); err != nil {
			l.Errorf(ctx, "Processor stop: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/statusz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(processor.GetStatus())
	})

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: mux,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		l.Infof(ctx, "Metrics listening on %s", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			l.Infof(ctx, "Received signal %s, shutting down", sig)
		case <-gCtx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		l.Errorf(ctx, "Shutdown: %v", err)
	}

	l.Info(ctx, "Server exited")
}
