package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vogiaan1904/ticketbottle-admission/config"
	apperrors "github.com/vogiaan1904/ticketbottle-admission/internal/errors"
	"github.com/vogiaan1904/ticketbottle-admission/internal/infra/redis"
	"github.com/vogiaan1904/ticketbottle-admission/internal/infra/sqlite"
	"github.com/vogiaan1904/ticketbottle-admission/internal/kafka"
	"github.com/vogiaan1904/ticketbottle-admission/internal/models"
	"github.com/vogiaan1904/ticketbottle-admission/internal/payment"
	redisRepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/redis"
	sqlRepo "github.com/vogiaan1904/ticketbottle-admission/internal/repository/sql"
	"github.com/vogiaan1904/ticketbottle-admission/internal/service"
	pkgLog "github.com/vogiaan1904/ticketbottle-admission/pkg/logger"
	"github.com/vogiaan1904/ticketbottle-admission/pkg/redislock"
)

// Drives a full flash sale end to end against a local Redis and a
// scratch SQLite file: register users, shuffle, open, admit a batch,
// then let every admitted user race for the same small seat block.
// Useful for eyeballing contention behavior and counter drift.

var (
	numUsers  = flag.Int("users", 300, "Number of registered users")
	numSeats  = flag.Int("seats", 50, "Number of seats to fight over")
	dbPath    = flag.String("db", "simulate-sale.db", "SQLite path (scratch file)")
	redisAddr = flag.String("redis", "localhost:6379", "Redis address (host:port)")
	payRate   = flag.Float64("pay-rate", 0.8, "Probability an admitted user who got a seat confirms payment")
)

func main() {
	flag.Parse()

	ctx := context.Background()
	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{Level: "info", Mode: "development", Encoding: "console"})

	redisCli, err := redis.Connect(ctx, config.RedisConfig{Addr: *redisAddr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis: %v\n", err)
		os.Exit(1)
	}
	defer redis.Disconnect(redisCli)

	_ = os.Remove(*dbPath)
	db, err := sqlite.Connect(config.SQLiteConfig{Path: *dbPath, BusyTimeout: 5 * time.Second})
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqlite: %v\n", err)
		os.Exit(1)
	}
	defer sqlite.Disconnect(db)

	if err := sqlRepo.Bootstrap(ctx, db); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap: %v\n", err)
		os.Exit(1)
	}

	eventRepo := sqlRepo.NewSQLEventRepository(db, l)
	entryRepo := sqlRepo.NewSQLQueueEntryRepository(db, l)
	seatRepo := sqlRepo.NewSQLSeatRepository(db, l)
	reservationRepo := sqlRepo.NewSQLReservationRepository(db, l)
	registrationRepo := sqlRepo.NewSQLRegistrationRepository(db, l)
	counterRepo := redisRepo.NewRedisCounterRepository(redisCli, l)

	locker := service.NewInstrumentedLocker(redislock.New(redisCli, 30*time.Second, 0, l))
	prod := kafka.NewNoopProducer()
	gateway := payment.NewSandboxGateway(5*time.Second, l)

	seatSvc := service.NewSeatService(seatRepo, prod, l)
	shuffleSvc := service.NewShuffleService(eventRepo, entryRepo, registrationRepo, counterRepo, locker, l)
	admissionSvc := service.NewAdmissionService(service.AdmissionConfig{
		EntryWindow: 15 * time.Minute,
		BatchSize:   *numUsers,
	}, eventRepo, entryRepo, counterRepo, locker, prod, l)
	reservationSvc := service.NewReservationService(entryRepo, reservationRepo, seatRepo, counterRepo, seatSvc, gateway, prod, l)
	scheduler := service.NewScheduler(service.SchedulerConfig{ShuffleLead: 10 * time.Minute}, eventRepo, shuffleSvc, locker, prod, l)
	eventSvc := service.NewEventService(eventRepo, seatRepo, registrationRepo, scheduler, l)

	now := time.Now()
	event, err := eventSvc.CreateEvent(ctx, service.CreateEventInput{
		Name: "Simulated flash sale",
		Schedule: service.ScheduleInput{
			PreOpenAt:     now.Add(1 * time.Hour),
			PreCloseAt:    now.Add(2 * time.Hour),
			TicketOpenAt:  now.Add(3 * time.Hour),
			TicketCloseAt: now.Add(4 * time.Hour),
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create event: %v\n", err)
		os.Exit(1)
	}
	scheduler.Stop(ctx) // Timers are hours out; this run drives transitions directly

	seats := make([]service.SeatInput, 0, *numSeats)
	for i := 0; i < *numSeats; i++ {
		seats = append(seats, service.SeatInput{
			Code:  fmt.Sprintf("A-%03d", i+1),
			Grade: "standard",
			Price: decimal.NewFromInt(120),
		})
	}
	if err := eventSvc.AddSeats(ctx, event.ID, seats); err != nil {
		fmt.Fprintf(os.Stderr, "add seats: %v\n", err)
		os.Exit(1)
	}

	for i := 0; i < *numUsers; i++ {
		userID := fmt.Sprintf("user-%04d", i+1)
		if err := eventSvc.RegisterUser(ctx, event.ID, userID); err != nil {
			fmt.Fprintf(os.Stderr, "register %s: %v\n", userID, err)
			os.Exit(1)
		}
	}

	if err := shuffleSvc.TriggerShuffle(ctx, event.ID); err != nil {
		fmt.Fprintf(os.Stderr, "shuffle: %v\n", err)
		os.Exit(1)
	}

	for _, status := range []models.EventStatus{
		models.EventStatusPreOpen, models.EventStatusPreClosed,
		models.EventStatusQueueReady, models.EventStatusOpen,
	} {
		if _, err := eventRepo.AdvanceStatus(ctx, event.ID, status); err != nil {
			fmt.Fprintf(os.Stderr, "advance to %s: %v\n", status, err)
			os.Exit(1)
		}
	}

	batch, err := admissionSvc.ProcessOpenEvents(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "admission: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Admitted %d users (%d failed)\n", batch.Succeeded, batch.Failed)

	allSeats, err := seatRepo.FindByEvent(ctx, event.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list seats: %v\n", err)
		os.Exit(1)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		sold     int
		conflict int
	)

	for i := 0; i < *numUsers; i++ {
		userID := fmt.Sprintf("user-%04d", i+1)
		wg.Add(1)
		go func(userID string, i int) {
			defer wg.Done()

			// Everyone goes for a seat near the front of the block,
			// maximizing collisions.
			seat := allSeats[i%min(*numSeats, 10)]
			_, err := reservationSvc.SelectSeat(ctx, event.ID, userID, seat.ID)
			if err != nil {
				if errors.Is(err, apperrors.ErrSeatAlreadyReserved) ||
					errors.Is(err, apperrors.ErrSeatAlreadySold) ||
					errors.Is(err, apperrors.ErrConcurrencyConflict) {
					mu.Lock()
					conflict++
					mu.Unlock()
				}
				return
			}
			mu.Lock()
			reserved++
			mu.Unlock()

			if float64(i%100)/100.0 < *payRate {
				if _, err := reservationSvc.ConfirmPayment(ctx, event.ID, userID); err == nil {
					mu.Lock()
					sold++
					mu.Unlock()
				}
			}
		}(userID, i)
	}
	wg.Wait()

	counts, err := counterRepo.Counts(ctx, event.ID)
	if err == nil {
		fmt.Printf("Counter mirror: waiting=%d entered=%d\n", counts.Waiting, counts.Entered)
	}

	fmt.Printf("Seat race over %d contested seats: %d reserved, %d sold, %d turned away\n",
		min(*numSeats, 10), reserved, sold, conflict)
}
