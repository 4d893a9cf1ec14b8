package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/avstrong/hotel/internal/billing"
	"github.com/avstrong/hotel/internal/booking"
	"github.com/avstrong/hotel/internal/boost"
	"github.com/avstrong/hotel/internal/config"
	"github.com/avstrong/hotel/internal/customer"
	"github.com/avstrong/hotel/internal/domain"
	"github.com/avstrong/hotel/internal/idgen/simple"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/migration"
	"github.com/avstrong/hotel/internal/observability"
	"github.com/avstrong/hotel/internal/room"
	"github.com/avstrong/hotel/internal/storage/memory"
	"github.com/avstrong/hotel/internal/storage/postgres"
	"github.com/avstrong/hotel/internal/transport/web"
	"github.com/avstrong/hotel/internal/txn"
)

// store is what the managers need from a storage backend. Both memory and postgres satisfy it.
type store interface {
	txn.Storage
	txn.Locker

	SaveRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, id int64) (*domain.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*domain.Room, error)
	ListRooms(ctx context.Context, filter domain.RoomFilter) ([]*domain.Room, error)

	SaveCustomer(ctx context.Context, customer *domain.Customer) error
	GetCustomer(ctx context.Context, id int64) (*domain.Customer, error)
	GetCustomerByIdentification(ctx context.Context, identification string) (*domain.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)

	SaveReservation(ctx context.Context, reservation *domain.Reservation) error
	GetReservation(ctx context.Context, id int64) (*domain.Reservation, error)
	ListReservations(ctx context.Context, filter domain.ReservationFilter) ([]*domain.Reservation, error)
	SaveIdempotencyKey(ctx context.Context, key string, reservationID int64) error
	GetReservationIDByIdempotencyKey(ctx context.Context, key string) (int64, error)

	SaveInvoice(ctx context.Context, invoice *domain.Invoice) error
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	GetInvoiceByNumber(ctx context.Context, number string) (*domain.Invoice, error)
	GetInvoiceByReservation(ctx context.Context, reservationID int64) (*domain.Invoice, error)
	LastInvoiceNumber(ctx context.Context) (string, error)
	SavePayment(ctx context.Context, payment *domain.Payment) error
	ListPayments(ctx context.Context, invoiceID int64) ([]*domain.Payment, error)

	SaveAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	GetAccountByCode(ctx context.Context, code string) (*domain.Account, error)
	ListAccounts(ctx context.Context, filter domain.AccountFilter) ([]*domain.Account, error)
	SaveEntry(ctx context.Context, entry *domain.JournalEntry) error
	ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.JournalEntry, error)

	SavePromo(ctx context.Context, promo *domain.Promo) error
	GetPromo(ctx context.Context, code string) (*domain.Promo, error)
}

type idGenerator interface {
	GetID(ctx context.Context) (int64, error)
}

// openStore returns the configured backend and a release func for it.
func openStore(ctx context.Context, l *logger.Logger, conf *config.Config) (store, idGenerator, func(), error) {
	if conf.StorageDriver != config.DriverPostgres {
		return memory.New(memory.Config{L: l}), simple.New(), func() {}, nil
	}

	db, err := postgres.Connect(ctx, postgres.Config{L: l, URL: conf.DatabaseURL, MaxConns: conf.DBMaxConns})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err = db.Migrate(ctx); err != nil {
		db.Close()

		return nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return db, db, db.Close, nil
}

func managers(l *logger.Logger, conf *config.Config, db store, idGen idGenerator) web.Managers {
	ledgerManager := ledger.New(l, db, idGen, ledger.WithRevenueAccountCode(conf.RevenueAccountCode))
	billingManager := billing.New(l, db, idGen, ledgerManager, billing.WithTaxRate(conf.TaxRate))

	return web.Managers{
		Rooms:     room.New(l, db, idGen),
		Customers: customer.New(l, db, idGen),
		Booking:   booking.New(l, db, idGen, billingManager),
		Billing:   billingManager,
		Ledger:    ledgerManager,
		Boost:     boost.New(db),
	}
}

func Run(l *logger.Logger, conf *config.Config) error {
	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGHUP,
	)
	defer cancel()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.Config{
		ServiceName:    config.ServiceName,
		ServiceVersion: config.ServiceVersion,
		Endpoint:       conf.OtelEndpoint,
		Insecure:       conf.OtelInsecure,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:mnd
		defer cancel()

		if err := shutdownTracing(ctx); err != nil {
			l.LogErrorf("Failed to flush traces: %v", err.Error())
		}
	}()

	db, idGen, closeStore, err := openStore(ctx, l, conf)
	if err != nil {
		return err
	}
	defer closeStore()

	m := managers(l, conf, db, idGen)

	deps := migration.Deps{Storage: db, Accounts: m.Ledger, Rooms: m.Rooms}
	if err = migration.Up(ctx, l, deps, conf.SeedDemoData); err != nil {
		return fmt.Errorf("up migration: %w", err)
	}

	webConf := web.Conf{
		L:                 l,
		ServerLogger:      l.StdLogger(),
		Host:              conf.HTTPHost,
		Port:              conf.HTTPPort,
		ReadHeaderTimeout: conf.HTTPReadHeaderTimeout,
		LivenessEndpoint:  "/liveness",
	}

	srv, err := web.New(ctx, webConf, m)
	if err != nil {
		return fmt.Errorf("init http server: %w", err)
	}

	//nolint:contextcheck
	go func() {
		<-ctx.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*4) //nolint:mnd
		defer cancel()

		if err := srv.Srv().Shutdown(ctx); err != nil {
			l.LogErrorf("Failed to stop http server: %v", err.Error())
		}
	}()

	l.LogInfo("Application is running on %v:%v with %s storage...", webConf.Host, webConf.Port, conf.StorageDriver)

	if err := srv.Srv().ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		cancel()

		return fmt.Errorf("run http server: %w", err)
	}

	l.LogInfo("Application stopped gracefully")

	return nil
}
