package web

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/avstrong/hotel/internal/billing"
	"github.com/avstrong/hotel/internal/booking"
	"github.com/avstrong/hotel/internal/boost"
	"github.com/avstrong/hotel/internal/customer"
	"github.com/avstrong/hotel/internal/ledger"
	"github.com/avstrong/hotel/internal/logger"
	"github.com/avstrong/hotel/internal/room"
)

var ErrPanic = errors.New("panic in handler")

type Server struct {
	srv    *http.Server
	router *http.ServeMux
	l      *logger.Logger
	conf   Conf
	m      Managers
}

type Conf struct {
	L                 *logger.Logger
	ServerLogger      *log.Logger
	Host              string
	Port              string
	ReadHeaderTimeout time.Duration
	LivenessEndpoint  string
}

// Managers are the core operations exposed over HTTP.
type Managers struct {
	Rooms     *room.Manager
	Customers *customer.Manager
	Booking   *booking.Manager
	Billing   *billing.Manager
	Ledger    *ledger.Manager
	Boost     *boost.Manager
}

func New(ctx context.Context, conf Conf, managers Managers) (*Server, error) {
	mux := http.NewServeMux()

	//nolint:exhaustruct
	srv := &http.Server{
		Addr:              net.JoinHostPort(conf.Host, conf.Port),
		ReadHeaderTimeout: conf.ReadHeaderTimeout,
		ErrorLog:          conf.ServerLogger,
		Handler:           mux,
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
	}

	server := &Server{
		srv:    srv,
		router: mux,
		l:      conf.L,
		conf:   conf,
		m:      managers,
	}

	server.addRoutes(mux)

	return server, nil
}

func (s *Server) Srv() *http.Server {
	return s.srv
}

// Handler is the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}
