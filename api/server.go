// Package api exposes the settlement engine over HTTP/JSON.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"folio/domain/book"
	"folio/infra/ledger"
	"folio/infra/registry"
	"folio/service"
)

type Server struct {
	log       *slog.Logger
	svc       *service.Service
	router    *mux.Router
	startTime time.Time
}

func NewServer(log *slog.Logger, svc *service.Service) *Server {
	s := &Server{
		log:       log,
		svc:       svc,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}
	s.registerRoutes()
	return s
}

// Router returns the handler for mounting into an http.Server.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.Use(s.logRequests)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/accounts", s.handleRegister).Methods("POST")
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")

	api.HandleFunc("/orders", s.handlePlace).Methods("POST")
	api.HandleFunc("/orders/claim", s.handleClaim).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancel).Methods("POST")
	api.HandleFunc("/orders/transfer", s.handleTransfer).Methods("POST")
	api.HandleFunc("/orders/{side}/{price}/{id}", s.handleGetOrder).Methods("GET")

	api.HandleFunc("/fills", s.handleFill).Methods("POST")
	api.HandleFunc("/batch", s.handleBatch).Methods("POST")

	api.HandleFunc("/book", s.handleGetBook).Methods("GET")
	api.HandleFunc("/pricepoints/{side}/{price}", s.handleGetPricePoint).Methods("GET")
	api.HandleFunc("/fees", s.handleGetFees).Methods("GET")
	api.HandleFunc("/fees/claim", s.handleClaimFees).Methods("POST")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// ----- Helpers -----

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}

// respondDomainError maps engine and collaborator errors onto HTTP
// status codes.
func respondDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, book.ErrInvalidAmount),
		errors.Is(err, book.ErrInvalidPrice),
		errors.Is(err, book.ErrInvalidArgument),
		errors.Is(err, registry.ErrEmptyAddress):
		status = http.StatusBadRequest
	case errors.Is(err, book.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, book.ErrInvalidOrderID),
		errors.Is(err, book.ErrOrderDeleted),
		errors.Is(err, registry.ErrNotRegistered):
		status = http.StatusNotFound
	case errors.Is(err, book.ErrOverMaxLastOrderID),
		errors.Is(err, book.ErrAlreadyFilled),
		errors.Is(err, book.ErrCannotPlaceOrder),
		errors.Is(err, registry.ErrAlreadyRegistered):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientAllowance):
		status = http.StatusUnprocessableEntity
	}
	respondError(w, status, err.Error())
}

var (
	errBadSide   = errors.New("side must be sell or buy")
	errBadOpType = errors.New("type must be place, fill, claim, cancel or transfer")
)

func parseSide(s string) (book.Side, bool) {
	switch s {
	case "sell":
		return book.Sell, true
	case "buy":
		return book.Buy, true
	}
	return 0, false
}

// resolveAccount turns either an explicit id or an address into the
// registry id.
func (s *Server) resolveAccount(id uint64, addr string) (uint64, error) {
	if id != 0 {
		return id, nil
	}
	return s.svc.IDOf(addr)
}
