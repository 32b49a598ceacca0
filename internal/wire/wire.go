// internal/wire/wire.go
package wire

import (
	"net/http"

	"vehicle-rental/internal/adaptor"
	"vehicle-rental/internal/data/repository"
	"vehicle-rental/internal/gateway"
	"vehicle-rental/internal/notify"
	"vehicle-rental/internal/usecase"
	"vehicle-rental/pkg/middleware"
	"vehicle-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Ports are the external systems the service layer talks to.
type Ports struct {
	Gateway  gateway.Gateway
	Catalog  usecase.Catalog
	Notifier notify.Dispatcher
}

// App menyimpan semua dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring menginisialisasi semua dependencies
func Wiring(repo *repository.Repository, ports Ports, config *utils.Config, logger *zap.Logger) *App {
	service := usecase.NewService(repo, ports.Gateway, ports.Catalog, ports.Notifier, logger)
	handler := adaptor.NewHandler(service, logger)

	return &App{
		Router:  setupRouter(handler, config, logger),
		Service: service,
	}
}

// setupRouter konfigurasi Chi router
func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	// Apply routes
	wireBooking(r, handler, config, logger)
	wirePayment(r, handler.Payment, config, logger)
	wireInspection(r, handler.Inspection, config, logger)
	wireClaim(r, handler.Claim, config, logger)
	wireAdmin(r, handler, config, logger)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
