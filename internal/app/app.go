// Package app wires configuration, storage, mail and services into a runnable portal.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/vilonda/portal/api/handlers"
	"github.com/vilonda/portal/config"
	"github.com/vilonda/portal/internal/database"
	"github.com/vilonda/portal/internal/logging"
	"github.com/vilonda/portal/internal/mail"
	"github.com/vilonda/portal/internal/metrics"
	"github.com/vilonda/portal/internal/repository"
	"github.com/vilonda/portal/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the components of a running portal.
type App struct {
	Config   *config.PortalConfig
	Logger   *zap.Logger
	DB       *gorm.DB
	Metrics  *metrics.Metrics
	Mailer   mail.Mailer
	Services handlers.Services
}

// Initialize builds the logger, opens and migrates the database and constructs every
// service from cfg.
func Initialize(cfg *config.PortalConfig) (*App, error) {
	logger, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		Service:     cfg.ServiceName,
		Version:     cfg.ServiceVersion,
	})
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Options{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DBDSN,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		LogQueries:      cfg.DBLogQueries,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	return New(cfg, db, NewMailer(cfg, logger), metrics.New(), logger), nil
}

// New constructs repositories and services over an open database.
func New(cfg *config.PortalConfig, db *gorm.DB, mailer mail.Mailer, m *metrics.Metrics, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	users := repository.NewUserRepository(db)
	companies := repository.NewCompanyRepository(db)
	brokers := repository.NewBrokerRepository(db)
	vehicles := repository.NewVehicleRepository(db)

	templates := Templates(cfg)
	notifier := service.NewNotifier(mailer, m, logger)

	verifications := service.NewVerificationService(repository.NewVerificationRepository(db), users, cfg, templates, notifier)
	settings := service.NewSettingsService(repository.NewSettingsRepository(db))

	return &App{
		Config:  cfg,
		Logger:  logger,
		DB:      db,
		Metrics: m,
		Mailer:  mailer,
		Services: handlers.Services{
			Auth:          service.NewAuthenticationService(users, verifications, cfg, logger),
			Verifications: verifications,
			Companies:     service.NewCompanyService(companies, users, brokers, verifications, notifier, templates, cfg, logger),
			Brokers:       service.NewBrokerService(brokers, users, notifier, templates, cfg, m, logger),
			Vehicles:      service.NewVehicleService(vehicles, settings),
			Requests:      service.NewVehicleRequestService(vehicles, users, companies, notifier, templates),
			Settings:      settings,
		},
	}
}

// Templates maps the configured provider template ids.
func Templates(cfg *config.PortalConfig) mail.Templates {
	return mail.Templates{
		BrokerInvite:   cfg.BrevoTemplateBrokerInvite,
		Verification:   cfg.BrevoTemplateVerification,
		CompanyWelcome: cfg.BrevoTemplateCompany,
		VehicleRequest: cfg.BrevoTemplateVehicleReq,
	}
}

// NewMailer returns the Brevo client when an API key is configured and a logging
// mailer otherwise.
func NewMailer(cfg *config.PortalConfig, logger *zap.Logger) mail.Mailer {
	if strings.TrimSpace(cfg.BrevoAPIKey) == "" {
		logger.Warn("BREVO_API_KEY not set, emails will only be logged")
		return mail.LogMailer{Logger: logger}
	}
	return mail.NewBrevoClient(cfg.BrevoBaseURL, cfg.BrevoAPIKey, cfg.BrevoTimeout)
}

// Router returns the HTTP routes of the portal.
func (a *App) Router() *mux.Router {
	return handlers.NewRouter(a.Services, a.Config.ServiceName, a.Metrics, a.Logger)
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         a.Config.HTTPAddr,
		Handler:      a.Router(),
		ReadTimeout:  a.Config.ReadTimeout,
		WriteTimeout: a.Config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

// Close releases the database and flushes the logger.
func (a *App) Close() error {
	err := database.Close(a.DB)
	_ = a.Logger.Sync()
	return err
}
