// Package runtime assembles movegate from configuration: the stores, the
// session manager, the action clients and registry, and the HTTP server.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/tjfontaine/movegate/internal/actions"
	"github.com/tjfontaine/movegate/internal/auth"
	"github.com/tjfontaine/movegate/internal/balancer"
	"github.com/tjfontaine/movegate/internal/classifier"
	"github.com/tjfontaine/movegate/internal/config"
	"github.com/tjfontaine/movegate/internal/core/domain"
	"github.com/tjfontaine/movegate/internal/pipeline"
	"github.com/tjfontaine/movegate/internal/server"
	"github.com/tjfontaine/movegate/internal/session"
	"github.com/tjfontaine/movegate/internal/storage"
	"github.com/tjfontaine/movegate/internal/tokens"
)

// App is a fully wired movegate instance.
type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      storage.Store
	classifier classifier.Classifier

	authn    *auth.Authenticator
	registry *actions.Registry
	server   *server.Server

	mu      sync.Mutex
	started bool
	errc    chan error
}

// Option configures an App.
type Option func(*App) error

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithStore uses store instead of opening the configured storage.
func WithStore(store storage.Store) Option {
	return func(a *App) error {
		if store == nil {
			return fmt.Errorf("store is nil")
		}
		a.store = store
		return nil
	}
}

// WithClassifier replaces the stub classifier.
func WithClassifier(c classifier.Classifier) Option {
	return func(a *App) error {
		a.classifier = c
		return nil
	}
}

// New wires an App from cfg.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	a := &App{cfg: cfg, logger: slog.Default(), classifier: classifier.Stub{}}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if a.store == nil {
		store, err := storage.Open(storage.Config{Type: cfg.Storage.Type, DSN: cfg.StorageDSN()})
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		a.store = store
	}

	if err := a.wire(); err != nil {
		a.store.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	sessions, err := session.NewManager([]byte(a.cfg.Session.Secret),
		session.WithTTL(a.cfg.Session.TTL),
		session.WithUserStore(a.store),
	)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}

	clients, err := pipeline.NewClients(pipeline.ClientsConfig{
		Logger:   a.logger,
		Resolver: sessions,
		Audit:    a.store,
	})
	if err != nil {
		return fmt.Errorf("create action clients: %w", err)
	}

	var limit *tokens.Limit
	if a.cfg.Classifier.MaxSentenceTokens > 0 {
		limit = tokens.NewLimit(tokens.NewTiktokenCounter(""), a.cfg.Classifier.MaxSentenceTokens)
	}

	a.authn = auth.NewAuthenticator(a.store, auth.NewPasswordHasher(a.cfg.Auth.BcryptCost))
	a.registry, err = actions.NewStandardRegistry(actions.Deps{
		Clients:       clients,
		Authenticator: a.authn,
		Sessions:      sessions,
		Users:         a.store,
		Audit:         a.store,
		Classifier:    a.classifier,
		Balancer:      balancer.NewRandom[string](),
		Instances:     a.cfg.Balancer.Instances,
		SentenceLimit: limit,
	})
	if err != nil {
		return fmt.Errorf("register actions: %w", err)
	}

	a.server = server.New(server.Options{
		Port:          a.cfg.Server.Port,
		Timeout:       a.cfg.Server.Timeout,
		CookieName:    a.cfg.Session.CookieName,
		SecureCookies: a.cfg.Server.SecureCookies,
	}, a.logger, a.registry)
	return nil
}

// Handler returns the HTTP handler of the app.
func (a *App) Handler() http.Handler {
	return a.server.Router
}

// SeedAdmin creates the configured admin account if it does not exist yet.
func (a *App) SeedAdmin(ctx context.Context) error {
	email, digest := a.cfg.Auth.AdminEmail, a.cfg.Auth.AdminPasswordHash
	if email == "" {
		return nil
	}

	_, err := a.store.GetUserByEmail(ctx, email)
	if err == nil {
		a.logger.Debug("admin account already exists", slog.String("email", email))
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return fmt.Errorf("look up admin account: %w", err)
	}

	user, err := a.authn.RegisterWithHash(ctx, auth.Registration{
		Email: email,
		Name:  "Administrator",
		Role:  domain.RoleAdmin,
		Plan:  domain.PlanPremium,
	}, digest)
	if err != nil {
		return fmt.Errorf("seed admin account: %w", err)
	}
	a.logger.Info("seeded admin account", slog.String("user_id", user.ID), slog.String("email", user.Email))
	return nil
}

// Start seeds the admin account and serves HTTP in the background. Errors
// from the listener are reported by Wait.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("app already started")
	}
	if err := a.SeedAdmin(ctx); err != nil {
		return err
	}

	a.errc = make(chan error, 1)
	go func() {
		a.errc <- a.server.Start()
	}()
	a.started = true

	a.logger.Info("movegate started",
		slog.Int("port", a.cfg.Server.Port),
		slog.String("storage", a.cfg.Storage.Type),
		slog.Any("actions", a.registry.Names()),
	)
	return nil
}

// Wait blocks until the listener stops or ctx is done.
func (a *App) Wait(ctx context.Context) error {
	a.mu.Lock()
	errc := a.errc
	a.mu.Unlock()
	if errc == nil {
		return fmt.Errorf("app not started")
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown gracefully stops the server and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info("shutting down movegate")

	if a.started {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
		a.started = false
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", slog.String("error", err.Error()))
	}

	a.logger.Info("movegate shutdown complete")
	return nil
}
