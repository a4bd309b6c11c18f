package cli

import (
	"context"
	"errors"

	"github.com/amora-chat/amora/adapter/api"
	billingApp "github.com/amora-chat/amora/internal/billing/application"
	"github.com/amora-chat/amora/internal/billing/domain"
	"github.com/amora-chat/amora/internal/shared/infrastructure/outbox"
)

// ErrNoDatabase is returned by commands that need the billing ledger when the
// CLI started without one.
var ErrNoDatabase = errors.New("command requires database connection")

// AdapterRegistry resolves provider names for replay.
type AdapterRegistry interface {
	Get(name string) (domain.ProviderAdapter, error)
	Names() []string
}

// App holds the CLI application dependencies.
type App struct {
	BillingService *billingApp.Service
	Adapters       AdapterRegistry

	// Server and OutboxProcessor back the serve command.
	Server          *api.Server
	OutboxProcessor *outbox.Processor

	// Migrate applies pending schema migrations and returns their names.
	Migrate func(ctx context.Context) ([]string, error)
}

// NewApp creates a new CLI application.
func NewApp(service *billingApp.Service, adapters AdapterRegistry) *App {
	return &App{
		BillingService: service,
		Adapters:       adapters,
	}
}

var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}

// RequireBilling returns the billing service or ErrNoDatabase.
func RequireBilling() (*billingApp.Service, error) {
	if app == nil || app.BillingService == nil {
		return nil, ErrNoDatabase
	}
	return app.BillingService, nil
}
