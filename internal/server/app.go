// Package server wires configuration, storage, the model client and the
// HTTP API together and runs the service until it is signaled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/estatematch/internal/cryptox"
	"github.com/dmitrijs2005/estatematch/internal/interpret"
	"github.com/dmitrijs2005/estatematch/internal/llm"
	"github.com/dmitrijs2005/estatematch/internal/logging"
	"github.com/dmitrijs2005/estatematch/internal/mailer"
	"github.com/dmitrijs2005/estatematch/internal/report"
	"github.com/dmitrijs2005/estatematch/internal/server/config"
	"github.com/dmitrijs2005/estatematch/internal/server/httpapi"
	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/dmitrijs2005/estatematch/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/estatematch/internal/server/services"
	"github.com/jmoiron/sqlx"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.Server
}

// openDB is a seam for tests.
var openDB = func(dsn string) (*sql.DB, error) {
	return sql.Open("pgx", dsn)
}

// newModel is a seam for tests.
var newModel = llm.New

func modelOptions(c *config.Config) llm.Options {
	o := llm.Options{Provider: c.ModelProvider, Model: c.ModelName, APIKey: c.GeminiAPIKey}
	if strings.EqualFold(strings.TrimSpace(c.ModelProvider), llm.ProviderOpenAI) {
		o.APIKey = c.OpenAIAPIKey
		if strings.HasPrefix(o.Model, "gemini") {
			o.Model = llm.DefaultOpenAIModel
		}
	}
	return o
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Backend: c.LogBackend, JSON: c.LogJSON, Debug: c.Debug})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	keyring, err := cryptox.NewKeyring(c.EncryptionKeys)
	if err != nil {
		return nil, fmt.Errorf("keyring init error: %w", err)
	}

	model, err := newModel(ctx, modelOptions(c), logger)
	if err != nil {
		return nil, fmt.Errorf("model client init error: %w", err)
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	sender := mailer.NewSMTP(mailer.Options{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.MailFrom,
	})

	agents := services.NewCredentialManager(models.RoleAgent, db, rm, c, keyring, sender, logger)
	clients := services.NewCredentialManager(models.RoleClient, db, rm, c, keyring, sender, logger)

	interp := interpret.New(logger)
	deps := services.MatchingDeps{
		DB:          sqlx.NewDb(db, "pgx"),
		Repomanager: rm,
		Tenants:     agents,
		Model:       model,
		Interpreter: interp,
		Renderer:    report.NewRenderer(interp),
		MaxResults:  c.MaxResults,
		Log:         logger,
	}
	if archive := services.NewReportArchive(c); archive != nil {
		deps.Archive = archive
	}
	matching := services.NewMatchingService(deps)

	router := httpapi.NewRouter(httpapi.Deps{
		Agents:         agents,
		Clients:        clients,
		Matching:       matching,
		MaxResults:     c.MaxResults,
		Production:     c.Production,
		AllowedOrigins: c.AllowedOrigins,
		Log:            logger,
	})

	return &App{
		config: c,
		logger: logger,
		db:     db,
		server: httpapi.NewServer(c.HTTPAddr, router, logger),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a termination signal arrives or ctx is canceled.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	err := app.server.Run(ctx)
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Warn(ctx, "db close error", "error", cerr)
	}
	if err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
		return err
	}
	app.logger.Info(ctx, "App stopped")
	return nil
}
