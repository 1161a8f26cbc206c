// Package app wires configuration, storage and the domain services together
// for the server and the operator CLI.
package app

import (
	"context"
	"fmt"

	"github.com/david/contract-broker/internal/auth"
	"github.com/david/contract-broker/internal/config"
	"github.com/david/contract-broker/internal/db"
	"github.com/david/contract-broker/internal/followup"
	"github.com/david/contract-broker/internal/ingest"
	"github.com/david/contract-broker/internal/notify"
	"github.com/david/contract-broker/internal/report"
	"github.com/david/contract-broker/internal/scheduler"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

type App struct {
	Config      *config.Config
	Logger      *logrus.Logger
	Pool        *pgxpool.Pool
	Store       *db.Store
	Registry    *ingest.Registry
	Coordinator *ingest.Coordinator
	Reminders   *followup.Scheduler
	Dispatcher  *notify.Dispatcher
	Reporter    *report.Reporter
	Auth        *auth.Service
	Jobs        *scheduler.Jobs
}

// New connects to Postgres, applies migrations and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*App, error) {
	registry, err := ingest.LoadRegistry(cfg.Ingest.SourcesFile)
	if err != nil {
		return nil, err
	}
	defaults, err := notify.LoadDefaults()
	if err != nil {
		return nil, err
	}
	authSvc, err := auth.NewService(cfg.Admin.Secret, cfg.Admin.JWTSecret, cfg.Admin.TokenTTL, logger)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.ApplyMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	store := db.NewStore(pool)

	browser := &ingest.ChromeLauncher{
		ExecPath:      cfg.Browser.ExecPath,
		Headless:      cfg.Browser.Headless,
		RenderTimeout: cfg.Browser.RenderTimeout,
		Logger:        logger,
	}
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		Timeout:  cfg.SMTP.Timeout,
	}, logger)

	a := &App{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Store:       store,
		Registry:    registry,
		Coordinator: ingest.NewCoordinator(store, store, registry, browser, logger),
		Reminders:   followup.NewScheduler(store, logger),
		Dispatcher: notify.NewDispatcher(store, mailer, defaults, notify.Sender{
			CompanyName: cfg.Sender.CompanyName,
			Name:        cfg.Sender.Name,
			Email:       cfg.Sender.Email,
			Phone:       cfg.Sender.Phone,
		}, logger),
		Reporter: report.NewReporter(store, mailer, cfg.Admin.Email, cfg.Sender.CompanyName, logger),
		Auth:     authSvc,
	}
	a.Jobs = &scheduler.Jobs{
		Ingester:     a.Coordinator,
		Reminders:    a.Reminders,
		Officers:     store,
		FollowUps:    a.Dispatcher,
		Reports:      a.Reporter,
		AutoFollowUp: cfg.Scheduler.AutoFollowUp,
		Logger:       logger,
	}
	return a, nil
}

// Runner registers the scheduled jobs. Cron specs are left empty when the
// scheduler is disabled so jobs stay runnable on demand.
func (a *App) Runner() (*scheduler.Runner, error) {
	r := scheduler.NewRunner(a.Logger)
	sc := a.Config.Scheduler
	ingestSpec, reminderSpec, reportSpec := sc.IngestCron, sc.ReminderCron, sc.ReportCron
	if !sc.Enabled {
		ingestSpec, reminderSpec, reportSpec = "", "", ""
	}
	if err := a.Jobs.Register(r, ingestSpec, reminderSpec, reportSpec); err != nil {
		return nil, err
	}
	return r, nil
}

func (a *App) Close() {
	a.Pool.Close()
}
