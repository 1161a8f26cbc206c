package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/david/contract-broker/internal/auth"
	"github.com/david/contract-broker/internal/db"
	"github.com/david/contract-broker/internal/followup"
	"github.com/david/contract-broker/internal/ingest"
	"github.com/david/contract-broker/internal/models"
	"github.com/david/contract-broker/internal/notify"
	"github.com/david/contract-broker/internal/report"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

type Store interface {
	Ping(ctx context.Context) error
	ListContracts(ctx context.Context, f db.ContractFilter) ([]models.Contract, error)
	GetContract(ctx context.Context, id int64) (*models.Contract, error)
	RecentRuns(ctx context.Context, limit int) ([]models.ScrapingRun, error)
}

type Ingester interface {
	Run(ctx context.Context, sourceIDs ...string) (map[string]ingest.SourceSummary, error)
}

type SourceSelector interface {
	Select(ids ...string) ([]ingest.SourceConfig, error)
}

type ReminderFinder interface {
	DueReminders(ctx context.Context, today time.Time) ([]followup.Reminder, error)
}

type Notifier interface {
	SendBulk(ctx context.Context, officerIDs []int64, kind models.TemplateType) (notify.BulkResult, error)
	SendOpportunityAlerts(ctx context.Context, contractID int64) (int, error)
}

type Reporter interface {
	SendWeekly(ctx context.Context) (*report.Summary, error)
}

// Deps are the collaborators behind the trigger endpoints.
type Deps struct {
	Store     Store
	Ingester  Ingester
	Sources   SourceSelector
	Reminders ReminderFinder
	Notifier  Notifier
	Reporter  Reporter
	Auth      *auth.Service
	Logger    *logrus.Logger
}

type Server struct {
	Deps
	Echo *echo.Echo

	jobTimeout time.Duration
	jobHistory int
	jobMu      sync.Mutex
	jobs       map[string]*backgroundJob
	jobOrder   []string
	ingestJob  *backgroundJob
	jobWG      sync.WaitGroup
	now        func() time.Time
}

// defaultJobHistory caps how many finished jobs stay pollable.
const defaultJobHistory = 50

type backgroundJob struct {
	ID        string             `json:"id"`
	Kind      string             `json:"kind"`
	Status    string             `json:"status"` // running, completed, failed
	StartedAt time.Time          `json:"started_at"`
	EndedAt   time.Time          `json:"ended_at,omitempty"`
	Result    any                `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	Cancel    context.CancelFunc `json:"-"`
}

func NewServer(deps Deps, corsOrigins []string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := deps.Logger.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request failed")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())

	allowed := []string{"http://localhost:3000"}
	for _, o := range corsOrigins {
		if o = strings.TrimSpace(o); o != "" {
			allowed = append(allowed, o)
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowed,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, auth.AdminSecretHeader},
	}))

	s := &Server{
		Deps:       deps,
		Echo:       e,
		jobTimeout: 30 * time.Minute,
		jobHistory: defaultJobHistory,
		jobs:       make(map[string]*backgroundJob),
		now:        func() time.Time { return time.Now().UTC() },
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)

	admin := s.Echo.Group("/api/v1")
	admin.Use(s.Auth.AdminMiddleware)
	admin.POST("/ingest/run", s.handleIngestRun)
	admin.GET("/ingest/runs", s.handleListRuns)
	admin.GET("/jobs/:id", s.handleJobStatus)
	admin.GET("/followups", s.handleFollowUps)
	admin.POST("/notifications/bulk", s.handleBulkNotify)
	admin.POST("/notifications/alerts/:contract_id", s.handleOpportunityAlerts)
	admin.POST("/reports/weekly", s.handleWeeklyReport)
	admin.GET("/contracts", s.handleListContracts)
	admin.GET("/contracts/:id", s.handleGetContract)
	admin.GET("/contracts/:id/fee", s.handleContractFee)
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

// Shutdown drains HTTP, cancels background jobs and waits for them to return
// so callers can release the store afterwards.
func (s *Server) Shutdown(ctx context.Context) error {
	s.jobMu.Lock()
	for _, j := range s.jobs {
		if j.Status == "running" && j.Cancel != nil {
			j.Cancel()
		}
	}
	s.jobMu.Unlock()

	err := s.Echo.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.jobWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, fmt.Errorf("waiting for background jobs: %w", ctx.Err()))
	}
}

var errJobRunning = errors.New("job already running")

// startIngestJob runs one ingestion cycle detached from the request. Only one
// cycle job runs at a time.
func (s *Server) startIngestJob(parent context.Context, sources []string) (*backgroundJob, error) {
	s.jobMu.Lock()
	if s.ingestJob != nil && s.ingestJob.Status == "running" {
		job := s.ingestJob
		s.jobMu.Unlock()
		return job, errJobRunning
	}

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.jobTimeout)
	job := &backgroundJob{
		ID:        uuid.New().String()[:8],
		Kind:      "ingest",
		Status:    "running",
		StartedAt: s.now(),
		Cancel:    cancel,
	}
	s.jobs[job.ID] = job
	s.jobOrder = append(s.jobOrder, job.ID)
	s.ingestJob = job
	s.jobWG.Add(1)
	s.jobMu.Unlock()

	go func() {
		defer s.jobWG.Done()
		defer cancel()
		results, err := s.Ingester.Run(jobCtx, sources...)

		s.jobMu.Lock()
		defer s.jobMu.Unlock()
		defer s.pruneJobsLocked()
		job.EndedAt = s.now()
		job.Result = results
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			s.Logger.WithError(err).WithField("job", job.ID).Error("ingest job failed")
			return
		}
		job.Status = "completed"
		s.Logger.WithField("job", job.ID).Info("ingest job completed")
	}()
	return job, nil
}

// pruneJobsLocked evicts the oldest finished jobs beyond the history cap.
// Running jobs are never evicted. Callers hold jobMu.
func (s *Server) pruneJobsLocked() {
	finished := 0
	for _, id := range s.jobOrder {
		if s.jobs[id].Status != "running" {
			finished++
		}
	}
	kept := s.jobOrder[:0]
	for _, id := range s.jobOrder {
		if finished > s.jobHistory && s.jobs[id].Status != "running" {
			delete(s.jobs, id)
			finished--
			continue
		}
		kept = append(kept, id)
	}
	s.jobOrder = kept
}

func (s *Server) snapshotJob(id string) (backgroundJob, bool) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return backgroundJob{}, false
	}
	return *j, true
}

func jobPollPath(id string) string {
	return fmt.Sprintf("/api/v1/jobs/%s", id)
}
