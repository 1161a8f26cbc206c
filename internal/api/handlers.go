package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/david/contract-broker/internal/db"
	"github.com/david/contract-broker/internal/models"
	"github.com/david/contract-broker/internal/notify"
	"github.com/david/contract-broker/internal/report"
	"github.com/david/contract-broker/internal/revenue"
	"github.com/labstack/echo/v4"
)

func errorJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngestRun starts a cycle over ?source=a,b (all active when empty).
// With ?wait=true it runs inline and returns the per-source summaries.
func (s *Server) handleIngestRun(c echo.Context) error {
	sources := splitCSV(c.QueryParam("source"))
	if _, err := s.Sources.Select(sources...); err != nil {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}

	if c.QueryParam("wait") == "true" {
		results, err := s.Ingester.Run(c.Request().Context(), sources...)
		resp := map[string]interface{}{"results": results}
		if err != nil {
			resp["error"] = err.Error()
			return c.JSON(http.StatusBadGateway, resp)
		}
		return c.JSON(http.StatusOK, resp)
	}

	job, err := s.startIngestJob(c.Request().Context(), sources)
	if errors.Is(err, errJobRunning) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":  "An ingestion cycle is already running",
			"job_id": job.ID,
		})
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Ingestion cycle started",
		"job_id":  job.ID,
		"poll":    jobPollPath(job.ID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	job, ok := s.snapshotJob(c.Param("id"))
	if !ok {
		return errorJSON(c, http.StatusNotFound, "job not found")
	}
	resp := map[string]interface{}{
		"id":         job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"started_at": job.StartedAt,
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleListRuns(c echo.Context) error {
	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 && l <= 200 {
		limit = l
	}
	runs, err := s.Store.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		s.Logger.WithError(err).Error("list runs")
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleFollowUps(c echo.Context) error {
	reminders, err := s.Reminders.DueReminders(c.Request().Context(), s.now())
	if err != nil {
		s.Logger.WithError(err).Error("list reminders")
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":     len(reminders),
		"reminders": reminders,
	})
}

type bulkRequest struct {
	OfficerIDs   []int64 `json:"officer_ids"`
	TemplateType string  `json:"template_type"`
}

func (s *Server) handleBulkNotify(c echo.Context) error {
	var req bulkRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request")
	}
	if len(req.OfficerIDs) == 0 {
		return errorJSON(c, http.StatusBadRequest, "officer_ids required")
	}

	res, err := s.Notifier.SendBulk(c.Request().Context(), req.OfficerIDs, models.TemplateType(req.TemplateType))
	if errors.Is(err, notify.ErrUnknownTemplateType) {
		return errorJSON(c, http.StatusBadRequest, err.Error())
	}
	if err != nil {
		s.Logger.WithError(err).Error("bulk notify")
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleOpportunityAlerts(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("contract_id"), 10, 64)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid contract id")
	}
	sent, err := s.Notifier.SendOpportunityAlerts(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return errorJSON(c, http.StatusNotFound, "contract not found")
	}
	if err != nil {
		s.Logger.WithError(err).Error("opportunity alerts")
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"contract_id": id, "alerts_sent": sent})
}

func (s *Server) handleWeeklyReport(c echo.Context) error {
	summary, err := s.Reporter.SendWeekly(c.Request().Context())
	if errors.Is(err, report.ErrNoRecipient) {
		return errorJSON(c, http.StatusConflict, err.Error())
	}
	if err != nil {
		s.Logger.WithError(err).Error("weekly report")
		return errorJSON(c, http.StatusBadGateway, "weekly report failed")
	}
	return c.JSON(http.StatusOK, summary)
}

func parseDateParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Server) handleListContracts(c echo.Context) error {
	f := db.ContractFilter{
		Query:  c.QueryParam("q"),
		Agency: c.QueryParam("agency"),
		Status: c.QueryParam("status"),
		Limit:  100,
	}
	if v, err := strconv.ParseFloat(c.QueryParam("min_value"), 64); err == nil && v > 0 {
		f.MinValue = v
	}
	if v, err := strconv.ParseFloat(c.QueryParam("max_value"), 64); err == nil && v > 0 {
		f.MaxValue = v
	}
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		f.Limit = l
	}
	if o, err := strconv.Atoi(c.QueryParam("offset")); err == nil && o >= 0 {
		f.Offset = o
	}
	var err error
	if f.DeadlineAfter, err = parseDateParam(c.QueryParam("deadline_after")); err != nil {
		return errorJSON(c, http.StatusBadRequest, "deadline_after must be YYYY-MM-DD")
	}
	if f.DeadlineBefore, err = parseDateParam(c.QueryParam("deadline_before")); err != nil {
		return errorJSON(c, http.StatusBadRequest, "deadline_before must be YYYY-MM-DD")
	}

	contracts, err := s.Store.ListContracts(c.Request().Context(), f)
	if err != nil {
		s.Logger.WithError(err).Error("list contracts")
		return errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return c.JSON(http.StatusOK, contracts)
}

func (s *Server) contractParam(c echo.Context) (*models.Contract, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return nil, errorJSON(c, http.StatusBadRequest, "invalid contract id")
	}
	contract, err := s.Store.GetContract(c.Request().Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		return nil, errorJSON(c, http.StatusNotFound, "contract not found")
	}
	if err != nil {
		s.Logger.WithError(err).Error("get contract")
		return nil, errorJSON(c, http.StatusInternalServerError, "Internal Server Error")
	}
	return contract, nil
}

func (s *Server) handleGetContract(c echo.Context) error {
	contract, err := s.contractParam(c)
	if contract == nil {
		return err
	}
	return c.JSON(http.StatusOK, contract)
}

func (s *Server) handleContractFee(c echo.Context) error {
	contract, err := s.contractParam(c)
	if contract == nil {
		return err
	}
	fee, err := revenue.Fee(contract.Value)
	if errors.Is(err, revenue.ErrNoValue) {
		return errorJSON(c, http.StatusBadRequest, "Contract value not set")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"contract_id":    contract.ID,
		"contract_value": *contract.Value,
		"fee_rate":       revenue.FeeRate,
		"brokerage_fee":  fee,
		"formatted_fee":  revenue.FormatUSD(fee),
	})
}
