package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wattwise/internal/lock"
	"wattwise/internal/logger"
	"wattwise/internal/metrics"
	"wattwise/internal/models"
	"wattwise/internal/service"
	"wattwise/internal/stream"
)

// UserHeader carries the authenticated user id set by the upstream gateway.
const UserHeader = "X-User-ID"

// Server represents the HTTP server
type Server struct {
	tracker   *service.Tracker
	publisher *stream.Publisher
	log       *logger.Logger
	validate  *validator.Validate
	mux       *http.ServeMux
}

// NewServer creates a new HTTP server. A non-nil publisher queues submitted
// readings on the ingest stream instead of applying them inline.
func NewServer(tracker *service.Tracker, publisher *stream.Publisher, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		tracker:   tracker,
		publisher: publisher,
		log:       log.WithComponent("server"),
		validate:  validator.New(),
		mux:       http.NewServeMux(),
	}

	// Register routes
	s.handle("/health", s.handleHealth)
	s.handle("/appliances", s.handleAppliances)
	s.handle("/appliances/", s.handleAppliance)
	s.handle("/readings", s.handleReadings)
	s.handle("/daily-usage", s.handleDailyUsage)
	s.handle("/reports/monthly", s.handleMonthlyReport)
	s.handle("/reports/yearly", s.handleYearlySummary)
	s.handle("/predictions/bill", s.handlePredictBill)
	s.handle("/billing-cycle", s.handleBillingCycle)
	s.handle("/billing/slabs", s.handleSlabs)
	s.handle("/billing/calculate", s.handleCalculateBill)
	s.handle("/analytics/patterns", s.handlePatterns)
	s.handle("/anomalies", s.handleAnomalies)
	s.handle("/tips", s.handleTips)
	s.handle("/budget", s.handleBudget)
	s.handle("/dashboard/summary", s.handleDashboard)
	s.handle("/digest/weekly", s.handleWeeklyDigest)
	s.handle("/settings", s.handleSettings)
	s.handle("/export/csv", s.handleExportCSV)
	s.handle("/export/appliances-csv", s.handleExportAppliancesCSV)
	s.mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Handler returns the routed handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	return http.ListenAndServe(addr, s.mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handle registers fn under route and records its latency by route.
func (s *Server) handle(route string, fn http.HandlerFunc) {
	s.mux.HandleFunc(route, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		metrics.RecordHTTPRequest(route, r.Method, rec.status, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lock.ErrNotAcquired):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Errorf("Request failed: %v", err)
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

// userID returns the caller's id, answering 401 when the header is missing.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get(UserHeader))
	if id == "" {
		http.Error(w, "missing "+UserHeader+" header", http.StatusUnauthorized)
		return "", false
	}
	return id, true
}

// decode reads a JSON body into dst and checks its validate tags.
func (s *Server) decode(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &models.ValidationError{Field: "body", Message: err.Error()}
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &models.ValidationError{Field: fe.Field(), Message: fmt.Sprintf("failed %q check", fe.Tag())}
		}
		return &models.ValidationError{Message: err.Error()}
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &models.ValidationError{Field: key, Message: fmt.Sprintf("%q is not a number", raw)}
	}
	return n, nil
}

func queryDate(r *http.Request, key string) (models.Date, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return models.Date{}, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return models.Date{}, &models.ValidationError{Field: key, Message: err.Error()}
	}
	return d, nil
}

// handleHealth returns the server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().String(),
	})
}

type ReadingRequest struct {
	Date       string   `json:"date" validate:"required,datetime=2006-01-02"`
	TimeOfDay  string   `json:"time_of_day" validate:"required,oneof=morning night"`
	ReadingKWh *float64 `json:"reading_kwh" validate:"required,gte=0"`
}

func (req ReadingRequest) reading() (models.MeterReading, error) {
	d, err := models.ParseDate(req.Date)
	if err != nil {
		return models.MeterReading{}, &models.ValidationError{Field: "date", Message: err.Error()}
	}
	return models.MeterReading{Date: d, TimeOfDay: models.TimeOfDay(req.TimeOfDay), ReadingKWh: *req.ReadingKWh}, nil
}

// handleReadings lists, submits or edits meter readings
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		from, err := queryDate(r, "from")
		if err != nil {
			s.writeError(w, err)
			return
		}
		to, err := queryDate(r, "to")
		if err != nil {
			s.writeError(w, err)
			return
		}
		readings, err := s.tracker.ListReadings(r.Context(), user, from, to)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":    len(readings),
			"readings": readings,
		})

	case http.MethodPost, http.MethodPut:
		var req ReadingRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		reading, err := req.reading()
		if err != nil {
			s.writeError(w, err)
			return
		}

		if r.Method == http.MethodPost && s.publisher != nil {
			if err := s.publisher.Publish(r.Context(), user, reading, "api"); err != nil {
				s.writeError(w, err)
				return
			}
			writeJSON(w, http.StatusAccepted, map[string]interface{}{
				"status":  "queued",
				"reading": reading,
			})
			return
		}

		var day models.DailyUsage
		status := http.StatusCreated
		if r.Method == http.MethodPost {
			day, err = s.tracker.SubmitReading(r.Context(), user, reading)
		} else {
			day, err = s.tracker.EditReading(r.Context(), user, reading)
			status = http.StatusOK
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, status, map[string]interface{}{
			"reading":     reading,
			"daily_usage": day,
		})

	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDailyUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit", 30)
	if err != nil {
		s.writeError(w, err)
		return
	}
	usages, err := s.tracker.DailyUsage(r.Context(), user, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(usages),
		"data":  usages,
	})
}

type ApplianceRequest struct {
	Name             string  `json:"name" validate:"required,max=100"`
	PowerRatingWatts float64 `json:"power_rating_watts" validate:"gt=0"`
	UsageHoursPerDay float64 `json:"usage_hours_per_day" validate:"gte=0,lte=24"`
	Category         string  `json:"category" validate:"omitempty,max=50"`
}

func (s *Server) handleAppliances(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		list, err := s.tracker.ListAppliances(r.Context(), user)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":      len(list),
			"appliances": list,
		})

	case http.MethodPost:
		var req ApplianceRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		a, err := s.tracker.AddAppliance(r.Context(), user, models.Appliance{
			Name:             req.Name,
			PowerRatingWatts: req.PowerRatingWatts,
			UsageHoursPerDay: req.UsageHoursPerDay,
			Category:         req.Category,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, a)

	default:
		methodNotAllowed(w)
	}
}

// handleAppliance deletes /appliances/{id}
func (s *Server) handleAppliance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/appliances/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if err := s.tracker.DeleteAppliance(r.Context(), user, id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	month := r.URL.Query().Get("month")
	if month == "" {
		month = models.Today().MonthKey()
	}
	rep, err := s.tracker.MonthlyReport(r.Context(), user, month)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleYearlySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	year, err := queryInt(r, "year", time.Now().Year())
	if err != nil {
		s.writeError(w, err)
		return
	}
	summary, err := s.tracker.YearlySummary(r.Context(), user, year)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePredictBill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	prediction, err := s.tracker.PredictBill(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prediction)
}

type BillImportRequest struct {
	BillDate     string   `json:"bill_date" validate:"required,datetime=2006-01-02"`
	MeterReading *float64 `json:"meter_reading" validate:"required,gte=0"`
	BillAmount   *float64 `json:"bill_amount" validate:"omitempty,gte=0"`
}

// handleBillingCycle shows the current cycle or starts a new one from a bill
func (s *Server) handleBillingCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		c, state, err := s.tracker.BillingCycle(r.Context(), user)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"state": state,
			"cycle": c,
		})

	case http.MethodPost:
		var req BillImportRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		date, err := models.ParseDate(req.BillDate)
		if err != nil {
			s.writeError(w, &models.ValidationError{Field: "bill_date", Message: err.Error()})
			return
		}
		c, err := s.tracker.ImportBill(r.Context(), user, date, *req.MeterReading, req.BillAmount)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)

	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSlabs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	slabs, err := s.tracker.Slabs(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(slabs),
		"slabs": slabs,
	})
}

func (s *Server) handleCalculateBill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("units")
	units, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		s.writeError(w, &models.ValidationError{Field: "units", Message: fmt.Sprintf("%q is not a number", raw)})
		return
	}
	bill, err := s.tracker.CalculateBill(r.Context(), user, units, r.URL.Query().Get("period"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	days, err := queryInt(r, "days", 30)
	if err != nil {
		s.writeError(w, err)
		return
	}
	patterns, trend, err := s.tracker.Patterns(r.Context(), user, days)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := map[string]interface{}{
		"patterns": patterns,
		"trend":    trend,
	}
	if patterns == nil {
		resp["message"] = "Need at least 7 days of complete readings for pattern analysis"
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAnomalies returns detected anomalies
func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	days, err := queryInt(r, "days", 30)
	if err != nil {
		s.writeError(w, err)
		return
	}
	anomalies, err := s.tracker.Anomalies(r.Context(), user, days)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":     len(anomalies),
		"anomalies": anomalies,
	})
}

func (s *Server) handleTips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	tips, err := s.tracker.Tips(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tips)
}

type BudgetRequest struct {
	MonthlyKWhGoal  float64 `json:"monthly_kwh_goal" validate:"gte=0"`
	MonthlyCostGoal float64 `json:"monthly_cost_goal" validate:"gte=0"`
	AlertThreshold  float64 `json:"alert_threshold" validate:"gte=0,lte=100"`
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	var status *models.BudgetStatus
	var err error
	switch r.Method {
	case http.MethodGet:
		status, err = s.tracker.Budget(r.Context(), user)
	case http.MethodPut:
		var req BudgetRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		status, err = s.tracker.SaveBudget(r.Context(), user, models.Budget{
			MonthlyKWhGoal:  req.MonthlyKWhGoal,
			MonthlyCostGoal: req.MonthlyCostGoal,
			AlertThreshold:  req.AlertThreshold,
		})
	default:
		methodNotAllowed(w)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured": status != nil,
		"status":     status,
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	summary, err := s.tracker.Dashboard(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleWeeklyDigest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	digest, err := s.tracker.WeeklyDigest(r.Context(), user)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, digest)
}

type SettingsRequest struct {
	ElectricityRate      float64 `json:"electricity_rate" validate:"gt=0"`
	NotificationsEnabled bool    `json:"notifications_enabled"`
	WeeklyDigestEnabled  bool    `json:"weekly_digest_enabled"`
	Theme                string  `json:"theme" validate:"omitempty,oneof=dark light"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := userID(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		settings, err := s.tracker.Settings(r.Context(), user)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	case http.MethodPut:
		var req SettingsRequest
		if err := s.decode(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
		settings, err := s.tracker.UpdateSettings(r.Context(), user, models.UserSettings{
			ElectricityRate:      req.ElectricityRate,
			NotificationsEnabled: req.NotificationsEnabled,
			WeeklyDigestEnabled:  req.WeeklyDigestEnabled,
			Theme:                req.Theme,
		})
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, settings)

	default:
		methodNotAllowed(w)
	}
}

// writeCSV renders into a buffer first so a failed export still gets an error status.
func (s *Server) writeCSV(w http.ResponseWriter, filename string, render func(io.Writer) error) {
	var buf bytes.Buffer
	if err := render(&buf); err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(buf.Bytes())
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	s.writeCSV(w, "energy_data.csv", func(out io.Writer) error {
		return s.tracker.ExportCSV(r.Context(), user, out)
	})
}

func (s *Server) handleExportAppliancesCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, ok := userID(w, r)
	if !ok {
		return
	}

	s.writeCSV(w, "appliances.csv", func(out io.Writer) error {
		return s.tracker.ExportAppliancesCSV(r.Context(), user, out)
	})
}
