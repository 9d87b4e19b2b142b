package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"housekeeper/internal/database"
	"housekeeper/internal/models"
	"housekeeper/internal/pms"
	"housekeeper/internal/price"
	"housekeeper/internal/syncer"

	"github.com/shopspring/decimal"
)

type syncRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type syncResponse struct {
	Success   bool                   `json:"success"`
	Message   string                 `json:"message"`
	RunID     string                 `json:"runId"`
	Stats     *models.SyncRunSummary `json:"stats"`
	Timestamp time.Time              `json:"timestamp"`
}

// handleSync triggers an ad-hoc run, optionally over an explicit window.
func (s *HTTPServer) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	var start, end time.Time
	var err error
	if body.StartDate != "" {
		if start, err = time.Parse(models.DateFormat, body.StartDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid startDate; expected YYYY-MM-DD")
			return
		}
	}
	if body.EndDate != "" {
		if end, err = time.Parse(models.DateFormat, body.EndDate); err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate; expected YYYY-MM-DD")
			return
		}
	}

	s.runSync(w, r, start, end)
}

// handleScheduledSync is the cron entry point, guarded by a shared secret
// instead of a client API key.
func (s *HTTPServer) handleScheduledSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	secret := s.cfg.Sync.SchedulerSecret
	if secret == "" {
		writeError(w, http.StatusForbidden, "scheduled sync is not configured")
		return
	}

	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		writeError(w, http.StatusUnauthorized, "invalid scheduler token")
		return
	}

	s.runSync(w, r, time.Time{}, time.Time{})
}

func (s *HTTPServer) runSync(w http.ResponseWriter, r *http.Request, start, end time.Time) {
	summary, runID, err := s.syncer.Run(r.Context(), start, end)
	if errors.Is(err, syncer.ErrStoreUnavailable) {
		// Fatal: no partial stats exist. Details stay server-side.
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"success":   false,
			"error":     "sync failed",
			"details":   "persistence store unreachable",
			"timestamp": time.Now().UTC(),
		})
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, syncResponse{
		Success:   true,
		Message:   "sync completed",
		RunID:     runID,
		Stats:     summary,
		Timestamp: time.Now().UTC(),
	})
}

type priceRequest struct {
	RoomID     int64  `json:"roomId"`
	PropertyID int64  `json:"propertyId"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
}

type priceData struct {
	RoomID       int64                      `json:"roomId"`
	PropertyID   int64                      `json:"propertyId"`
	RoomName     string                     `json:"roomName,omitempty"`
	CheckIn      string                     `json:"checkIn"`
	CheckOut     string                     `json:"checkOut"`
	Nights       int                        `json:"nights"`
	Breakdown    map[string]decimal.Decimal `json:"priceBreakdown"`
	TotalAmount  decimal.Decimal            `json:"totalAmount"`
	Currency     string                     `json:"currency"`
	CalculatedAt time.Time                  `json:"calculatedAt"`
}

type priceResponse struct {
	Success bool      `json:"success"`
	Data    priceData `json:"data"`
}

func (s *HTTPServer) handlePriceCalculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var body priceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.RoomID <= 0 || body.PropertyID <= 0 {
		writeError(w, http.StatusBadRequest, "roomId and propertyId are required")
		return
	}

	start, err := time.Parse(models.DateFormat, body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startDate; expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse(models.DateFormat, body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid endDate; expected YYYY-MM-DD")
		return
	}

	// Reject out-of-policy ranges before spending an upstream call.
	if err := s.calculator.ValidateRange(start, end, time.Now()); err != nil {
		s.writePriceError(w, err)
		return
	}

	auth := models.PMSAuth{Token: s.cfg.PMS.Token, PropKey: s.cfg.PMS.PropKey}
	rates, err := s.pmsAPI.GetRates(r.Context(), auth, body.PropertyID, body.RoomID, start, end)
	if err != nil {
		switch {
		case errors.Is(err, pms.ErrUpstreamUnavailable):
			writeError(w, http.StatusServiceUnavailable, "rate source is unavailable")
		case errors.Is(err, pms.ErrUpstreamRejected):
			writeError(w, http.StatusBadGateway, "rate source rejected the request")
		default:
			writeError(w, http.StatusInternalServerError, "rate fetch failed")
		}
		return
	}

	result, err := s.calculator.Calculate(price.Request{
		RoomID:     body.RoomID,
		PropertyID: body.PropertyID,
		StartDate:  start,
		EndDate:    end,
	}, rates, time.Now())
	if err != nil {
		s.writePriceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Success: true,
		Data: priceData{
			RoomID:       result.RoomID,
			PropertyID:   result.PropertyID,
			RoomName:     result.RoomName,
			CheckIn:      result.CheckIn.Format(models.DateFormat),
			CheckOut:     result.CheckOut.Format(models.DateFormat),
			Nights:       result.Nights,
			Breakdown:    result.Breakdown,
			TotalAmount:  result.TotalAmount,
			Currency:     result.Currency,
			CalculatedAt: result.CalculatedAt,
		},
	})
}

func (s *HTTPServer) writePriceError(w http.ResponseWriter, err error) {
	var unavailable *price.DatesUnavailableError
	if errors.As(err, &unavailable) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"success":          false,
			"error":            "some dates are unavailable",
			"unavailableDates": unavailable.Dates,
		})
		return
	}

	var currency *price.InconsistentCurrencyError
	if errors.As(err, &currency) {
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"success":    false,
			"error":      "rate source returned mixed currencies",
			"currencies": currency.Currencies,
		})
		return
	}

	switch {
	case errors.Is(err, price.ErrInvalidRange),
		errors.Is(err, price.ErrStayTooLong),
		errors.Is(err, price.ErrStartInPast):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "price calculation failed")
	}
}

// handleTeams routes /api/v1/teams/{id}/test.
func (s *HTTPServer) handleTeams(w http.ResponseWriter, r *http.Request) {
	const prefix = "/api/v1/teams/"
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "test" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	teamID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid team id")
		return
	}

	team, err := s.teams.GetTeam(r.Context(), teamID)
	if errors.Is(err, database.ErrTeamNotFound) {
		writeError(w, http.StatusNotFound, "team not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "team lookup failed")
		return
	}

	attempts, ok := s.dispatcher.TestTeam(r.Context(), *team)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  ok,
		"teamId":   teamID,
		"attempts": attempts,
	})
}

func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "run listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *HTTPServer) handleTasksExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	propertyID, err := strconv.ParseInt(r.URL.Query().Get("property_id"), 10, 64)
	if err != nil || propertyID <= 0 {
		writeError(w, http.StatusBadRequest, "property_id is required")
		return
	}

	today := models.DateOnly(time.Now())
	start := today.AddDate(0, 0, -s.cfg.Sync.WindowPastDays)
	end := today.AddDate(0, 0, s.cfg.Sync.WindowFutureDays)
	if raw := r.URL.Query().Get("start"); raw != "" {
		if start, err = time.Parse(models.DateFormat, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid start; expected YYYY-MM-DD")
			return
		}
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		if end, err = time.Parse(models.DateFormat, raw); err != nil {
			writeError(w, http.StatusBadRequest, "invalid end; expected YYYY-MM-DD")
			return
		}
	}
	if !start.Before(end) {
		writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	// Build fully before writing so an export error still yields JSON.
	var buf bytes.Buffer
	if err := s.exporter.WriteSchedule(r.Context(), &buf, propertyID, start, end); err != nil {
		s.logger.Error().Err(err).Int64("property_id", propertyID).Msg("schedule export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	fileName := fmt.Sprintf("cleaning_%d_%s_to_%s.xlsx",
		propertyID, start.Format(models.DateFormat), end.Format(models.DateFormat))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
