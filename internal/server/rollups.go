package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/echodiary/echodiary/internal/diary"
	"github.com/echodiary/echodiary/internal/rollup"
)

type rollupReq struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`  // daily: YYYY-MM-DD
	Month  string `json:"month"` // monthly: YYYY-MM
}

// handleDailyRollup triggers a daily rollup on demand, for one user or for
// everyone. Without a date it targets the most recently completed day, same
// as the scheduled run.
func (s *Server) handleDailyRollup(w http.ResponseWriter, r *http.Request) {
	var req rollupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	day := time.Now().In(s.Location).AddDate(0, 0, -1)
	if d := strings.TrimSpace(req.Date); d != "" {
		parsed, err := time.ParseInLocation(diary.DateLayout, d, s.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date (expected YYYY-MM-DD)")
			return
		}
		day = parsed
	}

	if userID := strings.TrimSpace(req.UserID); userID != "" {
		if err := s.Rollups.RunDaily(r.Context(), userID, day); err != nil {
			log.Printf("[SERVER] Daily rollup failed for user=%s: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "rollup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "date": day.Format(diary.DateLayout)})
		return
	}

	report := s.Rollups.RunDailyAll(r.Context(), day)
	writeReport(w, report, "date", day.Format(diary.DateLayout))
}

// handleMonthlyRollup is the monthly counterpart; without a month it targets
// the previous month.
func (s *Server) handleMonthlyRollup(w http.ResponseWriter, r *http.Request) {
	var req rollupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	month := time.Now().In(s.Location).AddDate(0, -1, 0)
	if m := strings.TrimSpace(req.Month); m != "" {
		parsed, err := time.ParseInLocation(diary.MonthLayout, m, s.Location)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid month (expected YYYY-MM)")
			return
		}
		month = parsed
	}

	if userID := strings.TrimSpace(req.UserID); userID != "" {
		if err := s.Rollups.RunMonthly(r.Context(), userID, month); err != nil {
			log.Printf("[SERVER] Monthly rollup failed for user=%s: %v", userID, err)
			writeError(w, http.StatusInternalServerError, "rollup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "month": month.Format(diary.MonthLayout)})
		return
	}

	report := s.Rollups.RunMonthlyAll(r.Context(), month)
	writeReport(w, report, "month", month.Format(diary.MonthLayout))
}

func writeReport(w http.ResponseWriter, report rollup.Report, periodKey, period string) {
	errs := make(map[string]string, len(report.Errors))
	for user, err := range report.Errors {
		errs[user] = err.Error()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		periodKey:   period,
		"processed": report.Processed,
		"skipped":   report.Skipped,
		"errors":    errs,
	})
}
