package server

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/echodiary/echodiary/internal/diary"
)

// handleDiaries serves daily entries. With a date parameter it returns that
// single day's entry; without one it returns everything the user has, daily
// and monthly alike.
func (s *Server) handleDiaries(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}

	if date := strings.TrimSpace(r.URL.Query().Get("date")); date != "" {
		if _, err := time.Parse(diary.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid date (expected YYYY-MM-DD)")
			return
		}
		entry, err := s.Diaries.DailyByDate(r.Context(), userID, date)
		if errors.Is(err, diary.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "no diary for this date"})
			return
		}
		if err != nil {
			log.Printf("[SERVER] Daily entry read failed for user=%s date=%s: %v", userID, date, err)
			writeError(w, http.StatusInternalServerError, "server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "diary": entry})
		return
	}

	daily, err := s.Diaries.ListDaily(r.Context(), userID)
	if err != nil {
		log.Printf("[SERVER] Daily list failed for user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	monthly, err := s.Diaries.ListMonthly(r.Context(), userID)
	if err != nil {
		log.Printf("[SERVER] Monthly list failed for user=%s: %v", userID, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"daily_diaries":   daily,
		"monthly_diaries": monthly,
	})
}

// handleMonthlyDiaries returns the daily entries of one month.
func (s *Server) handleMonthlyDiaries(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	month, err := monthParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.Diaries.DailyInMonth(r.Context(), userID, month)
	if err != nil {
		log.Printf("[SERVER] Month read failed for user=%s month=%s: %v", userID, month, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "month": month, "diaries": entries})
}

// handleYearlyMonthlyDiaries returns the monthly entries of one year.
func (s *Server) handleYearlyMonthlyDiaries(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id required")
		return
	}
	year := strings.TrimSpace(r.URL.Query().Get("year"))
	if _, err := time.Parse("2006", year); err != nil {
		writeError(w, http.StatusBadRequest, "invalid year (expected YYYY)")
		return
	}

	entries, err := s.Diaries.MonthlyInYear(r.Context(), userID, year)
	if err != nil {
		log.Printf("[SERVER] Year read failed for user=%s year=%s: %v", userID, year, err)
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "year": year, "diaries": entries})
}

// monthParam accepts either month=YYYY-MM or the year=YYYY&month=M pair the
// original clients send.
func monthParam(r *http.Request) (string, error) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	year := strings.TrimSpace(r.URL.Query().Get("year"))

	if year != "" && len(month) <= 2 {
		t, err := time.Parse("2006-1", year+"-"+month)
		if err != nil {
			return "", fmt.Errorf("invalid year/month")
		}
		return t.Format(diary.MonthLayout), nil
	}
	if _, err := time.Parse(diary.MonthLayout, month); err != nil {
		return "", fmt.Errorf("invalid month (expected YYYY-MM)")
	}
	return month, nil
}
