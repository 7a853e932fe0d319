package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"hrms-service/middleware"
	"hrms-service/services"
	"hrms-service/telemetry"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AttendanceHandler struct {
	ledger  *services.Ledger
	reports *services.Reports
	metrics *telemetry.Metrics
}

func NewAttendanceHandler(ledger *services.Ledger, reports *services.Reports) *AttendanceHandler {
	return &AttendanceHandler{ledger: ledger, reports: reports}
}

func (h *AttendanceHandler) WithMetrics(metrics *telemetry.Metrics) *AttendanceHandler {
	h.metrics = metrics
	return h
}

func (h *AttendanceHandler) CheckInHandler(w http.ResponseWriter, r *http.Request) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return notAuthenticated()
	}

	record, created, err := h.ledger.CheckIn(r.Context(), claims.UserID)
	if err != nil {
		return attendanceError(err)
	}
	h.metrics.RecordCheckIn(r.Context(), created)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, JSONResponse{
		"message":    "Checked in successfully",
		"attendance": record,
	})
	return nil
}

func (h *AttendanceHandler) CheckOutHandler(w http.ResponseWriter, r *http.Request) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return notAuthenticated()
	}

	record, err := h.ledger.CheckOut(r.Context(), claims.UserID)
	if err != nil {
		return attendanceError(err)
	}
	h.metrics.RecordCheckOut(r.Context())
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{
		"message":    "Checked out successfully",
		"attendance": record,
	})
	return nil
}

func (h *AttendanceHandler) MyAttendanceHandler(w http.ResponseWriter, r *http.Request) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return notAuthenticated()
	}
	start, end, err := dateRange(r)
	if err != nil {
		return err
	}

	records, err := h.ledger.History(r.Context(), claims.UserID, services.DateRange{Start: start, End: end})
	if err != nil {
		return internalError(err)
	}
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{"attendance": records})
	return nil
}

func (h *AttendanceHandler) TodayHandler(w http.ResponseWriter, r *http.Request) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return notAuthenticated()
	}

	status, err := h.ledger.Today(r.Context(), claims.UserID)
	if err != nil {
		return internalError(err)
	}
	middleware.WriteJSON(w, http.StatusOK, status)
	return nil
}

func (h *AttendanceHandler) ReportHandler(w http.ResponseWriter, r *http.Request) error {
	filter, err := reportFilter(r)
	if err != nil {
		return err
	}

	records, err := h.reports.Report(r.Context(), filter)
	if err != nil {
		return internalError(err)
	}
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{"attendance": records})
	return nil
}

func (h *AttendanceHandler) ExportHandler(w http.ResponseWriter, r *http.Request) error {
	filter, err := reportFilter(r)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := h.reports.Export(r.Context(), filter, &buf); err != nil {
		return internalError(err)
	}

	filename := fmt.Sprintf("attendance-report-%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, err = buf.WriteTo(w)
	return err
}

func reportFilter(r *http.Request) (services.ReportFilter, error) {
	start, end, err := dateRange(r)
	if err != nil {
		return services.ReportFilter{}, err
	}
	return services.ReportFilter{
		UserID: r.URL.Query().Get("userId"),
		Start:  start,
		End:    end,
	}, nil
}

func attendanceError(err error) error {
	switch {
	case errors.Is(err, services.ErrAlreadyCheckedIn):
		return middleware.NewAppError(http.StatusBadRequest, "Already checked in today", err)
	case errors.Is(err, services.ErrAlreadyCheckedOut):
		return middleware.NewAppError(http.StatusBadRequest, "Already checked out today", err)
	case errors.Is(err, services.ErrMustCheckInFirst):
		return middleware.NewAppError(http.StatusBadRequest, "Must check in before checking out", err)
	}
	return internalError(err)
}
