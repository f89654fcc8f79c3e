package http

import (
	"errors"
	"net/http"

	"financas/internal/core"
	applog "financas/internal/log"
	"financas/internal/middleware/trace"
	"financas/internal/records"
	"financas/internal/services"
	"financas/internal/session"
)

// writeError maps service errors onto status codes. Infrastructure errors
// are logged and answered with a generic body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *core.ValidationError
		derr *services.DerivationInconsistencyError
		serr *records.StoreError
	)
	switch {
	case errors.As(err, &derr):
		s.logger.ErrorContext(r.Context(), "Salary saved without tithe",
			applog.FieldRecordID, derr.Salary.ID,
			applog.FieldUserID, derr.Salary.UserID,
			applog.FieldError, derr.Err)
		writeJSON(w, http.StatusBadGateway, struct {
			Error  string     `json:"error"`
			Salary salaryView `json:"salary"`
		}{Error: "tithe_not_persisted", Salary: newSalaryView(derr.Salary)})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error: "validation_failed", Field: verr.Field, Message: verr.Err.Error(),
		})
	case errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: err.Error()})
	case errors.Is(err, session.ErrNoSession):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
	case errors.Is(err, records.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
	case errors.Is(err, records.ErrSalaryExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "salary_exists", Message: "salary already registered for this month"})
	case errors.Is(err, records.ErrTitheExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "tithe_exists"})
	case errors.Is(err, core.ErrTitheAlreadyPaid):
		writeJSON(w, http.StatusConflict, errorBody{Error: "tithe_already_paid"})
	default:
		component := applog.ComponentHTTP
		errType := applog.ErrorTypeInternal
		if errors.As(err, &serr) {
			component = applog.ComponentStorage
			errType = applog.ErrorTypeDatabase
		}
		fields := applog.NewFields().WithRequestID(trace.GetRequestID(r.Context()))
		fields["error_type"] = errType
		s.audit.LogError(r.Context(), "Request failed", err, component, r.Method, fields)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal_error"})
	}
}
