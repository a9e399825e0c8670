// Package render writes JSON bodies and maps engine errors to HTTP statuses.
package render

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/tally/internal/duplicate"
	"github.com/MrJamesThe3rd/tally/internal/group"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/importer/csvfile"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	"github.com/MrJamesThe3rd/tally/internal/matching"
)

// RetryAfter is the delay suggested to clients that hit a busy ledger.
const RetryAfter = 1

var unprocessable = []error{
	importer.ErrInvalidPolicy,
	importer.ErrUnknownFormat,
	csvfile.ErrNoHeader,
	matching.ErrInvalidRule,
	group.ErrInvalidGroup,
	group.ErrCycle,
	duplicate.ErrInvalidConfig,
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Status is the HTTP status for err.
func Status(err error) int {
	switch {
	case ledger.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case ledger.IsRetryable(err):
		return http.StatusConflict
	}

	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}

	return http.StatusInternalServerError
}

// Error writes err with its mapped status. Server errors are logged and their
// details withheld from the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := Status(err)

	switch {
	case status == http.StatusConflict:
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfter))

	case status >= http.StatusInternalServerError:
		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		}

		var inv *ledger.InvariantError
		if errors.As(err, &inv) {
			attrs = append(attrs,
				"ledger", inv.LedgerID,
				"date", inv.Key.Date.Format(ledger.DateLayout),
				"sequence", inv.Key.Sequence,
				"detail", inv.Detail,
			)
		}

		slog.Error("request failed", attrs...)
		http.Error(w, "internal error", status)

		return
	}

	http.Error(w, err.Error(), status)
}

// BadRequest reports a malformed request that never reached the engine.
func BadRequest(w http.ResponseWriter, msg string) {
	http.Error(w, msg, http.StatusBadRequest)
}

// ID parses a UUID path parameter.
func ID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		BadRequest(w, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}
