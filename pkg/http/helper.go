package http

import (
	"net/http"
	"time"

	apperrors "courtside/pkg/errors"
)

// ExtractTimeWindow parses the required from/to RFC3339 query parameters
// that bound a court listing.
func ExtractTimeWindow(r *http.Request) (time.Time, time.Time, error) {
	query := r.URL.Query()

	fromStr := query.Get("from")
	toStr := query.Get("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("both 'from' and 'to' query parameters are required")
	}

	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("invalid 'from' format, must be RFC3339")
	}

	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("invalid 'to' format, must be RFC3339")
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, apperrors.InvalidInput("'to' must be after 'from'")
	}

	return from, to, nil
}
