// Package handlers implements the HTTP endpoints of the ledger API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dvloznov/finance-ledger/internal/api/middleware"
	"github.com/dvloznov/finance-ledger/internal/domain"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.Invalid("body", "is required")
		}
		return domain.Invalid("body", fmt.Sprintf("is not valid JSON: %v", err))
	}
	return nil
}

// ownerID returns the authenticated caller, writing 401 when there is none.
func ownerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Not authorized, no token")
		return "", false
	}
	return id, true
}

// dateRange parses optional startDate/endDate values. A date-only endDate
// covers the whole day.
func dateRange(start, end string) (from, to *time.Time, err error) {
	if start != "" {
		t, err := domain.ParseDate(start)
		if err != nil {
			return nil, nil, domain.Invalid("startDate", "must be an ISO-8601 date")
		}
		from = &t
	}
	if end != "" {
		t, err := domain.ParseDate(end)
		if err != nil {
			return nil, nil, domain.Invalid("endDate", "must be an ISO-8601 date")
		}
		if _, dateOnly := time.Parse(domain.DateLayout, end); dateOnly == nil {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		to = &t
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, domain.Invalid("endDate", "must not be before startDate")
	}
	return from, to, nil
}

func message(text string) map[string]string {
	return map[string]string{"message": text}
}
