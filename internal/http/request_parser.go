// Package http serves the ledger over a JSON API.
//
// This file holds the helpers that read query parameters and request bodies.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"oyken/internal/core"
	"oyken/internal/storage"
)

// maxBodyBytes caps request bodies; the largest record is a position.
const maxBodyBytes = 64 << 10

// errBadRequest marks malformed input: bad JSON, missing or non-numeric
// parameters. Validation failures of well-formed input map to 422 instead.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// Amount is a euro amount in JSON. It accepts a number (12.5) or a string
// with either decimal separator ("12,50").
type Amount core.Money

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	m, err := core.ParseAmount(s)
	if err != nil {
		return fmt.Errorf("amount %s: %w", s, err)
	}
	*a = Amount(m)
	return nil
}

// Money converts back to the domain type.
func (a Amount) Money() core.Money { return core.Money(a) }

// decodeJSON reads a single JSON object from the body into dst. Unknown
// fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return badRequest("body larger than %d bytes", maxErr.Limit)
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return badRequest("body must contain a single JSON object")
	}
	return nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("%s must be a number", key)
	}
	return n, nil
}

// parsePeriod reads year and month from the query. Year defaults to the
// current one; a missing month, or month=0, means the whole year.
func parsePeriod(q url.Values, now time.Time) (core.Period, error) {
	year, err := intParam(q, "year", now.Year())
	if err != nil {
		return core.Period{}, err
	}
	month, err := intParam(q, "month", 0)
	if err != nil {
		return core.Period{}, err
	}
	return core.Period{Year: year, Month: month}, nil
}

// parseMonth is parsePeriod for views that need a single month; the month
// defaults to the current one.
func parseMonth(q url.Values, now time.Time) (core.Period, error) {
	year, err := intParam(q, "year", now.Year())
	if err != nil {
		return core.Period{}, err
	}
	month, err := intParam(q, "month", int(now.Month()))
	if err != nil {
		return core.Period{}, err
	}
	if month < 1 || month > 12 {
		return core.Period{}, badRequest("month must be between 1 and 12")
	}
	return core.Period{Year: year, Month: month}, nil
}

func dateParam(q url.Values, key string, def core.Date) (core.Date, error) {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return def, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest("%s: %v", key, err)
	}
	return d, nil
}

// parseRange reads from/to dates. Both are optional.
func parseRange(q url.Values) (storage.DateRange, error) {
	from, err := dateParam(q, "from", core.Date{})
	if err != nil {
		return storage.DateRange{}, err
	}
	to, err := dateParam(q, "to", core.Date{})
	if err != nil {
		return storage.DateRange{}, err
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from.Time) {
		return storage.DateRange{}, badRequest("to must not be before from")
	}
	return storage.DateRange{From: from, To: to}, nil
}

func amountParam(q url.Values, key string) (core.Money, error) {
	m, err := core.ParseAmount(q.Get(key))
	if err != nil {
		return core.Money{}, badRequest("%s: invalid amount", key)
	}
	return m, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, then trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
