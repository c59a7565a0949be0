package http

import (
	"encoding/json"
	"net/http"

	"oyken/internal/core"
	"oyken/internal/log"
)

type reportFunc func(r *http.Request) (any, error)

// cached serves a report from the report cache, computing and storing it on
// a miss. Errors are never cached. Reports default their period or day to
// the current date, so the key carries it.
func (s *Server) cached(fn reportFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path + "?" + r.URL.Query().Encode() + "@" + core.DateOf(s.now()).String()
		if body, ok := s.reports.Get(key); ok {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Report cache hit", "key", key)
			NewJSONResponse().Header("X-Cache", "HIT").Raw(body).Write(w)
			return
		}

		v, err := fn(r)
		if err != nil {
			writeError(w, r, log.OpReport, err)
			return
		}
		body, err := json.Marshal(v)
		if err != nil {
			writeError(w, r, log.OpReport, err)
			return
		}
		s.reports.Set(key, body)
		NewJSONResponse().Header("X-Cache", "MISS").Raw(body).Write(w)
	}
}

// rollupCached is cached for reports built from the monthly rollups. With
// asynchronous closes they bypass the cache.
func (s *Server) rollupCached(fn reportFunc) http.HandlerFunc {
	if !s.async {
		return s.cached(fn)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r)
		if err != nil {
			writeError(w, r, log.OpReport, err)
			return
		}
		body, err := json.Marshal(v)
		if err != nil {
			writeError(w, r, log.OpReport, err)
			return
		}
		NewJSONResponse().Header("X-Cache", "BYPASS").Raw(body).Write(w)
	}
}

func (s *Server) handleIncome(r *http.Request) (any, error) {
	p, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		return nil, err
	}
	st, err := s.ledger.IncomeStatement(r.Context(), p)
	if err != nil {
		return nil, err
	}
	return newIncomeView(st), nil
}

func (s *Server) handleEBITDA(r *http.Request) (any, error) {
	p, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		return nil, err
	}
	rows, total, err := s.ledger.EBITDA(r.Context(), p)
	if err != nil {
		return nil, err
	}
	v := ebitdaView{Rows: make([]ebitdaRowView, 0, len(rows)), Total: newEBITDARowView(total)}
	for _, row := range rows {
		v.Rows = append(v.Rows, newEBITDARowView(row))
	}
	return v, nil
}

func (s *Server) handleBreakeven(r *http.Request) (any, error) {
	p, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		return nil, err
	}
	summary, err := s.ledger.Breakeven(r.Context(), p)
	if err != nil {
		return nil, err
	}
	return newBreakevenView(summary), nil
}

func (s *Server) handleBudget(r *http.Request) (any, error) {
	q := r.URL.Query()
	p, err := parsePeriod(q, s.now())
	if err != nil {
		return nil, err
	}
	sales, err := amountParam(q, "sales")
	if err != nil {
		return nil, err
	}
	ebitda, err := amountParam(q, "ebitda")
	if err != nil {
		return nil, err
	}
	b, err := s.ledger.Budget(r.Context(), p, sales, ebitda)
	if err != nil {
		return nil, err
	}
	return newBudgetView(b), nil
}

func (s *Server) handleComparables(r *http.Request) (any, error) {
	day, err := dateParam(r.URL.Query(), "date", core.DateOf(s.now()))
	if err != nil {
		return nil, err
	}
	rep, err := s.ledger.Comparables(r.Context(), day)
	if err != nil {
		return nil, err
	}
	return newComparablesView(rep), nil
}

func (s *Server) handleTrends(r *http.Request) (any, error) {
	rng, err := parseRange(r.URL.Query())
	if err != nil {
		return nil, err
	}
	t, err := s.ledger.Trends(r.Context(), rng)
	if err != nil {
		return nil, err
	}
	return newTrendsView(t), nil
}
