package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"oyken/internal/core"
	"oyken/internal/log"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks the repository and reports cache and security counters.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]any{}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["storage"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			code = http.StatusServiceUnavailable
		} else {
			checks["storage"] = "ok"
		}
	}
	stats := s.reports.Stats()
	checks["report_cache"] = map[string]any{"size": stats.Size, "hits": stats.Hits, "misses": stats.Misses}
	sec := s.detector.GetMetrics()
	checks["security"] = map[string]any{
		"suspicious_requests": sec.SuspiciousRequests,
		"rate_limited":        s.limiter.Rejected(),
		"tracked_clients":     s.limiter.ActiveClients(),
	}

	NewJSONResponse().Status(code).Body(map[string]any{"status": status, "checks": checks}).Write(w)
}

func (s *Server) parseBodyDate(v string) (core.Date, error) {
	if v == "" {
		return core.DateOf(s.now()), nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, badRequest("date: %v", err)
	}
	return d, nil
}

func (s *Server) handleRecordSales(w http.ResponseWriter, r *http.Request) {
	var req salesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	date, err := s.parseBodyDate(req.Date)
	if err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}

	day := core.NewDailySales(date)
	day.Notes = sanitizeInput(req.Notes)
	for sh, f := range req.Shifts {
		if !knownShift(sh) {
			writeError(w, r, log.OpRecord, badRequest("unknown shift %q", sh))
			return
		}
		day.Sales[sh] = f.Sales.Money()
		day.Covers[sh] = f.Covers
		day.Tickets[sh] = f.Tickets
	}

	if err := s.ledger.RecordSales(r.Context(), day); err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	s.invalidateReports()
	NewJSONResponse().Status(http.StatusCreated).Body(newSalesView(day)).Write(w)
}

func knownShift(sh core.Shift) bool {
	for _, k := range core.Shifts {
		if k == sh {
			return true
		}
	}
	return false
}

func (s *Server) handleListSales(w http.ResponseWriter, r *http.Request) {
	p, err := parseMonth(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	days, err := s.ledger.Sales(r.Context(), p)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}

	views := make([]salesView, 0, len(days))
	var total core.Money
	for _, d := range days {
		views = append(views, newSalesView(d))
		total = total.Add(d.Total())
	}
	NewJSONResponse().Body(map[string]any{
		"year":  p.Year,
		"month": p.Month,
		"days":  views,
		"total": euros(total),
	}).Write(w)
}

func (s *Server) handleRecordPurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	date, err := s.parseBodyDate(req.Date)
	if err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}

	saved, err := s.ledger.RecordPurchase(r.Context(), core.Purchase{
		Date:     date,
		Supplier: sanitizeInput(req.Supplier),
		Family:   sanitizeInput(req.Family),
		Cost:     req.Cost.Money(),
	})
	if err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	s.invalidateReports()
	NewJSONResponse().Status(http.StatusCreated).Body(newPurchaseView(saved)).Write(w)
}

func (s *Server) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	list, err := s.ledger.Suppliers(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	if list == nil {
		list = []string{}
	}
	NewJSONResponse().Body(map[string]any{"suppliers": list}).Write(w)
}

func (s *Server) handleRecordExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	date, err := s.parseBodyDate(req.Date)
	if err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}

	saved, err := s.ledger.RecordExpense(r.Context(), core.Expense{
		Date:     date,
		Concept:  sanitizeInput(req.Concept),
		Category: sanitizeInput(req.Category),
		Type:     req.Type,
		Role:     req.Role,
		Cost:     req.Cost.Money(),
	})
	if err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	s.invalidateReports()
	NewJSONResponse().Status(http.StatusCreated).Body(newExpenseView(saved)).Write(w)
}

func (s *Server) handleSavePosition(w http.ResponseWriter, r *http.Request) {
	var req positionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	if req.Year == 0 {
		req.Year = s.now().Year()
	}

	saved, err := s.ledger.SavePosition(r.Context(), core.Position{
		ID:          sanitizeInput(req.ID),
		Year:        req.Year,
		Title:       sanitizeInput(req.Title),
		AnnualGross: req.AnnualGross.Money(),
		Role:        req.Role,
		Headcount:   req.Headcount,
	})
	if err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	s.invalidateReports()
	NewJSONResponse().Status(http.StatusCreated).Body(newPositionView(saved)).Write(w)
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	year, err := intParam(r.URL.Query(), "year", s.now().Year())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	list, err := s.ledger.Positions(r.Context(), year)
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	views := make([]positionView, 0, len(list))
	for _, p := range list {
		views = append(views, newPositionView(p))
	}
	NewJSONResponse().Body(map[string]any{"year": year, "positions": views}).Write(w)
}

func (s *Server) handleRecordInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}

	snap := core.InventorySnapshot{Year: req.Year, Month: req.Month, Value: req.Value.Money()}
	if err := s.ledger.RecordInventory(r.Context(), snap); err != nil {
		writeError(w, r, log.OpRecord, err)
		return
	}
	s.invalidateReports()
	NewJSONResponse().Status(http.StatusCreated).Body(map[string]any{
		"year":  snap.Year,
		"month": snap.Month,
		"value": euros(snap.Value),
	}).Write(w)
}

// handleClose recomputes the rollups of one month, or of the whole year
// when month is 0.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, _ := strconv.Atoi(vars["year"])
	month, _ := strconv.Atoi(vars["month"])

	totals, err := s.ledger.CloseMonth(r.Context(), core.Period{Year: year, Month: month})
	if err != nil {
		writeError(w, r, log.OpClose, err)
		return
	}
	s.invalidateReports()

	views := make([]monthlyView, 0, len(totals))
	for _, t := range totals {
		views = append(views, monthlyView{Kind: t.Kind, Year: t.Year, Month: t.Month, Amount: euros(t.Amount)})
	}
	NewJSONResponse().Body(map[string]any{"year": year, "month": month, "totals": views}).Write(w)
}
