package csvstore

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"oyken/internal/core"
)

var shiftColumns = map[core.Shift]string{
	core.Morning:   "manana",
	core.Afternoon: "tarde",
	core.Night:     "noche",
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

func formatMoney(m core.Money) string {
	return m.String()
}

// parseMoney reads plain decimals in either separator. Empty is zero.
func parseMoney(s string) (core.Money, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return core.Money{}, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return core.Money{}, fmt.Errorf("amount %q: %w", s, core.ErrInvalidAmount)
	}
	return core.MoneyFromDecimal(d), nil
}

// parseInt accepts "3" and the "3.0" that float columns leave behind.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("integer %q: %w", s, err)
	}
	return int(math.Round(f)), nil
}

// parseMonth accepts a number or a Spanish month name.
func parseMonth(s string) (int, error) {
	for i, name := range monthNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return i + 1, nil
		}
	}
	m, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if m < 1 || m > 12 {
		return 0, core.ErrInvalidMonth
	}
	return m, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTime is lenient: unknown formats read as zero time.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func encodeSales(s core.DailySales) row {
	r := row{
		"fecha":            s.Date.String(),
		"ventas_total_eur": formatMoney(s.Total()),
		"observaciones":    s.Notes,
	}
	for sh, col := range shiftColumns {
		r["ventas_"+col+"_eur"] = formatMoney(s.Sales[sh])
		r["comensales_"+col] = strconv.Itoa(s.Covers[sh])
		r["tickets_"+col] = strconv.Itoa(s.Tickets[sh])
	}
	return r
}

func decodeSales(r row) (core.DailySales, error) {
	d, err := core.ParseDate(r["fecha"])
	if err != nil {
		return core.DailySales{}, err
	}
	s := core.NewDailySales(d)
	s.Notes = r["observaciones"]
	for sh, col := range shiftColumns {
		if s.Sales[sh], err = parseMoney(r["ventas_"+col+"_eur"]); err != nil {
			return s, err
		}
		if s.Covers[sh], err = parseInt(r["comensales_"+col]); err != nil {
			return s, err
		}
		if s.Tickets[sh], err = parseInt(r["tickets_"+col]); err != nil {
			return s, err
		}
	}
	return s, nil
}

func encodePurchase(p core.Purchase) row {
	return row{
		"id":        p.ID,
		"fecha":     p.Date.String(),
		"proveedor": p.Supplier,
		"familia":   p.Family,
		"coste_eur": formatMoney(p.Cost),
	}
}

func decodePurchase(r row) (core.Purchase, error) {
	d, err := core.ParseDate(r["fecha"])
	if err != nil {
		return core.Purchase{}, err
	}
	cost, err := parseMoney(r["coste_eur"])
	if err != nil {
		return core.Purchase{}, err
	}
	return core.Purchase{ID: r["id"], Date: d, Supplier: r["proveedor"], Family: r["familia"], Cost: cost}, nil
}

func encodeExpense(e core.Expense) row {
	return row{
		"id":         e.ID,
		"fecha":      e.Date.String(),
		"concepto":   e.Concept,
		"categoria":  e.Category,
		"tipo_gasto": string(e.Type),
		"rol_gasto":  string(e.Role),
		"coste_eur":  formatMoney(e.Cost),
	}
}

func decodeExpense(r row) (core.Expense, error) {
	d, err := core.ParseDate(r["fecha"])
	if err != nil {
		return core.Expense{}, err
	}
	cost, err := parseMoney(r["coste_eur"])
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{
		ID:       r["id"],
		Date:     d,
		Concept:  r["concepto"],
		Category: r["categoria"],
		Type:     core.CostType(r["tipo_gasto"]),
		Role:     core.CostRole(r["rol_gasto"]),
		Cost:     cost,
	}, nil
}

func encodePosition(p core.Position) row {
	r := row{
		"id":              p.ID,
		"anio":            strconv.Itoa(p.Year),
		"puesto":          p.Title,
		"bruto_anual_eur": formatMoney(p.AnnualGross),
		"rol_rrhh":        string(p.Role),
	}
	for i, m := range monthNames {
		r[m] = strconv.Itoa(p.Headcount[i])
	}
	return r
}

func decodePosition(r row) (core.Position, error) {
	year, err := parseInt(r["anio"])
	if err != nil {
		return core.Position{}, err
	}
	gross, err := parseMoney(r["bruto_anual_eur"])
	if err != nil {
		return core.Position{}, err
	}
	p := core.Position{ID: r["id"], Year: year, Title: r["puesto"], AnnualGross: gross, Role: core.StaffRole(r["rol_rrhh"])}
	for i, m := range monthNames {
		if p.Headcount[i], err = parseInt(r[m]); err != nil {
			return p, err
		}
	}
	return p, nil
}

func encodeInventory(s core.InventorySnapshot) row {
	return row{
		"anio":           strconv.Itoa(s.Year),
		"mes":            strconv.Itoa(s.Month),
		"inventario_eur": formatMoney(s.Value),
		"fecha_registro": formatTime(s.RecordedAt),
	}
}

func decodeInventory(r row) (core.InventorySnapshot, error) {
	year, err := parseInt(r["anio"])
	if err != nil {
		return core.InventorySnapshot{}, err
	}
	month, err := parseMonth(r["mes"])
	if err != nil {
		return core.InventorySnapshot{}, err
	}
	value, err := parseMoney(r["inventario_eur"])
	if err != nil {
		return core.InventorySnapshot{}, err
	}
	return core.InventorySnapshot{Year: year, Month: month, Value: value, RecordedAt: parseTime(r["fecha_registro"])}, nil
}

func encodeMonthly(t core.MonthlyTotal, amountColumn string) row {
	return row{
		"anio":                strconv.Itoa(t.Year),
		"mes":                 strconv.Itoa(t.Month),
		amountColumn:          formatMoney(t.Amount),
		"fecha_actualizacion": formatTime(t.UpdatedAt),
	}
}

func decodeMonthly(r row, kind core.MonthlyKind, amountColumn string) (core.MonthlyTotal, error) {
	year, err := parseInt(r["anio"])
	if err != nil {
		return core.MonthlyTotal{}, err
	}
	month, err := parseMonth(r["mes"])
	if err != nil {
		return core.MonthlyTotal{}, err
	}
	amount, err := parseMoney(r[amountColumn])
	if err != nil {
		return core.MonthlyTotal{}, err
	}
	return core.MonthlyTotal{Kind: kind, Year: year, Month: month, Amount: amount, UpdatedAt: parseTime(r["fecha_actualizacion"])}, nil
}
