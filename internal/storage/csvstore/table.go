package csvstore

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SchemaVersion is written as the first line of every file.
const SchemaVersion = 2

const markerPrefix = "# schema: v"

// row maps a current column name to its raw value.
type row map[string]string

// table describes one CSV file. Legacy files carry no marker and use the
// column names listed in aliases.
type table struct {
	file    string
	columns []string
	aliases map[string][]string
}

var monthNames = []string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var (
	salesTable = table{
		file: "ventas.csv",
		columns: []string{
			"fecha",
			"ventas_manana_eur", "ventas_tarde_eur", "ventas_noche_eur", "ventas_total_eur",
			"comensales_manana", "comensales_tarde", "comensales_noche",
			"tickets_manana", "tickets_tarde", "tickets_noche",
			"observaciones",
		},
	}
	purchasesTable = table{
		file:    "compras.csv",
		columns: []string{"id", "fecha", "proveedor", "familia", "coste_eur"},
		aliases: map[string][]string{
			"fecha":     {"Fecha"},
			"proveedor": {"Proveedor"},
			"familia":   {"Familia"},
			"coste_eur": {"Coste (€)", "importe_eur"},
		},
	}
	suppliersTable = table{
		file:    "proveedores.csv",
		columns: []string{"proveedor"},
		aliases: map[string][]string{"proveedor": {"Proveedor"}},
	}
	expensesTable = table{
		file:    "gastos.csv",
		columns: []string{"id", "fecha", "concepto", "categoria", "tipo_gasto", "rol_gasto", "coste_eur"},
		aliases: map[string][]string{
			"fecha":      {"Fecha"},
			"concepto":   {"Concepto"},
			"categoria":  {"Categoria", "Categoría"},
			"tipo_gasto": {"Tipo_Gasto", "Tipo"},
			"rol_gasto":  {"Rol_Gasto"},
			"coste_eur":  {"Coste (€)", "Importe (€)", "importe_eur"},
		},
	}
	positionsTable = table{
		file:    "rrhh_puestos.csv",
		columns: append([]string{"id", "anio", "puesto", "bruto_anual_eur", "rol_rrhh"}, monthNames...),
		aliases: positionAliases(),
	}
	inventoryTable = table{
		file:    "inventario.csv",
		columns: []string{"anio", "mes", "inventario_eur", "fecha_registro"},
		aliases: map[string][]string{
			"anio":           {"Año"},
			"mes":            {"Mes"},
			"inventario_eur": {"Inventario (€)"},
			"fecha_registro": {"Fecha registro"},
		},
	}
)

func positionAliases() map[string][]string {
	a := map[string][]string{
		"anio":            {"Año"},
		"puesto":          {"Puesto"},
		"bruto_anual_eur": {"Bruto anual (€)"},
		"rol_rrhh":        {"Rol_RRHH"},
	}
	for _, m := range monthNames {
		a[m] = []string{strings.ToUpper(m[:1]) + m[1:]}
	}
	return a
}

// monthlyTable returns the rollup file for a kind, named as the legacy files were.
func monthlyTable(file, amountColumn string) table {
	return table{
		file:    file,
		columns: []string{"anio", "mes", amountColumn, "fecha_actualizacion"},
	}
}

// readTable loads every row of t. A missing file yields no rows.
func readTable(dir string, t table) ([]row, int, error) {
	data, err := os.ReadFile(filepath.Join(dir, t.file))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, SchemaVersion, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read %s: %w", t.file, err)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	version := 1
	if bytes.HasPrefix(data, []byte(markerPrefix)) {
		line, rest, _ := bytes.Cut(data, []byte("\n"))
		v, err := strconv.Atoi(strings.TrimSpace(string(line[len(markerPrefix):])))
		if err != nil {
			return nil, 0, fmt.Errorf("%s: bad schema marker %q", t.file, line)
		}
		version, data = v, rest
	}
	if version > SchemaVersion {
		return nil, version, fmt.Errorf("%s: schema v%d is newer than supported v%d", t.file, version, SchemaVersion)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, version, fmt.Errorf("parse %s: %w", t.file, err)
	}
	if len(records) == 0 {
		return nil, version, nil
	}

	index := t.index(records[0])
	rows := make([]row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		rw := make(row, len(t.columns))
		for _, col := range t.columns {
			if i, ok := index[col]; ok && i < len(rec) {
				rw[col] = strings.TrimSpace(rec[i])
			}
		}
		rows = append(rows, rw)
	}
	return rows, version, nil
}

// index maps each current column to its position in header, matching the
// current name first and legacy aliases after, case-insensitively.
func (t table) index(header []string) map[string]int {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	out := make(map[string]int, len(t.columns))
	for _, col := range t.columns {
		for _, name := range append([]string{col}, t.aliases[col]...) {
			if i, ok := pos[strings.ToLower(name)]; ok {
				out[col] = i
				break
			}
		}
	}
	return out
}

// writeTable replaces the file atomically: rows go to a temp file in the
// same directory which is then renamed over the target.
func writeTable(dir string, t table, rows []row) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+t.file+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", t.file, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if _, err = fmt.Fprintf(bw, "%s%d\n", markerPrefix, SchemaVersion); err != nil {
		return fmt.Errorf("write %s: %w", t.file, err)
	}
	w := csv.NewWriter(bw)
	if err = w.Write(t.columns); err != nil {
		return fmt.Errorf("write %s header: %w", t.file, err)
	}
	rec := make([]string, len(t.columns))
	for _, rw := range rows {
		for i, col := range t.columns {
			rec[i] = rw[col]
		}
		if err = w.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", t.file, err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", t.file, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", t.file, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", t.file, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", t.file, err)
	}
	if err = os.Rename(tmp.Name(), filepath.Join(dir, t.file)); err != nil {
		return fmt.Errorf("replace %s: %w", t.file, err)
	}
	return nil
}
