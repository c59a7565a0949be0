package csvstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"oyken/internal/core"
	"oyken/internal/storage"
	"oyken/internal/storage/storagetest"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository { return open(t) })
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestReadsLegacyFiles(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	writeFile(t, s.dir, "ventas.csv",
		"fecha,ventas_manana_eur,ventas_tarde_eur,ventas_noche_eur,ventas_total_eur\n"+
			"2024-03-15,20.5,0,59.5,80.0\n")
	writeFile(t, s.dir, "compras.csv",
		"Fecha,Proveedor,Familia,Coste (€)\n"+
			"2024-03-02,Makro,Bebidas,45.99\n")
	writeFile(t, s.dir, "rrhh_puestos.csv",
		"Año,Puesto,Bruto anual (€),Rol_RRHH,Enero,Febrero,Marzo,Abril,Mayo,Junio,Julio,Agosto,Septiembre,Octubre,Noviembre,Diciembre\n"+
			"2024,Cocinero,24000.0,Estructural mínimo,1,1,2.0,1,1,1,1,1,1,1,1,1\n")
	writeFile(t, s.dir, "inventario.csv",
		"Mes,Año,Inventario (€),Fecha registro\n"+
			"Marzo,2024,5200.0,2024-03-31 21:10:00.123456\n")
	writeFile(t, s.dir, "ventas_mensuales.csv",
		"anio,mes,ventas_total_eur,fecha_actualizacion\n"+
			"2024,3,80.0,2024-04-01\n")

	sales, err := s.GetSales(ctx, core.NewDate(2024, 3, 15))
	require.NoError(t, err)
	assert.Equal(t, int64(8000), sales.Total().Cents)
	assert.Zero(t, sales.TotalTickets())

	purchases, err := s.ListPurchases(ctx, core.Period{Year: 2024, Month: 3})
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, "Makro", purchases[0].Supplier)
	assert.Equal(t, int64(4599), purchases[0].Cost.Cents)

	positions, err := s.ListPositions(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, core.StaffMinimum, positions[0].Role)
	assert.Equal(t, 2, positions[0].Headcount[2])

	inv, err := s.GetInventory(ctx, 2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(520000), inv.Value.Cents)
	assert.Equal(t, 21, inv.RecordedAt.Hour())

	monthly, err := s.ListMonthly(ctx, core.KindSales, 2024)
	require.NoError(t, err)
	require.Len(t, monthly, 1)
	assert.Equal(t, int64(8000), monthly[0].Amount.Cents)
}

func TestReadsDayFirstRecordedDates(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	writeFile(t, s.dir, "inventario.csv",
		"Mes,Año,Inventario (€),Fecha registro\n"+
			"Enero,2025,3100.0,31/01/2025\n"+
			"Febrero,2025,2900.0,28/02/2025 22:05:00\n")

	inv, err := s.GetInventory(ctx, 2025, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), inv.RecordedAt)

	inv, err = s.GetInventory(ctx, 2025, 2)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 2, 28, 22, 5, 0, 0, time.UTC), inv.RecordedAt)
}

func TestMigrateRewritesLegacyTables(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	writeFile(t, s.dir, "gastos.csv",
		"Fecha,Concepto,Categoria,Tipo_Gasto,Rol_Gasto,Coste (€)\n"+
			"2024-01-05,Alquiler,Alquiler,Fijo,Estructural,1500\n")

	migrated, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"gastos.csv"}, migrated)

	data, err := os.ReadFile(filepath.Join(s.dir, "gastos.csv"))
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	assert.Equal(t, "# schema: v2", lines[0])
	assert.Equal(t, "id,fecha,concepto,categoria,tipo_gasto,rol_gasto,coste_eur", lines[1])

	expenses, err := s.ListExpenses(ctx, core.Period{Year: 2024})
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.NotEmpty(t, expenses[0].ID)
	assert.Equal(t, core.Fixed, expenses[0].Type)
	assert.Equal(t, int64(150000), expenses[0].Cost.Cents)

	again, err := s.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestRejectsNewerSchema(t *testing.T) {
	s := open(t)
	writeFile(t, s.dir, "ventas.csv", "# schema: v9\nfecha\n2024-01-01\n")
	_, err := s.ListSales(context.Background(), storage.All)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestWritesLeaveNoTempFiles(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	require.NoError(t, s.UpsertMonthly(ctx, core.MonthlyTotal{Kind: core.KindPayroll, Year: 2025, Month: 1, Amount: core.Euros(10)}))

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rrhh_mensual.csv", entries[0].Name())
}

func TestConcurrentUpserts(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	var g errgroup.Group
	for day := 1; day <= 28; day++ {
		day := day
		g.Go(func() error {
			rec := core.NewDailySales(core.NewDate(2025, 2, day))
			rec.Sales[core.Morning] = core.Euros(int64(day))
			return s.UpsertSales(ctx, rec)
		})
	}
	require.NoError(t, g.Wait())

	list, err := s.ListSales(ctx, storage.All)
	require.NoError(t, err)
	assert.Len(t, list, 28)
}
