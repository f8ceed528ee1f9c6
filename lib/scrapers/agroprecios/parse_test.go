package agroprecios

import (
	"context"
	"testing"
	"time"

	"agroprecios-harvester/lib/telemetry"
	"agroprecios-harvester/lib/timezone"

	"github.com/stretchr/testify/require"
)

const fullPageFixture = `
<html><body>
<table class="tab_pre_sub">
	<tr>
		<td class="titNombreizq"> Subasta  Centro </td>
		<td class="titNombreder">Precios del 25-02-2026</td>
	</tr>
</table>
<table class="tab_pre_pro">
	<tr class="familias_subasta"><td class="fam1" colspan="4">Porcino</td></tr>
	<tr onclick="window.location = '/precios-producto.php?pro=12'">
		<td class="pro">Lechón 20kg</td>
		<td class="txt">1500</td>
		<td class="txt">-</td>
		<td class="txt">1600</td>
	</tr>
	<tr class="familias_subasta"><td class="fam2" colspan="4">Bovino</td></tr>
	<tr>
		<td class="pro">Ternero pastero</td>
		<td class="txt">720 €</td>
		<td class="txt"></td>
	</tr>
</table>
</body></html>`

func requestedDay(t *testing.T) time.Time {
	t.Helper()
	day, err := timezone.ParseQueryDate("25/02/2026")
	require.NoError(t, err)
	return day
}

func TestParseFullPage(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	page, err := Parse(context.Background(), []byte(fullPageFixture), 3, requestedDay(t))
	require.NoError(t, err)

	require.Equal(t, "Subasta Centro", page.AuctionName)
	require.Equal(t, "2026-02-25", timezone.FormatISODate(page.Date))

	require.Len(t, page.Rows, 2)

	lechon := page.Rows[0]
	require.Equal(t, "Porcino", lechon.Family)
	require.Equal(t, "Lechón 20kg", lechon.Name)
	require.Equal(t, "/precios-producto.php?pro=12", lechon.Url)
	require.Equal(t, []CutPrice{{Cut: 1, Price: 1500}, {Cut: 3, Price: 1600}}, lechon.Cuts)

	ternero := page.Rows[1]
	require.Equal(t, "Bovino", ternero.Family)
	require.Equal(t, "Ternero pastero", ternero.Name)
	require.Equal(t, "", ternero.Url)
	require.Equal(t, []CutPrice{{Cut: 1, Price: 720}}, ternero.Cuts)
}

func TestParseNoData(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	raw := []byte(`<html><body><p>Error: no existe subasta para la fecha indicada</p></body></html>`)
	_, err := Parse(context.Background(), raw, 7, requestedDay(t))
	require.ErrorIs(t, err, ErrNoData)
}

func TestParseProductBeforeFamily(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	raw := []byte(`
<html><body>
<table class="tab_pre_pro">
	<tr><td class="pro">Huérfano</td><td class="txt">100</td></tr>
</table>
</body></html>`)
	_, err := Parse(context.Background(), raw, 1, requestedDay(t))
	require.ErrorIs(t, err, ErrMalformedPage)
}

func TestParseTableWithoutProducts(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	raw := []byte(`
<html><body>
<table class="tab_pre_sub">
	<tr><td class="titNombreizq">Subasta Norte</td></tr>
</table>
<table class="tab_pre_pro">
	<tr class="familias_subasta"><td class="fam1">Ovino</td></tr>
</table>
</body></html>`)
	page, err := Parse(context.Background(), raw, 5, requestedDay(t))
	require.NoError(t, err)
	require.Equal(t, "Subasta Norte", page.AuctionName)
	require.Len(t, page.Rows, 0)
}

func TestParseFallbacks(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	// neither a name cell nor a displayed date anywhere
	raw := []byte(`
<html><body>
<table class="tab_pre_pro">
	<tr class="familias_subasta"><td class="fam1">Porcino</td></tr>
	<tr><td class="pro">Cochinillo</td><td class="txt">900</td></tr>
</table>
</body></html>`)
	day := requestedDay(t)
	page, err := Parse(context.Background(), raw, 9, day)
	require.NoError(t, err)
	require.Equal(t, "Subasta 9", page.AuctionName)
	require.Equal(t, timezone.FormatISODate(day), timezone.FormatISODate(page.Date))
}

func TestParseSkipsUnreadableCells(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:agroprecios")
	defer cleanup()

	raw := []byte(`
<html><body>
<table class="tab_pre_pro">
	<tr class="familias_subasta"><td class="fam1">Porcino</td></tr>
	<tr>
		<td class="pro">Lechón 23kg</td>
		<td class="txt">n/d</td>
		<td class="txt">1700</td>
	</tr>
</table>
</body></html>`)
	page, err := Parse(context.Background(), raw, 2, requestedDay(t))
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	require.Equal(t, []CutPrice{{Cut: 2, Price: 1700}}, page.Rows[0].Cuts)
}
