package iteration

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/tabula/internal/constants"
	tabulaerrors "github.com/mrz1836/tabula/internal/errors"
	"github.com/mrz1836/tabula/internal/workbook"
)

func loginData() *DataSet {
	return NewDataSet(
		[][]string{
			{constants.KeyIteration, "1-3"},
			{"user", "ada", "bob"},
			{"env", "qa"},
			{"", "ignored"},
		},
	)
}

func TestMerger_HousekeepingForEveryIteration(t *testing.T) {
	ds := loginData()
	mgr, err := ds.Manager()
	require.NoError(t, err)
	require.Equal(t, 3, mgr.Count())

	m := NewMerger(nil, nil, nil)
	for i := 1; i <= mgr.Count(); i++ {
		data, err := m.Merge(ds, mgr, i)
		require.NoError(t, err)

		current, _ := data.Get(constants.KeyCurrentIteration)
		assert.Equal(t, strconv.Itoa(i), current)

		first, _ := data.Get(constants.KeyIsFirstIteration)
		assert.Equal(t, strconv.FormatBool(i == 1), first)

		last, _ := data.Get(constants.KeyIsLastIteration)
		assert.Equal(t, strconv.FormatBool(i == mgr.Count()), last)

		count, _ := data.Get(constants.KeyIterationCount)
		assert.Equal(t, "3", count)

		prev, ok := data.Get(constants.KeyLastIteration)
		if i == 1 {
			assert.False(t, ok)
		} else {
			assert.Equal(t, strconv.Itoa(i-1), prev)
		}
	}
}

func TestMerger_Precedence(t *testing.T) {
	ds := loginData()
	mgr, _ := ds.Manager()
	m := NewMerger(
		map[string]string{"env": "prod", "timeout": "30", constants.KeyCurrentIteration: "99"},
		map[string]string{"user": "env-user", "home": "/h"},
		[]string{"secret.*"},
	)

	data, err := m.Merge(ds, mgr, 2)
	require.NoError(t, err)

	v, _ := data.Get("user")
	assert.Equal(t, "bob", v, "data beats env")
	v, _ = data.Get("env")
	assert.Equal(t, "qa", v, "data beats settings, missing column falls back")
	v, _ = data.Get("timeout")
	assert.Equal(t, "30", v)
	v, _ = data.Get("home")
	assert.Equal(t, "/h", v)
	v, _ = data.Get(constants.KeyCurrentIteration)
	assert.Equal(t, "2", v, "housekeeping always wins")
	assert.Equal(t, 2, data.Ref)
}

func TestMerger_FallbackDisabled(t *testing.T) {
	ds := NewDataSet([][]string{
		{constants.KeyIteration, "2"},
		{constants.KeyFallbackToPrevious, "false"},
		{"user", "ada"},
	})
	mgr, _ := ds.Manager()

	data, err := NewMerger(nil, nil, nil).Merge(ds, mgr, 1)
	require.NoError(t, err)
	v, ok := data.Get("user")
	assert.True(t, ok)
	assert.Empty(t, v)
}

func TestMerger_Exclusions(t *testing.T) {
	ds := NewDataSet([][]string{
		{constants.KeyRunID, "r1"},
		{"os.name", "linux"},
		{"secret.key", "k"},
		{"secretive", "kept"},
	})
	mgr, _ := ds.Manager()

	data, err := NewMerger(nil, nil, []string{"secret.*"}).Merge(ds, mgr, 1)
	require.NoError(t, err)

	for _, k := range []string{constants.KeyRunID, "os.name", "secret.key"} {
		_, ok := data.Get(k)
		assert.False(t, ok, k)
	}
	_, ok := data.Get("secretive")
	assert.True(t, ok)
}

func TestMerger_OutOfRange(t *testing.T) {
	ds := loginData()
	mgr, _ := ds.Manager()
	_, err := NewMerger(nil, nil, nil).Merge(ds, mgr, 4)
	require.ErrorIs(t, err, tabulaerrors.ErrIterationOutOfRange)
}

func TestData_WriteTo(t *testing.T) {
	ds := NewDataSet([][]string{{"zeta", "1"}, {"alpha", "2"}})
	mgr, _ := ds.Manager()
	data, err := NewMerger(nil, nil, nil).Merge(ds, mgr, 1)
	require.NoError(t, err)

	ws, _ := workbook.NewBook(workbook.NewMemoryBackend(), "u.yaml").AddSheet(constants.DataSheet)
	ws.AppendRow("stale")
	data.WriteTo(ws)

	rows := ws.Rows()
	assert.Equal(t, []string{"alpha", "2"}, rows[0])
	assert.Equal(t, []string{"zeta", "1"}, rows[1])
	assert.Empty(t, rows[2])
	assert.Equal(t, constants.KeyCurrentIteration, rows[3][0])
	for _, r := range rows[3:] {
		assert.Contains(t, r[0], constants.ReservedPrefix)
	}
}

func TestLoadDataSet(t *testing.T) {
	backend := workbook.NewMemoryBackend()
	backend.Put("d.yaml",
		workbook.SheetDocument{Name: constants.DefaultDataSheet, Rows: [][]string{{"env", "qa"}, {"user", "default"}}},
		workbook.SheetDocument{Name: "Login", Rows: [][]string{{"user", "ada", "bob"}}},
	)

	wb, err := workbook.NewLoader(backend).Open(t.Context(), "d.yaml")
	require.NoError(t, err)

	ds, err := LoadDataSet(wb, []string{"Login"})
	require.NoError(t, err)
	assert.Equal(t, []string{"env", "user"}, ds.Names())
	assert.Equal(t, 2, ds.Columns())
	v, _ := ds.Value("user", 2, true)
	assert.Equal(t, "bob", v)

	_, err = LoadDataSet(wb, []string{"Missing"})
	require.ErrorIs(t, err, tabulaerrors.ErrSheetNotFound)

	empty, err := LoadDataSet(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Names())
}

func TestEnvWithPrefix(t *testing.T) {
	env := EnvWithPrefix("TABULA_DATA_", []string{"TABULA_DATA_user=ada", "TABULA_DATA_=x", "PATH=/bin", "broken"})
	assert.Equal(t, map[string]string{"user": "ada"}, env)
	assert.Empty(t, EnvWithPrefix("", []string{"A=b"}))
}
