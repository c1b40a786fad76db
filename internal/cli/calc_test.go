package cli

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calcsync/internal/engine"
	"github.com/roach88/calcsync/internal/remote/httpapi"
	"github.com/roach88/calcsync/internal/store"
)

// runCalcJSON runs calc with JSON output and decodes the result.
func runCalcJSON(t *testing.T, opts *RootOptions, args ...string) (CalcResult, error) {
	t.Helper()
	jsonOpts := *opts
	jsonOpts.Format = "json"
	out, err := execute(t, NewCalcCommand(&jsonOpts), args...)
	var result CalcResult
	if err == nil {
		resp := decodeResponse(t, out, &result)
		assert.Equal(t, "ok", resp.Status)
	}
	return result, err
}

func fieldValue(s engine.Snapshot, label string) string {
	for _, f := range s.Fields {
		if f.Label == label {
			return f.Value
		}
	}
	return ""
}

func floatValue(t *testing.T, s engine.Snapshot, label string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(fieldValue(s, label), 64)
	require.NoError(t, err, "field %s", label)
	return v
}

func TestCalcCreatesItem(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	result, err := runCalcJSON(t, opts, "car",
		"--set", "fuel=diesel", "--set", "size=large", "--set", "distance=10", "--name", "commute")
	require.NoError(t, err)

	snap := result.Calculation
	assert.True(t, result.Satisfied)
	assert.Equal(t, "clean_bound", snap.State)
	assert.NotEmpty(t, snap.ItemID)
	assert.NotEmpty(t, snap.ContainerID)
	assert.InDelta(t, 2.0, floatValue(t, snap, "co2"), 1e-9)
}

func TestCalcContinuesSavedItem(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	first, err := runCalcJSON(t, opts, "car",
		"--set", "fuel=diesel", "--set", "size=small", "--set", "distance=10")
	require.NoError(t, err)
	snap := first.Calculation

	second, err := runCalcJSON(t, opts, "car",
		"--container", snap.ContainerID, "--item", snap.ItemID, "--set", "distance=20")
	require.NoError(t, err)

	assert.Equal(t, snap.ItemID, second.Calculation.ItemID)
	assert.Equal(t, "diesel", fieldValue(second.Calculation, "fuel"))
	assert.Equal(t, "small", fieldValue(second.Calculation, "size"))
	assert.InDelta(t, 3.0, floatValue(t, second.Calculation, "co2"), 1e-9)
}

func TestCalcReportsInvalidValues(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	result, err := runCalcJSON(t, opts, "car", "--set", "fuel=electric", "--set", "distance=10")
	require.NoError(t, err)

	assert.False(t, result.Satisfied)
	assert.Contains(t, result.Invalid["fuel"], "not an available choice")
	assert.Equal(t, "", fieldValue(result.Calculation, "fuel"))
	assert.Equal(t, "clean_unbound", result.Calculation.State)
	assert.Empty(t, result.Calculation.ItemID)
}

func TestCalcValidateOnly(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	result, err := runCalcJSON(t, opts, "car", "--set", "fuel=petrol", "--validate-only", "--where", "drill")
	require.NoError(t, err)

	assert.Equal(t, "validated", result.Calculation.State)
	assert.Empty(t, result.Calculation.ItemID)
	require.Len(t, result.Calculation.Fields, 2)
	assert.Equal(t, "small", fieldValue(result.Calculation, "size"))
}

func TestCalcDelete(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	created, err := runCalcJSON(t, opts, "car",
		"--set", "fuel=diesel", "--set", "size=large", "--set", "distance=1")
	require.NoError(t, err)
	snap := created.Calculation

	deleted, err := runCalcJSON(t, opts, "car", "--container", snap.ContainerID, "--item", snap.ItemID, "--delete")
	require.NoError(t, err)
	assert.Empty(t, deleted.Calculation.ItemID)

	st, err := store.Open(opts.Config.DB)
	require.NoError(t, err)
	defer st.Close()
	refs, err := st.ListItems(t.Context(), snap.ContainerID)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestCalcTextOutput(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	out, err := execute(t, NewCalcCommand(opts), "car",
		"--set", "fuel=diesel", "--set", "size=large", "--set", "distance=10", "--set", "colour=red")
	require.NoError(t, err)

	assert.Contains(t, out, "car [clean_bound]")
	assert.Contains(t, out, "2 kg")
	assert.Contains(t, out, "✓ Satisfied")
}

func TestCalcErrors(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	tests := []struct {
		name string
		args []string
		want string
		code int
	}{
		{"bad assignment", []string{"car", "--set", "fuel"}, "invalid --set", ExitCommandError},
		{"bad filter", []string{"car", "--where", "sparkly"}, "invalid --where", ExitCommandError},
		{"delete without item", []string{"car", "--delete"}, "--delete requires --item", ExitCommandError},
		{"unknown template", []string{"bus"}, `template "bus" not found`, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewCalcCommand(opts), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

func TestCalcForgetsMissingItem(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	result, err := runCalcJSON(t, opts, "car", "--item", "missing", "--set", "distance=1")
	require.NoError(t, err)
	assert.Empty(t, result.Calculation.ItemID)
	assert.Equal(t, "clean_unbound", result.Calculation.State)
}

func TestCalcUnavailableService(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	opts := testOptions(t)
	opts.Config.ServiceURL = url
	opts.Format = "json"

	out, err := execute(t, NewCalcCommand(opts), "car", "--set", "fuel=diesel")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_CALC", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "unavailable")
}

func TestCalcOverHTTP(t *testing.T) {
	serverOpts := testOptions(t)
	seed(t, serverOpts)

	st, err := store.Open(serverOpts.Config.DB)
	require.NoError(t, err)
	defer st.Close()
	srv := httptest.NewServer(httpapi.NewHandler(st, newLogger(serverOpts, io.Discard)))
	defer srv.Close()

	opts := testOptions(t)
	opts.Config.ServiceURL = srv.URL

	result, err := runCalcJSON(t, opts, "car",
		"--set", "fuel=petrol", "--set", "distance=10")
	require.NoError(t, err)
	assert.Equal(t, "small", fieldValue(result.Calculation, "size"))
	assert.InDelta(t, 1.8, floatValue(t, result.Calculation, "co2"), 1e-9)

	refs, err := st.ListItems(t.Context(), result.Calculation.ContainerID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, result.Calculation.ItemID, refs[0].ID)
}

func TestParseAssignments(t *testing.T) {
	sel, err := parseAssignments([]string{"fuel=diesel", " size =large", "fuel=petrol", "note=a=b"})
	require.NoError(t, err)
	assert.Equal(t, engine.Selection{"fuel": "petrol", "size": "large", "note": "a=b"}, sel)

	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)
}
