package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCatalog = filepath.Join("testdata", "catalog.yaml")

// seed loads the test catalog into opts' database.
func seed(t *testing.T, opts *RootOptions) {
	t.Helper()
	_, err := execute(t, NewSeedCommand(opts), testCatalog)
	require.NoError(t, err)
}

func TestSeed(t *testing.T) {
	opts := testOptions(t)

	out, err := execute(t, NewSeedCommand(opts), testCatalog)
	require.NoError(t, err)
	assert.Contains(t, out, "1 categor(ies), 3 item(s) created, 0 updated")
}

func TestSeedIsIdempotent(t *testing.T) {
	opts := testOptions(t)
	seed(t, opts)

	opts.Format = "json"
	out, err := execute(t, NewSeedCommand(opts), testCatalog)
	require.NoError(t, err)

	var result SeedResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, SeedResult{Database: opts.Config.DB, Categories: 1, Created: 0, Updated: 3}, result)
}

func TestSeedMissingCatalog(t *testing.T) {
	_, err := execute(t, NewSeedCommand(testOptions(t)), filepath.Join("testdata", "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read catalog")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
