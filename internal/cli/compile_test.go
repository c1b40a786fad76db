package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/calcsync/internal/ir"
)

func writeTemplate(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "t.cue"), []byte(src), 0644))
	return dir
}

func TestCompileValidTemplates(t *testing.T) {
	out, err := execute(t, NewCompileCommand(testOptions(t)), filepath.Join("testdata", "templates"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 1 template(s)")
	assert.Contains(t, out, "car (/transport/car): 5 field(s)")
}

func TestCompileDefaultsToConfiguredTemplates(t *testing.T) {
	out, err := execute(t, NewCompileCommand(testOptions(t)))
	require.NoError(t, err)
	assert.Contains(t, out, "car (/transport/car)")
}

func TestCompileValidTemplatesJSON(t *testing.T) {
	opts := testOptions(t)
	opts.Format = "json"

	out, err := execute(t, NewCompileCommand(opts), filepath.Join("testdata", "templates", "car.cue"))
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Templates, 1)

	ct := result.Templates[0]
	want, err := ir.TemplateHash(ct.Template)
	require.NoError(t, err)
	assert.Equal(t, want, ct.Hash)
	assert.Equal(t, "/transport/car", ct.Template.Category)
}

func TestCompileOutputToFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "compiled.json")

	out, err := execute(t, NewCompileCommand(testOptions(t)),
		filepath.Join("testdata", "templates"), "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote canonical IR to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Templates, 1)
	assert.Len(t, result.Templates[0].Template.Fields, 5)
}

func TestCompileNonExistentDirectory(t *testing.T) {
	out, err := execute(t, NewCompileCommand(testOptions(t)), "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, out, "not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileEmptyDirectory(t *testing.T) {
	out, err := execute(t, NewCompileCommand(testOptions(t)), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003")
	assert.Contains(t, out, "no CUE files found")
}

func TestCompileReportsEveryError(t *testing.T) {
	dir := writeTemplate(t, `
package test

template: a: {
	name: "a"
	category: "/a"
	fields: [
		{kind: "drill", label: "fuel"},
		{kind: "drill", label: "fuel"},
	]
}

template: b: {
	name: "b"
	category: "/b"
	fields: [{kind: "output", label: "co2"}]
}
`)

	out, err := execute(t, NewCompileCommand(testOptions(t)), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compilation failed with 2 error(s)")
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, "E205")
	assert.Contains(t, out, "E212")
}

func TestCompileInvalidTemplateJSON(t *testing.T) {
	dir := writeTemplate(t, `
package test

template: a: {
	name: "a"
	fields: [{kind: "drill", label: "fuel"}]
}
`)
	opts := testOptions(t)
	opts.Format = "json"

	out, err := execute(t, NewCompileCommand(opts), dir)
	require.Error(t, err)

	var all []CLIError
	resp := decodeResponse(t, out, &all)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E101", resp.Error.Code)
	assert.Len(t, all, 1)
}

func TestParseCompileError(t *testing.T) {
	code, msg := parseCompileError(assert.AnError)
	assert.Equal(t, "E001", code)
	assert.Equal(t, assert.AnError.Error(), msg)
}
