package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const carTemplateCUE = `package test

template: car: {
	category: "/transport/car"
	fields: [
		{kind: "drill", label: "fuel"},
		{kind: "drill", label: "size"},
		{kind: "profile", label: "distance", type: "decimal", compulsory: true},
		{kind: "output", label: "co2", output_type: "CO2"},
	]
}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func loadErrorCode(t *testing.T, err error) string {
	t.Helper()
	le, ok := err.(*LoadError)
	require.True(t, ok, "error should be *LoadError, got %T", err)
	return le.Code
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "car.cue", carTemplateCUE)
	writeFile(t, dir, "bus.cue", `package test

template: bus: {
	category: "/transport/bus"
	fields: [{kind: "profile", label: "distance", type: "decimal"}]
}
`)

	result, errs := LoadDir(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	assert.Equal(t, 2, result.FileCount)
	require.Len(t, result.Templates, 2)

	car, ok := result.Template("car")
	require.True(t, ok)
	assert.Equal(t, "/transport/car", car.Category)
	assert.Len(t, car.Fields, 4)

	_, ok = result.Template("tram")
	assert.False(t, ok)
}

func TestLoadDirErrors(t *testing.T) {
	_, errs := LoadDir("/nonexistent/templates", LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNotFound, loadErrorCode(t, errs[0]))

	_, errs = LoadDir(t.TempDir(), LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNoFiles, loadErrorCode(t, errs[0]))
	assert.Contains(t, errs[0].Error(), "no CUE files found")
}

func TestLoadDirNoTemplates(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.cue", "package test\n\nother: 1\n")

	_, errs := LoadDir(dir, LoadModeCollectAll)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "no templates found")
}

func TestLoadModes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.cue", `package test

template: a: { fields: [{kind: "drill", label: "x"}] }
template: b: { category: "/b", fields: [{kind: "dial", label: "x"}] }
template: c: { category: "/c", fields: [{kind: "drill", label: "x"}] }
`)

	result, errs := LoadDir(dir, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeCategory, loadErrorCode(t, errs[0]))
	assert.Empty(t, result.Templates)

	result, errs = LoadDir(dir, LoadModeCollectAll)
	require.Len(t, errs, 2)
	assert.Equal(t, ErrCodeCategory, loadErrorCode(t, errs[0]))
	assert.Equal(t, ErrUnknownKind, loadErrorCode(t, errs[1]))
	assert.Contains(t, errs[1].Error(), "template.b")
	require.Len(t, result.Templates, 1)
	assert.Equal(t, "c", result.Templates[0].Name)
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "car.cue", carTemplateCUE)

	result, errs := LoadFile(path, LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, result.Templates, 1)
	assert.Equal(t, "car", result.Templates[0].Name)

	result, errs = Load(path, LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 1, result.FileCount)
}

func TestLoadFileErrors(t *testing.T) {
	_, errs := LoadFile("/nonexistent/car.cue", LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNotFound, loadErrorCode(t, errs[0]))

	path := writeFile(t, t.TempDir(), "broken.cue", "template: car: {")
	_, errs = LoadFile(path, LoadModeFailFast)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "broken.cue")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "subdir")
	require.NoError(t, os.MkdirAll(sub, 0755))
	writeFile(t, dir, "root.cue", "package test")
	writeFile(t, dir, "notcue.txt", "not a cue file")
	writeFile(t, sub, "nested.cue", "package test")

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "root.cue"),
		filepath.Join(sub, "nested.cue"),
	}, files)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"category", ErrCodeCategory},
		{"fields", ErrCodeFields},
		{"kind", ErrCodeKind},
		{"attribute", ErrCodeAttribute},
		{"cue", ErrCodeCUE},
		{"template", ErrCodeNotFound},
		{"unknown", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
