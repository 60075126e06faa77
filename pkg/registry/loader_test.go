package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoader() *Loader {
	return NewLoader(zerolog.New(os.Stdout).Level(zerolog.Disabled))
}

func writeDefinition(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadFileValidDefinition(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "greet.json", `{
		"name": "greet",
		"description": "Say hello",
		"options": [
			{"kind": "string", "name": "who", "description": "Who to greet", "required": true}
		]
	}`)

	desc, err := testLoader().LoadFile(filepath.Join(dir, "greet.json"))
	require.NoError(t, err)

	assert.Equal(t, "greet", desc.Name)
	require.Len(t, desc.Options, 1)
	assert.Equal(t, OptionString, desc.Options[0].Kind)
	assert.True(t, desc.Options[0].Required)
}

func TestLoadFileRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing description": `{"name": "greet"}`,
		"bad name pattern":    `{"name": "Greet Me", "description": "x"}`,
		"unknown option kind": `{"name": "greet", "description": "x", "options": [{"kind": "attachment", "name": "f", "description": "x"}]}`,
		"extra property":      `{"name": "greet", "description": "x", "color": "red"}`,
	}

	for label, content := range cases {
		dir := t.TempDir()
		writeDefinition(t, dir, "bad.json", content)

		_, err := testLoader().LoadFile(filepath.Join(dir, "bad.json"))
		assert.Error(t, err, label)
		assert.Contains(t, err.Error(), "schema validation failed", label)
	}
}

func TestLoadFileRejectsMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "bad.json", `{not json`)

	_, err := testLoader().LoadFile(filepath.Join(dir, "bad.json"))
	assert.Error(t, err)
}

func TestLoadFileMissingFile(t *testing.T) {
	_, err := testLoader().LoadFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read definition file")
}

func TestLoadDirSortedByFileName(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "b.json", `{"name": "beta", "description": "x"}`)
	writeDefinition(t, dir, "a.json", `{"name": "alpha", "description": "x"}`)
	writeDefinition(t, dir, "notes.txt", `ignored`)

	descs, err := testLoader().LoadDir(dir)
	require.NoError(t, err)

	require.Len(t, descs, 2)
	assert.Equal(t, "alpha", descs[0].Name)
	assert.Equal(t, "beta", descs[1].Name)
}

func TestLoadDirFailsOnSingleInvalidFile(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "good.json", `{"name": "good", "description": "x"}`)
	writeDefinition(t, dir, "bad.json", `{"name": "bad"}`)

	_, err := testLoader().LoadDir(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestLoadDirRejectsDuplicateCommandNames(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "one.json", `{"name": "greet", "description": "x"}`)
	writeDefinition(t, dir, "two.json", `{"name": "greet", "description": "y"}`)

	_, err := testLoader().LoadDir(dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already defined")
}

func TestLoadDirEmptyDirectory(t *testing.T) {
	descs, err := testLoader().LoadDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, descs)
}
