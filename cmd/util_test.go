package cmd

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/emrgen/mediakit/internal/identity"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckMissingFlags(t *testing.T) {
	command := &cobra.Command{Use: "test"}
	command.Flags().String("context", "", "")
	command.Flags().String("file", "", "")
	command.SetOut(io.Discard)
	command.SetErr(io.Discard)

	assert.True(t, checkMissingFlags(command, []string{"context", "file"}))

	require.NoError(t, command.Flags().Set("context", "user:1"))
	assert.True(t, checkMissingFlags(command, []string{"context", "file"}))

	require.NoError(t, command.Flags().Set("file", "kit.json"))
	assert.False(t, checkMissingFlags(command, []string{"context", "file"}))
}

func TestParseRef(t *testing.T) {
	ref, err := parseRef("guest:abc")
	require.NoError(t, err)
	assert.Equal(t, identity.Guest("abc"), ref)

	_, err = parseRef("42")
	assert.Error(t, err)
}

func TestReadDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kit.json")
	legacy := `{"version":"1.0","components":{"hero-1":{"id":"hero-1","type":"hero","data":{"name":"Ada"}}}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	doc, err := readDocument(path)
	require.NoError(t, err)
	assert.True(t, doc.IsLegacy())
	assert.Contains(t, doc.Components, "hero-1")

	_, err = readDocument(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
