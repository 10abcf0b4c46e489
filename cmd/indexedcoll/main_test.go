package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "indexedcoll.yaml")
	data := fmt.Sprintf("store:\n  backend: bolt\n  path: %s\n  sync_writes: false\nlog_level: error\n", filepath.Join(dir, "data.db"))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func runCmd(t *testing.T, config string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"--config", config}, args...), &stdout, &stderr)
	return stdout.String(), err
}

func lines(s string) []string {
	return strings.Fields(s)
}

func TestCLI_SetAndSearch(t *testing.T) {
	config := writeConfig(t)
	for i, item := range []string{"u3", "u1", "u2"} {
		_, err := runCmd(t, config, "set", item, "age", fmt.Sprint(30+i), "--int", "--in", "org1:members", "--in", "org2:members")
		require.NoError(t, err)
	}
	_, err := runCmd(t, config, "set", "u1", "status", "active", "--in", "org1:members")
	require.NoError(t, err)

	out, err := runCmd(t, config, "search", "org1:members", "age", "--start", "31", "--int")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, lines(out))

	out, err = runCmd(t, config, "search", "org2:members", "age", "--end", "31", "--inclusive", "--int", "--reverse")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u3"}, lines(out))

	out, err = runCmd(t, config, "search", "org1:members", "age", "--int", "--limit", "1", "--start", "30", "--after", "u3")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, lines(out))

	out, err = runCmd(t, config, "search", "org1:members", "status", "--eq", "active")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, lines(out))

	_, err = runCmd(t, config, "set", "u1", "status", "--null", "--in", "org1:members")
	require.NoError(t, err)
	out, err = runCmd(t, config, "search", "org1:members", "status")
	require.NoError(t, err)
	assert.Empty(t, lines(out))

	out, err = runCmd(t, config, "get", "u1")
	require.NoError(t, err)
	assert.Equal(t, "age = 31\n", out)

	out, err = runCmd(t, config, "get", "u2", "age")
	require.NoError(t, err)
	assert.Equal(t, "32\n", out)

	out, err = runCmd(t, config, "dump", "u1")
	require.NoError(t, err)
	assert.Contains(t, out, "Item/u1")

	out, err = runCmd(t, config, "dump", "--index", "age", "org2:members")
	require.NoError(t, err)
	assert.Contains(t, out, "Collection_Index/org2:members:age")
	assert.Contains(t, out, "=> u3")
}

func TestCLI_Members(t *testing.T) {
	config := writeConfig(t)
	_, err := runCmd(t, config, "add", "org1:members", "u2", "u1", "u3")
	require.NoError(t, err)
	_, err = runCmd(t, config, "remove", "org1:members", "u3")
	require.NoError(t, err)

	out, err := runCmd(t, config, "members", "org1:members")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, lines(out))
}

func TestCLI_Errors(t *testing.T) {
	config := writeConfig(t)

	_, err := runCmd(t, config, "set", "u1", "age", "abc", "--int")
	assert.ErrorContains(t, err, "invalid integer")

	_, err = runCmd(t, config, "set", "u1", "age")
	assert.ErrorContains(t, err, "missing value")

	_, err = runCmd(t, config, "search", "org1", "age")
	assert.Error(t, err)

	_, err = runCmd(t, config, "search", "org1:members", "age", "--reverse", "--after", "u1")
	assert.Error(t, err)

	_, err = runCmd(t, config, "get", "u1", "age")
	assert.ErrorContains(t, err, "no attribute")

	// the store is closed after a failed command
	_, err = runCmd(t, config, "add", "org1:members", "u1")
	assert.NoError(t, err)

	_, err = runCmd(t, filepath.Join(t.TempDir(), "missing.yaml"), "members", "org1:members")
	assert.Error(t, err)
}
