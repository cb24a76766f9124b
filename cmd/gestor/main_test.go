package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gestor.yaml")

	out, err := execute(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "utc_offset_hours: -3")

	_, err = execute(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	_, err = execute(t, "config", "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestNextOrder(t *testing.T) {
	t.Setenv("GESTOR_DATABASE_DRIVER", "memory")
	t.Setenv("GESTOR_LOG_LEVEL", "error")

	out, err := execute(t, "next-order", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{8}001$`), strings.TrimSpace(out))
}

func TestMerge_RequiresURL(t *testing.T) {
	_, err := execute(t, "merge")
	assert.Error(t, err)
}

func TestLoadApp_InvalidConfig(t *testing.T) {
	t.Setenv("GESTOR_DATABASE_DRIVER", "postgres")
	_, err := execute(t, "next-order", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.driver")
}
