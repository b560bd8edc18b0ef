package main

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLoadDotEnv_MissingFileIsIgnored(t *testing.T) {
	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestLoadDotEnv_SetsVariables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ROOMBOOK_TEST_DOTENV=from-file\n"), 0o600))
	t.Setenv("ROOMBOOK_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("ROOMBOOK_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	require.Equal(t, "from-file", os.Getenv("ROOMBOOK_TEST_DOTENV"))
}

func TestSetupLogger(t *testing.T) {
	previous := log.GetLevel()
	t.Cleanup(func() { log.SetLevel(previous) })

	setupLogger(log.DebugLevel)
	require.Equal(t, log.DebugLevel, log.GetLevel())
}
