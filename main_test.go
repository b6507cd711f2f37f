package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gather-go/game"
	"gather-go/store"
)

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"no plan", fmt.Errorf("planning failed: %w", game.ErrPlanNotFound), "no plan reaches the goal: "},
		{"limit", fmt.Errorf("planning failed: %w", game.ErrSearchLimit), "search gave up before finding a plan: "},
		{"other", errors.New("disk full"), "run failed: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, failureMessage(tt.err), tt.want)
		})
	}
}

func TestRun_ReturnsAndReleasesRunIndex(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	config := fmt.Sprintf(`
output:
  dir: %s
  plan_file: plan.txt
  db_path: %s
scenario:
  path: %s
`, filepath.Join(dir, "saves"), dbPath, filepath.Join("scenarios", "default.yaml"))
	configPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	logger := log.New(io.Discard, "", 0)
	require.NoError(t, run(t.Context(), logger, configPath, Options{PlanOnly: true}))

	// the finished run is in the index
	runs, err := store.OpenRunStore(dbPath)
	require.NoError(t, err)
	defer runs.Close()
	recorded, err := runs.Runs(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, recorded, 1)
	assert.Equal(t, store.StatusDone, recorded[0].Status)

	err = run(t.Context(), logger, filepath.Join(dir, "missing", "config.yaml"), Options{})
	assert.Error(t, err)
}
