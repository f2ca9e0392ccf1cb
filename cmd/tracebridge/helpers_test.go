package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

// writeConfig writes a test configuration with the journal in a temp dir and
// points --config at it. collectorURL may be empty.
func writeConfig(t *testing.T, collectorURL, extra string) (journalPath string) {
	t.Helper()

	for _, name := range []string{"EXTERNAL_TRACE_API_URL", "EXTERNAL_TRACE_URL", "EXTERNAL_TRACE_ROUTE_URL", "EXTERNAL_TRACE_API_KEY"} {
		t.Setenv(name, "")
	}

	dir := t.TempDir()
	journalPath = filepath.Join(dir, "journal.db")
	body := fmt.Sprintf(`collector:
  base_url: %q
  api_key: "test-key-123456"
journal:
  driver: sqlite
  path: %q
telemetry:
  logging:
    level: error
  metrics:
    enabled: false
%s`, collectorURL, journalPath, extra)

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	origFile, origVerbose := cfgFile, verbose
	cfgFile, verbose = path, false
	t.Cleanup(func() { cfgFile, verbose = origFile, origVerbose })

	return journalPath
}

// newTestCommand returns a command whose output is captured.
func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetContext(context.Background())
	return cmd, buf
}
