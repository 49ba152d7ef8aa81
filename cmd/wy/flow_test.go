package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zulandar/workyard/internal/capacity"
	"github.com/zulandar/workyard/internal/models"
)

// writeConfig points a config file at a fresh sqlite database.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "workyard.yaml")
	cfg := fmt.Sprintf("database:\n  driver: sqlite\n  path: %s\nlog:\n  level: error\n", filepath.Join(dir, "wy.db"))
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path
}

func run(t *testing.T, cfg string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(args, "--config", cfg))
	err := cmd.Execute()
	return buf.String(), err
}

func mustRun(t *testing.T, cfg string, args ...string) string {
	t.Helper()
	out, err := run(t, cfg, args...)
	require.NoError(t, err, out)
	return out
}

var idPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func firstID(t *testing.T, out string) string {
	t.Helper()
	id := idPattern.FindString(out)
	require.NotEmpty(t, id, "no id in %q", out)
	return id
}

func TestCLIFlow(t *testing.T) {
	t.Setenv("WORKYARD_OPENAI_KEY", "")
	t.Setenv("WORKYARD_SLACK_TOKEN", "")
	t.Setenv("WORKYARD_DISCORD_TOKEN", "")
	cfg := writeConfig(t)

	out := mustRun(t, cfg, "db", "init")
	assert.Contains(t, out, "Seeded 22 weights")
	out = mustRun(t, cfg, "db", "init")
	assert.Contains(t, out, "Weights already present")

	mgr := firstID(t, mustRun(t, cfg, "manager", "add", "--name", "Grace"))
	ada := firstID(t, mustRun(t, cfg, "person", "add", "--name", "Ada", "--manager", mgr))
	out = mustRun(t, cfg, "person", "list")
	assert.Contains(t, out, "Ada")

	item := firstID(t, mustRun(t, cfg, "item", "add",
		"--owner", ada, "--name", "EHR upgrade", "--status", "Active",
		"--effort", "L", "--role", "Owner", "--phase", "Implementation"))

	out = mustRun(t, cfg, "capacity", "--person", ada, "--json")
	var snap capacity.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap), out)
	// L (7.5) x Owner (1) x Project (1) x Implementation (1.25)
	assert.InDelta(t, 9.375, snap.PlannedHours, 1e-9)
	assert.Equal(t, capacity.Available, snap.Band)

	out = mustRun(t, cfg, "item", "show", item)
	assert.Contains(t, out, "7.5 base x 1 role x 1 type x 1.25 phase")
	out = mustRun(t, cfg, "person", "show", ada)
	assert.Contains(t, out, "Manager:  Grace")
	assert.Contains(t, out, "Items by status")

	scratch := firstID(t, mustRun(t, cfg, "item", "add", "--owner", ada, "--name", "Scratch"))
	out = mustRun(t, cfg, "item", "update", scratch, "--status", "On Hold", "--role", "Support")
	assert.Contains(t, out, "2 field(s)")
	_, err := run(t, cfg, "item", "update", scratch, "--status", "Paused")
	assert.Error(t, err)
	out = mustRun(t, cfg, "item", "delete", scratch)
	assert.Contains(t, out, "Deleted work item")

	out = mustRun(t, cfg, "capacity", "--manager", mgr)
	assert.Contains(t, out, "Ada")
	assert.Contains(t, out, "Grace")

	xlsx := filepath.Join(t.TempDir(), "cap.xlsx")
	out = mustRun(t, cfg, "capacity", "export", "--out", xlsx)
	assert.Contains(t, out, "1 people and 1 managers")
	_, err = os.Stat(xlsx)
	require.NoError(t, err)

	out = mustRun(t, cfg, "log", "--item", item, "--person", ada, "--hours", "5", "--week", "2025-06-04")
	assert.Contains(t, out, "Logged 5.0 hours for week of 2025-06-02")
	assert.Contains(t, out, "trend up")

	out = mustRun(t, cfg, "weights", "apply", "effort_size/L=10", "--actor", "ops")
	assert.Contains(t, out, "weights version 2")
	out = mustRun(t, cfg, "weights", "list", "--type", "effort_size")
	assert.Contains(t, out, "Weights version 2")
	_, err = run(t, cfg, "weights", "apply", "effort_size/XXL=10")
	assert.Error(t, err)

	code := fmt.Sprintf("GOV-%d-001", time.Now().Year())
	out = mustRun(t, cfg, "request", "create",
		"--title", "Sepsis bundle", "--effort", "M", "--division", "North",
		"--submitter", "Bo", "--email", "bo@example.org",
		"--problem", "Late antibiotics", "--outcomes", "Faster compliance",
		"--metric", "Compliance")
	assert.Contains(t, out, "Created "+code)

	_, err = run(t, cfg, "request", "transition", code, "Completed")
	assert.Error(t, err, "Draft cannot complete")

	out = mustRun(t, cfg, "request", "transition", code, "Ready for Review", "--actor", "bo")
	assert.Contains(t, out, "Draft -> Ready for Review")
	assert.Contains(t, out, "Note:")

	out = mustRun(t, cfg, "request", "assign", code, ada)
	assert.Contains(t, out, "Created work item")

	out = mustRun(t, cfg, "request", "transition", code, "Ready for Governance")
	assert.Contains(t, out, "Copied request details")

	mustRun(t, cfg, "request", "comment", code, "Approved at board", "--author", "Grace")
	out = mustRun(t, cfg, "request", "show", code, "--json")
	var req models.GovernanceRequest
	require.NoError(t, json.Unmarshal([]byte(out), &req), out)
	assert.Equal(t, "Ready for Governance", req.Status)
	require.NotNil(t, req.LinkedInitiativeID)
	require.Len(t, req.Comments, 1)

	out = mustRun(t, cfg, "request", "pipeline")
	assert.Contains(t, out, "In prep: 1")

	out = mustRun(t, cfg, "request", "transition", code, "Completed")
	assert.Contains(t, out, "is now Active")

	out = mustRun(t, cfg, "item", "show", *req.LinkedInitiativeID)
	assert.Contains(t, out, "Sepsis bundle")
	assert.Contains(t, out, "Late antibiotics")

	out = mustRun(t, cfg, "request", "list", "--status", "Completed")
	assert.Contains(t, out, code)

	linus := firstID(t, mustRun(t, cfg, "person", "add", "--name", "Linus"))
	out = mustRun(t, cfg, "item", "reassign", item, linus, "--role", "Support")
	assert.Contains(t, out, "Reassigned EHR upgrade to Linus as Support")
	out = mustRun(t, cfg, "item", "reassign", item, linus)
	assert.Contains(t, out, "Note: work item "+item+" is already owned by Linus")
	out = mustRun(t, cfg, "person", "show", linus)
	assert.Contains(t, out, "Project")

	_, err = run(t, cfg, "ask", "who is overloaded?")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not configured"))
	_, err = run(t, cfg, "ask", "--balance", ada+","+linus)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "not configured"))
}
