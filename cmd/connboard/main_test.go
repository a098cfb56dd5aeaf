package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	charmLog "github.com/charmbracelet/log"

	serveradapter "github.com/hylla/connboard/internal/adapters/server"
	servercommon "github.com/hylla/connboard/internal/adapters/server/common"
	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/config"
	"github.com/hylla/connboard/internal/platform"
)

var testNow = time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC)

// testEnv isolates env-driven defaults and the clock, and returns config/db flags.
func testEnv(t *testing.T) []string {
	t.Helper()
	t.Setenv("CONNBOARD_DEV_MODE", "false")
	t.Setenv("CONNBOARD_CONFIG", "")
	t.Setenv("CONNBOARD_DB_PATH", "")
	t.Setenv("CONNBOARD_APP_NAME", "")
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(t.TempDir(), "xdg-config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(t.TempDir(), "xdg-data"))
	prevNow := nowFunc
	nowFunc = func() time.Time { return testNow }
	t.Cleanup(func() { nowFunc = prevNow })

	dir := t.TempDir()
	return []string{
		"--config", filepath.Join(dir, "config.toml"),
		"--db", filepath.Join(dir, "connboard.db"),
	}
}

// runArgs runs one command line and returns stdout.
func runArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

// seedActor seeds the demo board and returns the demo actor id.
func seedActor(t *testing.T, global []string) int64 {
	t.Helper()
	out, err := runArgs(t, append([]string{"seed"}, global...)...)
	if err != nil {
		t.Fatalf("seed error = %v", err)
	}
	for line := range strings.SplitSeq(out, "\n") {
		if raw, ok := strings.CutPrefix(line, "actor: "); ok {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				t.Fatalf("parse actor id %q: %v", raw, err)
			}
			return id
		}
	}
	t.Fatalf("seed output missing actor line: %q", out)
	return 0
}

// TestRunPathsPrintsResolvedLocations verifies the paths command output.
func TestRunPathsPrintsResolvedLocations(t *testing.T) {
	testEnv(t)
	out, err := runArgs(t, "paths", "--dev=false")
	if err != nil {
		t.Fatalf("paths error = %v", err)
	}
	for _, want := range []string{"app: connboard", "dev_mode: false", "connboard.db", "config.toml", "log_dir: ", "template_dir: "} {
		if !strings.Contains(out, want) {
			t.Fatalf("paths output missing %q:\n%s", want, out)
		}
	}

	out, err = runArgs(t, "paths", "--app", "board-test", "--dev")
	if err != nil {
		t.Fatalf("paths dev error = %v", err)
	}
	if !strings.Contains(out, "board-test-dev.db") || !strings.Contains(out, "dev_mode: true") {
		t.Fatalf("expected dev-mode paths, got:\n%s", out)
	}
}

// TestRunSeedIsIdempotent verifies the second seed writes nothing.
func TestRunSeedIsIdempotent(t *testing.T) {
	global := testEnv(t)
	if actor := seedActor(t, global); actor <= 0 {
		t.Fatalf("expected positive actor id, got %d", actor)
	}
	out, err := runArgs(t, append([]string{"seed"}, global...)...)
	if err != nil {
		t.Fatalf("second seed error = %v", err)
	}
	if !strings.Contains(out, "nothing seeded") {
		t.Fatalf("expected no-op seed, got %q", out)
	}
}

// TestRunBoardMarkdown verifies the board renders columns and cards.
func TestRunBoardMarkdown(t *testing.T) {
	global := testEnv(t)
	actor := seedActor(t, global)

	args := append([]string{"board", "--actor", strconv.FormatInt(actor, 10), "--style", "notty", "--width", "160"}, global...)
	out, err := runArgs(t, args...)
	if err != nil {
		t.Fatalf("board error = %v", err)
	}
	for _, want := range []string{"Greeting Team", "No Contact", "Contacted", "Scheduled", "Alisha Marble"} {
		if !strings.Contains(out, want) {
			t.Fatalf("board output missing %q:\n%s", want, out)
		}
	}
}

// TestRunBoardJSON verifies the JSON view in card and grid modes.
func TestRunBoardJSON(t *testing.T) {
	global := testEnv(t)
	actor := seedActor(t, global)
	actorArg := strconv.FormatInt(actor, 10)

	out, err := runArgs(t, append([]string{"board", "--actor", actorArg, "--json"}, global...)...)
	if err != nil {
		t.Fatalf("board --json error = %v", err)
	}
	var view app.BoardView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode board view: %v\n%s", err, out)
	}
	if view.Opportunity == nil || view.Opportunity.Name != "Greeting Team" {
		t.Fatalf("unexpected opportunity %#v", view.Opportunity)
	}
	if len(view.Columns) != 3 || view.Grid != nil {
		t.Fatalf("expected three columns and no grid, got %d columns grid=%v", len(view.Columns), view.Grid != nil)
	}
	cards := 0
	for _, column := range view.Columns {
		cards += len(column.Cards)
	}
	if cards != 3 {
		t.Fatalf("expected 3 cards, got %d", cards)
	}

	out, err = runArgs(t, append([]string{"board", "--actor", actorArg, "--json", "--grid", "--sort", "requestor_desc"}, global...)...)
	if err != nil {
		t.Fatalf("board --grid error = %v", err)
	}
	view = app.BoardView{}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode grid view: %v", err)
	}
	if view.Grid == nil || view.Grid.Total != 3 || view.State.Sort != app.SortRequestorDesc {
		t.Fatalf("unexpected grid view state=%#v grid=%#v", view.State, view.Grid)
	}
	if first := view.Grid.Rows[0].PersonName; first != "Sarah Simmons" {
		t.Fatalf("expected descending requestor order to start with Sarah Simmons, got %q", first)
	}
}

// TestRunBoardUsesTemplateOverride verifies status icons come from the template dir.
func TestRunBoardUsesTemplateOverride(t *testing.T) {
	global := testEnv(t)
	actor := seedActor(t, global)
	paths, err := platform.Default(platform.Options{})
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if err := os.MkdirAll(paths.TemplateDir, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	const icons = `<i class="custom-icons"></i>`
	if err := os.WriteFile(paths.TemplateFile("status_icons"), []byte(icons), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	out, err := runArgs(t, append([]string{"board", "--actor", strconv.FormatInt(actor, 10), "--json"}, global...)...)
	if err != nil {
		t.Fatalf("board --json error = %v", err)
	}
	var view app.BoardView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode board view: %v", err)
	}
	for _, column := range view.Columns {
		for _, card := range column.Cards {
			if card.StatusIconsHTML != icons {
				t.Fatalf("card %d icons = %q, want override", card.ID, card.StatusIconsHTML)
			}
		}
	}
}

// TestRunBoardRejectsBadInput verifies flag validation happens before the store opens.
func TestRunBoardRejectsBadInput(t *testing.T) {
	global := testEnv(t)
	if _, err := runArgs(t, append([]string{"board"}, global...)...); err == nil || !strings.Contains(err.Error(), "--actor") {
		t.Fatalf("expected actor error, got %v", err)
	}
	if _, err := runArgs(t, append([]string{"board", "--actor", "1", "--sort", "sideways"}, global...)...); err == nil {
		t.Fatal("expected sort error")
	}
}

// TestRunServeWiresDependencies verifies serve passes config and a live board to the runner.
func TestRunServeWiresDependencies(t *testing.T) {
	global := testEnv(t)
	seedActor(t, global)

	var (
		gotCfg  serveradapter.Config
		gotDeps serveradapter.Dependencies
		listed  []servercommon.OpportunitySummary
	)
	prev := serveCommandRunner
	serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
		gotCfg, gotDeps = cfg, deps
		if err := deps.Ready(ctx); err != nil {
			return err
		}
		var err error
		listed, err = deps.Board.ListOpportunities(ctx, servercommon.ListOpportunitiesRequest{})
		return err
	}
	t.Cleanup(func() { serveCommandRunner = prev })

	if _, err := runArgs(t, append([]string{"serve", "--http", "127.0.0.1:9999"}, global...)...); err != nil {
		t.Fatalf("serve error = %v", err)
	}
	if gotCfg.HTTPBind != "127.0.0.1:9999" || gotCfg.APIEndpoint != "/api/v1" || gotCfg.MCPEndpoint != "/mcp" {
		t.Fatalf("unexpected serve config %#v", gotCfg)
	}
	if gotCfg.SessionTTL != 2*time.Hour || gotCfg.ServerName != "connboard" {
		t.Fatalf("unexpected serve config %#v", gotCfg)
	}
	if gotDeps.Sessions == nil || gotDeps.Logger == nil {
		t.Fatalf("expected sessions and logger dependencies, got %#v", gotDeps)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 seeded opportunities, got %#v", listed)
	}
}

// TestRunRejectsInvalidConfig verifies config validation errors surface.
func TestRunRejectsInvalidConfig(t *testing.T) {
	global := testEnv(t)
	if err := os.WriteFile(global[1], []byte("[board]\ndefault_sort = \"sideways\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := runArgs(t, append([]string{"seed"}, global...)...); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected config error, got %v", err)
	}
}

// TestRunUnknownCommand verifies unknown subcommands fail.
func TestRunUnknownCommand(t *testing.T) {
	testEnv(t)
	if _, err := runArgs(t, "export"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

// TestNewRuntimeLoggerDevFile verifies the logfmt dev sink and console muting.
func TestNewRuntimeLoggerDevFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	paths := platform.Paths{AppName: "connboard", LogDir: filepath.Join(dir, "unused")}
	logger, err := newRuntimeLogger(&console, true, config.LoggingConfig{
		Level:   "debug",
		DevFile: config.DevFileConfig{Enabled: true, Dir: dir},
	}, paths, func() time.Time { return testNow })
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	wantPath := filepath.Join(dir, "connboard-20260221.log")
	if logger.DevLogPath() != wantPath {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), wantPath)
	}

	logger.Info("board opened", "opportunity_id", 7)
	logger.Mute()
	logger.Warn("console muted", "session", "abc")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if !strings.Contains(console.String(), "board opened") || strings.Contains(console.String(), "console muted") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	content, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	for _, want := range []string{"opportunity_id=7", "console muted", "session=abc"} {
		if !strings.Contains(string(content), want) {
			t.Fatalf("dev log missing %q:\n%s", want, content)
		}
	}
}

// TestNewRuntimeLoggerFallsBackToLogDir verifies a blank dev dir uses the per-user log dir.
func TestNewRuntimeLoggerFallsBackToLogDir(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "log")
	logger, err := newRuntimeLogger(nil, true, config.LoggingConfig{
		Level:   "info",
		DevFile: config.DevFileConfig{Enabled: true},
	}, platform.Paths{AppName: "connboard-dev", LogDir: logDir}, func() time.Time { return testNow })
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	defer func() { _ = logger.Close() }()
	if want := filepath.Join(logDir, "connboard-dev-20260221.log"); logger.DevLogPath() != want {
		t.Fatalf("DevLogPath() = %q, want %q", logger.DevLogPath(), want)
	}
	if _, err := os.Stat(logger.DevLogPath()); err != nil {
		t.Fatalf("expected dev log created, stat error %v", err)
	}
}

// TestNewRuntimeLoggerConsoleOnly verifies no file sink outside dev mode.
func TestNewRuntimeLoggerConsoleOnly(t *testing.T) {
	paths := platform.Paths{AppName: "connboard"}
	logger, err := newRuntimeLogger(nil, false, config.LoggingConfig{Level: "info", DevFile: config.DevFileConfig{Enabled: true}}, paths, nil)
	if err != nil {
		t.Fatalf("newRuntimeLogger() error = %v", err)
	}
	if logger.DevLogPath() != "" || logger.file != nil {
		t.Fatalf("expected console-only logger, got %#v", logger)
	}
	if logger.Console().GetLevel() != charmLog.InfoLevel {
		t.Fatalf("unexpected console level %v", logger.Console().GetLevel())
	}
	if _, err := newRuntimeLogger(nil, false, config.LoggingConfig{Level: "loud"}, paths, nil); err == nil {
		t.Fatal("expected invalid level error")
	}
}
