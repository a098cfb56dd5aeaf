package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/hylla/connboard/internal/adapters/render/statusicons"
	serveradapter "github.com/hylla/connboard/internal/adapters/server"
	servercommon "github.com/hylla/connboard/internal/adapters/server/common"
	"github.com/hylla/connboard/internal/adapters/storage/sqlite"
	"github.com/hylla/connboard/internal/app"
	"github.com/hylla/connboard/internal/config"
	"github.com/hylla/connboard/internal/platform"
)

// version is stamped at build time.
var version = "dev"

// nowFunc is the clock handed to the service and the demo seeder.
var nowFunc = time.Now

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := fang.Execute(ctx, newRootCommand(), fang.WithVersion(version))
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run executes one command line without fang's styling.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	root := newRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// newRootCommand builds the connboard command tree.
func newRootCommand() *cobra.Command {
	opts := &globalOptions{appName: platform.DefaultAppName}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("CONNBOARD_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	if envApp := strings.TrimSpace(os.Getenv("CONNBOARD_APP_NAME")); envApp != "" {
		opts.appName = envApp
	}

	root := &cobra.Command{
		Use:           "connboard",
		Short:         "Connection request board for ministry opportunities",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&opts.appName, "app", opts.appName, "application name for config/data path resolution")
	flags.BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newPathsCommand(opts),
		newSeedCommand(opts),
		newServeCommand(opts),
		newBoardCommand(opts),
	)
	return root
}

func newPathsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and log locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(out, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(out, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(out, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(out, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(out, "log_dir: %s\n", paths.LogDir)
			_, _ = fmt.Fprintf(out, "template_dir: %s\n", paths.TemplateDir)
			return nil
		},
	}
}

func newSeedCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty database with a demo board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open(cmd, "seed")
			if err != nil {
				return err
			}
			defer rt.close()

			demo, seeded, err := rt.repo.SeedDemo(cmd.Context(), nowFunc())
			if err != nil {
				rt.logger.Error("demo seed failed", "db_path", rt.cfg.Database.Path, "err", err)
				return fmt.Errorf("seed demo board: %w", err)
			}
			out := cmd.OutOrStdout()
			if !seeded {
				_, _ = fmt.Fprintln(out, "database already has connection types; nothing seeded")
				return nil
			}
			rt.logger.Info("demo board seeded", "connection_type_id", demo.ConnectionTypeID, "requests", len(demo.RequestIDs))
			_, _ = fmt.Fprintf(out, "connection_type: %d\n", demo.ConnectionTypeID)
			_, _ = fmt.Fprintf(out, "opportunities: %s\n", joinIDs(demo.OpportunityIDs))
			_, _ = fmt.Fprintf(out, "requests: %s\n", joinIDs(demo.RequestIDs))
			_, _ = fmt.Fprintf(out, "actor: %d\n", demo.ActorID)
			return nil
		},
	}
}

func newServeCommand(opts *globalOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := opts.open(cmd, "serve")
			if err != nil {
				return err
			}
			defer rt.close()

			serverCfg := rt.cfg.Server
			if strings.TrimSpace(httpBind) != "" {
				serverCfg.HTTPBind = httpBind
			}
			if strings.TrimSpace(apiEndpoint) != "" {
				serverCfg.APIEndpoint = apiEndpoint
			}
			if strings.TrimSpace(mcpEndpoint) != "" {
				serverCfg.MCPEndpoint = mcpEndpoint
			}
			ttl, err := serverCfg.TTL()
			if err != nil {
				return err
			}

			board, err := rt.board(cmd.Context())
			if err != nil {
				return err
			}
			sessions := servercommon.NewSessions(nil)
			adapter := servercommon.NewBoardAdapter(board, rt.repo, sessions, rt.logger.Console())

			rt.logger.Info("command flow start", "command", "serve", "http", serverCfg.HTTPBind)
			err = serveCommandRunner(cmd.Context(), serveradapter.Config{
				HTTPBind:      serverCfg.HTTPBind,
				APIEndpoint:   serverCfg.APIEndpoint,
				MCPEndpoint:   serverCfg.MCPEndpoint,
				ServerName:    opts.appName,
				ServerVersion: version,
				SessionTTL:    ttl,
			}, serveradapter.Dependencies{
				Board:    adapter,
				Sessions: sessions,
				Ready:    rt.repo.Ping,
				Logger:   rt.logger.Console(),
			})
			if err != nil {
				rt.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "", "HTTP listen address (overrides server.http_bind)")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "", "HTTP API base endpoint (overrides server.api_endpoint)")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "", "MCP streamable HTTP endpoint (overrides server.mcp_endpoint)")
	return cmd
}

// boardOptions are the flags of the board command.
type boardOptions struct {
	actorID       int64
	opportunityID int64
	requestID     int64
	sort          string
	grid          bool
	asJSON        bool
	style         string
	width         int
}

func newBoardCommand(opts *globalOptions) *cobra.Command {
	var bo boardOptions
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Print one opportunity's board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bo.actorID <= 0 {
				return errors.New("--actor must be a positive person id")
			}
			var sort app.SortProperty
			if strings.TrimSpace(bo.sort) != "" {
				parsed, err := app.ParseSortProperty(bo.sort)
				if err != nil {
					return err
				}
				sort = parsed
			}

			rt, err := opts.open(cmd, "board")
			if err != nil {
				return err
			}
			defer rt.close()
			// Board output owns stdout and stderr stays for errors.
			rt.logger.Mute()

			board, err := rt.board(cmd.Context())
			if err != nil {
				return err
			}
			view, err := boardView(cmd.Context(), board, bo, sort)
			if err != nil {
				rt.logger.Error("board view failed", "actor_id", bo.actorID, "err", err)
				return err
			}

			out := cmd.OutOrStdout()
			if bo.asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			rendered, err := renderMarkdown(boardMarkdown(view), bo.style, bo.width)
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, rendered)
			return err
		},
	}
	flags := cmd.Flags()
	flags.Int64Var(&bo.actorID, "actor", 0, "person id of the current user")
	flags.Int64Var(&bo.opportunityID, "opportunity", 0, "opportunity to show")
	flags.Int64Var(&bo.requestID, "request", 0, "request to open in the detail panel")
	flags.StringVar(&bo.sort, "sort", "", "sort property (order, requestor, connector, date_added, last_activity, campus, group; _desc for descending)")
	flags.BoolVar(&bo.grid, "grid", false, "show the grid instead of columns")
	flags.BoolVar(&bo.asJSON, "json", false, "print the view as JSON")
	flags.StringVar(&bo.style, "style", "auto", "glamour style (auto, dark, light, notty)")
	flags.IntVar(&bo.width, "width", 100, "wrap width")
	return cmd
}

// boardView starts a session and applies the requested sort and mode. The sort sticks
// as the actor's preference, as it does for any session.
func boardView(ctx context.Context, board *app.Board, bo boardOptions, sort app.SortProperty) (app.BoardView, error) {
	state, outcome := board.Start(ctx, app.StartInput{
		ActorID:       bo.actorID,
		OpportunityID: bo.opportunityID,
		RequestID:     bo.requestID,
	})
	notices := collectNotice(nil, outcome)
	if sort != "" && sort != state.Sort {
		state, outcome = board.Handle(ctx, state, app.SetSort{Sort: sort})
		notices = collectNotice(notices, outcome)
	}
	if bo.grid && state.ViewMode != app.ViewModeGrid {
		state, outcome = board.Handle(ctx, state, app.ToggleViewMode{})
		notices = collectNotice(notices, outcome)
	}
	view, err := board.View(ctx, state)
	if err != nil {
		return app.BoardView{}, fmt.Errorf("build board view: %w", err)
	}
	view.Notices = append(notices, view.Notices...)
	return view, nil
}

func collectNotice(notices []app.Notice, outcome app.Outcome) []app.Notice {
	if outcome.Notice == nil {
		return notices
	}
	return append(notices, *outcome.Notice)
}

// commandRuntime is the opened store, config, and logger of one command run.
type commandRuntime struct {
	cfg    config.Config
	paths  platform.Paths
	logger *runtimeLogger
	repo   *sqlite.Repository
}

func (o *globalOptions) paths() (platform.Paths, error) {
	return platform.Default(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// open resolves config and paths, starts the runtime logger, and opens the database.
func (o *globalOptions) open(cmd *cobra.Command, command string) (*commandRuntime, error) {
	paths, err := o.paths()
	if err != nil {
		return nil, err
	}

	configPath := strings.TrimSpace(o.configPath)
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("CONNBOARD_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(o.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("CONNBOARD_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(cmd.ErrOrStderr(), o.devMode, cfg.Logging, paths, nowFunc)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", o.appName, "dev_mode", o.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	return &commandRuntime{cfg: cfg, paths: paths, logger: logger, repo: repo}, nil
}

// board wires the service, status-icon templates, and preference store into a controller.
func (rt *commandRuntime) board(ctx context.Context) (*app.Board, error) {
	system, err := app.LoadSystemActivityTypes(ctx, rt.repo)
	if err != nil {
		rt.logger.Error("system activity types missing", "err", err)
		return nil, fmt.Errorf("load system activity types: %w", err)
	}
	iconsSrc, err := rt.templateSource("status_icons", rt.cfg.Templates.StatusIcons)
	if err != nil {
		return nil, err
	}
	legendSrc, err := rt.templateSource("status_legend", rt.cfg.Templates.StatusLegend)
	if err != nil {
		return nil, err
	}
	icons, err := statusicons.New(iconsSrc, legendSrc)
	if err != nil {
		return nil, fmt.Errorf("load status icon templates: %w", err)
	}
	svc := app.NewService(rt.repo, rt.repo, nowFunc, app.ServiceConfig{SystemActivityTypes: system})
	boardCfg := rt.cfg.ToBoardConfig()
	rt.logger.Debug("board controller initialized", "max_cards_per_column", boardCfg.MaxCardsPerColumn, "default_sort", boardCfg.DefaultSort)
	return app.NewBoard(svc, rt.repo, icons, rt.logger.Console(), boardCfg), nil
}

// templateSource prefers the inline config value, then <template_dir>/<name>.tmpl.
// Blank means the built-in template.
func (rt *commandRuntime) templateSource(name, inline string) (string, error) {
	if strings.TrimSpace(inline) != "" {
		return inline, nil
	}
	src, ok, err := rt.paths.ReadTemplate(name)
	if err != nil {
		return "", err
	}
	if ok {
		rt.logger.Debug("template override loaded", "template", name, "path", rt.paths.TemplateFile(name))
	}
	return src, nil
}

func (rt *commandRuntime) close() {
	if err := rt.repo.Close(); err != nil {
		rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
	}
	_ = rt.logger.Close()
}

// parseBoolEnv reads a boolean env var; ok is false when unset or unparsable.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ", ")
}
