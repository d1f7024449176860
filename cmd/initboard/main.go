package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/evanschultz/initboard/internal/adapters/remote"
	"github.com/evanschultz/initboard/internal/adapters/server/common"
	"github.com/evanschultz/initboard/internal/adapters/storage/rediscache"
	"github.com/evanschultz/initboard/internal/adapters/storage/sqlite"
	"github.com/evanschultz/initboard/internal/app"
	"github.com/evanschultz/initboard/internal/config"
	"github.com/evanschultz/initboard/internal/domain"
	"github.com/evanschultz/initboard/internal/platform"
	"github.com/evanschultz/initboard/internal/tui"
)

const appName = "initboard"

// version stores a package-level helper value.
var version = "dev"

// program represents program data used by this package.
type program interface {
	Run() (tea.Model, error)
}

// programFactory stores a package-level helper value.
var programFactory = func(m tea.Model) program {
	return tea.NewProgram(m)
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes args against it.
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
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// rootFlags holds persistent flags shared by every command.
type rootFlags struct {
	configPath string
	dbPath     string
	devMode    bool
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   appName,
		Short: "Initiative task board with drag-and-drop reordering",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBoard(cmd, flags)
		},
	}
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv(platform.EnvDevMode); ok {
		defaultDevMode = envDev
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().BoolVar(&flags.devMode, "dev", defaultDevMode, "use dev mode paths and the dev log file")

	root.AddCommand(
		newServeCommand(flags),
		newTasksCommand(flags),
		newMembersCommand(flags),
		newInitiativesCommand(flags),
		newPathsCommand(flags),
	)
	return root
}

// runtimeEnv is the resolved configuration for one command invocation.
type runtimeEnv struct {
	paths      platform.Paths
	configPath string
	cfg        config.Config
	logger     *runtimeLogger
}

// resolve loads paths, config, and logging. console controls whether runtime logs
// reach stderr.
func (f *rootFlags) resolve(cmd *cobra.Command, console bool) (*runtimeEnv, error) {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: appName,
		DevMode: f.devMode,
	})
	if err != nil {
		return nil, err
	}
	paths, dbFromEnv := platform.WithEnvOverrides(paths, os.Getenv)

	configPath := strings.TrimSpace(f.configPath)
	if configPath == "" {
		configPath = paths.ConfigPath
	}
	dbPath := strings.TrimSpace(f.dbPath)
	dbOverridden := dbPath != "" || dbFromEnv
	if dbPath == "" {
		dbPath = paths.DBPath
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	if strings.TrimSpace(cfg.Logging.DevFile.Dir) == "" {
		cfg.Logging.DevFile.Dir = paths.LogDir
	}
	logger, err := newRuntimeLogger(cmd.ErrOrStderr(), appName, f.devMode, cfg.Logging, time.Now)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.SetConsoleEnabled(console)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return &runtimeEnv{
		paths:      paths,
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// close releases the log sinks.
func (e *runtimeEnv) close(stderr io.Writer) {
	if err := e.logger.Close(); err != nil && e.logger.shouldLogToSink(e.logger.consoleSink) {
		_, _ = fmt.Fprintf(stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// openService opens the sqlite repository, fronted by the redis cache when one is
// configured, and builds the application service over it.
func (e *runtimeEnv) openService(ctx context.Context) (*app.Service, func(), error) {
	e.logger.Info("opening sqlite repository", "db_path", e.cfg.Database.Path)
	repo, err := sqlite.Open(e.cfg.Database.Path)
	if err != nil {
		e.logger.Error("sqlite open failed", "db_path", e.cfg.Database.Path, "err", err)
		return nil, nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	closers := []func() error{repo.Close}
	var base app.Repository = repo

	if addr := strings.TrimSpace(e.cfg.Cache.RedisAddr); addr != "" {
		ttl, err := e.cfg.Cache.TTLDuration()
		if err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		client, err := rediscache.Connect(ctx, addr)
		if err != nil {
			e.logger.Warn("redis cache unavailable, continuing without it", "addr", addr, "err", err)
		} else {
			e.logger.Info("redis task cache enabled", "addr", addr, "ttl", ttl)
			base = rediscache.New(repo, client, ttl, rediscache.WithLogger(e.logger.Component("cache")))
			closers = append([]func() error{client.Close}, closers...)
		}
	}

	svc := app.NewService(base, uuid.NewString, nil, app.ServiceConfig{
		Logger: e.logger.Component("app"),
	})
	closeAll := func() {
		for _, closeFn := range closers {
			if err := closeFn(); err != nil {
				e.logger.Warn("close failed", "err", err)
			}
		}
	}
	return svc, closeAll, nil
}

// initiative resolves the configured board, creating a default one owned by the
// local user on first run.
func (e *runtimeEnv) initiative(ctx context.Context, svc *app.Service) (domain.Initiative, error) {
	if id := strings.TrimSpace(e.cfg.Board.InitiativeID); id != "" {
		return svc.GetInitiative(ctx, id)
	}
	return svc.EnsureDefaultInitiative(ctx, e.cfg.Identity.UserID)
}

func (e *runtimeEnv) columnLabels() map[domain.Status]string {
	labels := make(map[domain.Status]string, len(domain.ColumnOrder))
	for _, status := range domain.ColumnOrder {
		labels[status] = e.cfg.Board.ColumnLabel(string(status))
	}
	return labels
}

// runBoard starts the interactive board against the local database or a remote server.
func runBoard(cmd *cobra.Command, flags *rootFlags) error {
	env, err := flags.resolve(cmd, false)
	if err != nil {
		return err
	}
	defer env.close(cmd.ErrOrStderr())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var (
		src        tui.Source
		initiative domain.Initiative
		feed       <-chan struct{}
	)
	if baseURL := strings.TrimSpace(env.cfg.Remote.BaseURL); baseURL != "" {
		env.logger.Info("command flow start", "command", "tui", "source", "remote", "base_url", baseURL)
		client, err := remote.New(remote.Config{
			BaseURL:      baseURL,
			APIEndpoint:  env.cfg.Server.APIEndpoint,
			FeedEndpoint: env.cfg.Server.FeedEndpoint,
			Logger:       env.logger.Component("remote"),
		})
		if err != nil {
			return err
		}
		initiative, err = remoteInitiative(ctx, client, env.cfg.Board.InitiativeID)
		if err != nil {
			return err
		}
		feed, err = client.Watch(ctx, initiative.ID)
		if err != nil {
			env.logger.Warn("change feed unavailable, live refresh disabled", "err", err)
			feed = nil
		}
		src = client
	} else {
		env.logger.Info("command flow start", "command", "tui", "source", "local")
		svc, closeSvc, err := env.openService(ctx)
		if err != nil {
			return err
		}
		defer closeSvc()
		initiative, err = env.initiative(ctx, svc)
		if err != nil {
			return fmt.Errorf("resolve initiative: %w", err)
		}
		src = common.NewAppServiceAdapter(svc)
	}

	m := tui.NewModel(
		src,
		tui.WithUserID(env.cfg.Identity.UserID),
		tui.WithInitiative(initiative),
		tui.WithColumnLabels(env.columnLabels()),
		tui.WithShowDescription(env.cfg.Board.ShowDescription),
		tui.WithKeyConfig(tui.KeyConfig{
			Reload:        env.cfg.Keys.Reload,
			CopyID:        env.cfg.Keys.CopyID,
			ToggleDetails: env.cfg.Keys.ToggleDetails,
		}),
		tui.WithLogger(env.logger.Component("tui")),
		tui.WithChangeFeed(feed),
	)
	env.logger.Info("starting tui program loop", "initiative_id", initiative.ID)
	if _, err := programFactory(m).Run(); err != nil {
		env.logger.Error("tui program terminated with error", "err", err)
		return fmt.Errorf("run tui program: %w", err)
	}
	env.logger.Info("command flow complete", "command", "tui")
	return nil
}

// remoteInitiative picks the configured initiative from the server, or its first one.
func remoteInitiative(ctx context.Context, client *remote.Client, id string) (domain.Initiative, error) {
	initiatives, err := client.ListInitiatives(ctx)
	if err != nil {
		return domain.Initiative{}, fmt.Errorf("list remote initiatives: %w", err)
	}
	id = strings.TrimSpace(id)
	for _, initiative := range initiatives {
		if id == "" || initiative.ID == id {
			return initiative, nil
		}
	}
	if id != "" {
		return domain.Initiative{}, fmt.Errorf("remote initiative %q: %w", id, common.ErrNotFound)
	}
	return domain.Initiative{}, errors.New("remote server has no initiatives")
}

// parseBoolEnv parses a boolean environment variable when present.
func parseBoolEnv(name string) (bool, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok {
		return false, false
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, false
	}
	return value, true
}
