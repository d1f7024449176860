package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evanschultz/initboard/internal/adapters/server"
	"github.com/evanschultz/initboard/internal/adapters/server/changefeed"
	"github.com/evanschultz/initboard/internal/adapters/server/common"
	"github.com/evanschultz/initboard/internal/app"
	"github.com/evanschultz/initboard/internal/board"
	"github.com/evanschultz/initboard/internal/domain"
)

// errReadOnly reports a move attempted by a user without edit rights.
var errReadOnly = errors.New("read only: you cannot move tasks on this board")

// withService resolves config, opens the local service, and hands fn the active initiative.
func withService(cmd *cobra.Command, flags *rootFlags, fn func(ctx context.Context, env *runtimeEnv, svc *app.Service, initiative domain.Initiative) error) error {
	env, err := flags.resolve(cmd, true)
	if err != nil {
		return err
	}
	defer env.close(cmd.ErrOrStderr())

	ctx := cmd.Context()
	svc, closeSvc, err := env.openService(ctx)
	if err != nil {
		return err
	}
	defer closeSvc()

	initiative, err := env.initiative(ctx, svc)
	if err != nil {
		return fmt.Errorf("resolve initiative: %w", err)
	}
	return fn(ctx, env, svc, initiative)
}

func newServeCommand(flags *rootFlags) *cobra.Command {
	var bind string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board over HTTP, MCP, and a websocket change feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, flags, func(ctx context.Context, env *runtimeEnv, svc *app.Service, initiative domain.Initiative) error {
				hub := changefeed.NewHub(changefeed.WithLogger(env.logger.Component("feed")))
				svc.SetNotifier(hub)

				cfg := server.Config{
					HTTPBind:      env.cfg.Server.HTTPBind,
					APIEndpoint:   env.cfg.Server.APIEndpoint,
					MCPEndpoint:   env.cfg.Server.MCPEndpoint,
					FeedEndpoint:  env.cfg.Server.FeedEndpoint,
					ServerName:    appName,
					ServerVersion: version,
				}
				if strings.TrimSpace(bind) != "" {
					cfg.HTTPBind = bind
				}

				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				env.logger.Info("command flow start", "command", "serve", "http_bind", cfg.HTTPBind, "initiative_id", initiative.ID)
				err := server.Run(ctx, cfg, server.Dependencies{
					Boards: common.NewAppServiceAdapter(svc),
					Feed:   hub,
					Logger: env.logger.Component("server"),
				})
				if err != nil {
					env.logger.Error("command flow failed", "command", "serve", "err", err)
					return fmt.Errorf("run serve command: %w", err)
				}
				env.logger.Info("command flow complete", "command", "serve")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&bind, "http", "", "HTTP bind address (overrides server.http_bind)")
	return cmd
}

func newTasksCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List, add, and move tasks on the board",
	}
	cmd.AddCommand(newTasksListCommand(flags), newTasksAddCommand(flags), newTasksMoveCommand(flags))
	return cmd
}

func newTasksListCommand(flags *rootFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the board in column order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, flags, func(ctx context.Context, env *runtimeEnv, svc *app.Service, initiative domain.Initiative) error {
				tasks, err := svc.ListTasks(ctx, initiative.ID)
				if err != nil {
					return err
				}
				out := common.BuildBoard(initiative, tasks)
				for i := range out.Columns {
					if label := env.cfg.Board.ColumnLabel(string(out.Columns[i].Status)); label != "" {
						out.Columns[i].Label = label
					}
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(out)
				}
				w := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(w, "%s\n", initiative.Name)
				for _, column := range out.Columns {
					_, _ = fmt.Fprintf(w, "\n%s (%d)\n", column.Label, len(column.Tasks))
					for i, task := range column.Tasks {
						_, _ = fmt.Fprintf(w, "  %d. %s  %s\n", i, task.ID, task.Title)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the board as JSON")
	return cmd
}

func newTasksAddCommand(flags *rootFlags) *cobra.Command {
	var (
		status      string
		description string
		assignee    string
	)
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Append a task to the end of a column",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := domain.ParseStatus(status)
			if err != nil {
				return err
			}
			return withService(cmd, flags, func(ctx context.Context, env *runtimeEnv, svc *app.Service, initiative domain.Initiative) error {
				task, err := svc.CreateTask(ctx, app.CreateTaskInput{
					InitiativeID: initiative.ID,
					Title:        args[0],
					Description:  description,
					AssigneeID:   assignee,
					Status:       parsed,
				})
				if err != nil {
					return err
				}
				env.logger.Info("task created", "task_id", task.ID, "status", task.Status)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), task.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(domain.StatusTodo), "column: todo, progress, or done")
	cmd.Flags().StringVar(&description, "description", "", "markdown description")
	cmd.Flags().StringVar(&assignee, "assignee", "", "assignee team member id")
	return cmd
}

func newTasksMoveCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "move <task-id> <status> <index>",
		Short: "Move a task to index within a column",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := domain.ParseStatus(args[1])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("parse index %q: %w", args[2], err)
			}
			return withService(cmd, flags, func(ctx context.Context, env *runtimeEnv, svc *app.Service, initiative domain.Initiative) error {
				access, err := svc.Access(ctx, initiative.ID, env.cfg.Identity.UserID)
				if err != nil {
					return err
				}
				if !access.CanEdit() {
					return errReadOnly
				}
				tasks, err := svc.ListTasks(ctx, initiative.ID)
				if err != nil {
					return err
				}

				store := board.NewStore(tasks)
				pipeline := board.NewPipeline(store,
					board.PersistFunc(func(ctx context.Context, tasks []domain.Task) error {
						return svc.BulkUpdateTasks(ctx, initiative.ID, tasks)
					}),
					board.WithNotifier(board.NotifierFunc(func(n board.Notice) {
						if n.Level == board.NoticeError {
							env.logger.Error(n.Message, "task_id", n.TaskID, "err", n.Err)
							return
						}
						env.logger.Info(n.Message, "task_id", n.TaskID)
					})),
					board.WithPipelineLogger(env.logger.Component("board")),
				)
				if err := pipeline.Move(ctx, args[0], status, index); err != nil {
					return err
				}
				landed, at, _ := board.Locate(store.Tasks(), args[0])
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "moved %s to %s[%d]\n", args[0], landed, at)
				return nil
			})
		},
	}
}

func newMembersCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Manage the initiative team",
	}

	var id, avatar string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add or update a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, flags, func(ctx context.Context, env *runtimeEnv, svc *app.Service, initiative domain.Initiative) error {
				member, err := svc.AddTeamMember(ctx, app.AddTeamMemberInput{
					ID:           id,
					InitiativeID: initiative.ID,
					Name:         args[0],
					AvatarURL:    avatar,
				})
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), member.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&id, "id", "", "member id (generated when empty)")
	add.Flags().StringVar(&avatar, "avatar", "", "avatar url")

	list := &cobra.Command{
		Use:   "list",
		Short: "List team members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, flags, func(ctx context.Context, _ *runtimeEnv, svc *app.Service, initiative domain.Initiative) error {
				members, err := svc.ListTeamMembers(ctx, initiative.ID)
				if err != nil {
					return err
				}
				for _, member := range members {
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", member.ID, member.Name)
				}
				return nil
			})
		},
	}
	cmd.AddCommand(add, list)
	return cmd
}

func newInitiativesCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initiatives",
		Short: "List and create initiatives",
	}
	list := &cobra.Command{
		Use:   "list",
		Short: "List initiatives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, flags, func(ctx context.Context, _ *runtimeEnv, svc *app.Service, active domain.Initiative) error {
				initiatives, err := svc.ListInitiatives(ctx)
				if err != nil {
					return err
				}
				for _, initiative := range initiatives {
					marker := " "
					if initiative.ID == active.ID {
						marker = "*"
					}
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s\n", marker, initiative.ID, initiative.Name)
				}
				return nil
			})
		},
	}
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create an initiative owned by the configured user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, flags, func(ctx context.Context, env *runtimeEnv, svc *app.Service, _ domain.Initiative) error {
				initiative, err := svc.CreateInitiative(ctx, args[0], env.cfg.Identity.UserID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), initiative.ID)
				return nil
			})
		},
	}
	cmd.AddCommand(list, add)
	return cmd
}

func newPathsCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and database paths",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := flags.resolve(cmd, false)
			if err != nil {
				return err
			}
			defer env.close(cmd.ErrOrStderr())
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "app: %s\n", appName)
			_, _ = fmt.Fprintf(w, "dev_mode: %t\n", flags.devMode)
			_, _ = fmt.Fprintf(w, "config: %s\n", env.configPath)
			_, _ = fmt.Fprintf(w, "data_dir: %s\n", env.paths.DataDir)
			_, _ = fmt.Fprintf(w, "db: %s\n", env.cfg.Database.Path)
			if devPath := env.logger.DevLogPath(); devPath != "" {
				_, _ = fmt.Fprintf(w, "dev_log: %s\n", devPath)
			}
			_, _ = fmt.Fprintf(w, "log_dir: %s\n", env.paths.LogDir)
			return nil
		},
	}
}
