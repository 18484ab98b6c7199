// Package cli implements hubctl, the operator command line.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/sizang-hub/sizang-hub/internal/community"
	"github.com/sizang-hub/sizang-hub/internal/platform/db"
	"github.com/sizang-hub/sizang-hub/jobs"
)

// Options carries connection settings and test seams.
type Options struct {
	RedisAddr string
	PGDSN     string
	// NewJobs overrides how the jobs helper is built.
	NewJobs func(redisAddr string) *JobsCLI
	// Migrate overrides the migration runner.
	Migrate func(ctx context.Context, dsn string) error
}

// NewRootCmd assembles the command tree.
func NewRootCmd(opts Options) *cobra.Command {
	if opts.NewJobs == nil {
		opts.NewJobs = func(addr string) *JobsCLI {
			return NewJobsCLI(asynq.RedisClientOpt{Addr: addr})
		}
	}
	if opts.Migrate == nil {
		opts.Migrate = migrate
	}
	root := &cobra.Command{
		Use:           "hubctl",
		Short:         "Operate the Sizang community hub",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.RedisAddr, "redis-addr", opts.RedisAddr, "Redis address used by the job queue")
	root.PersistentFlags().StringVar(&opts.PGDSN, "pg-dsn", opts.PGDSN, "Postgres connection string")

	root.AddCommand(jobsCmd(&opts), announceCmd(&opts), migrateCmd(&opts), communityCmd())
	return root
}

func jobsCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	trigger := &cobra.Command{
		Use:   "trigger <task-type>",
		Short: "Enqueue a maintenance job, e.g. " + jobs.TaskCleanup,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := opts.NewJobs(opts.RedisAddr)
			defer cli.Close()
			info, err := cli.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			cmd.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := opts.NewJobs(opts.RedisAddr)
			defer cli.Close()
			queues, err := cli.InspectQueues(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
			for _, q := range queues {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", q.Queue, q.Pending, q.Active, q.Scheduled, q.Retry, q.Archived)
			}
			return tw.Flush()
		},
	}

	var (
		queue string
		size  int
	)
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := opts.NewJobs(opts.RedisAddr)
			defer cli.Close()
			tasks, err := cli.ListScheduled(cmd.Context(), queue, size)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				cmd.Printf("%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
			}
			return nil
		},
	}
	scheduled.Flags().StringVar(&queue, "queue", jobs.QueueDefault, "Queue to list")
	scheduled.Flags().IntVar(&size, "size", 10, "Maximum tasks to list")

	cmd.AddCommand(trigger, stats, scheduled)
	return cmd
}

func announceCmd(opts *Options) *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "announce <message>",
		Short: "Send a system notification to every member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli := opts.NewJobs(opts.RedisAddr)
			defer cli.Close()
			info, err := cli.Announce(cmd.Context(), actorID, args[0])
			if err != nil {
				return err
			}
			cmd.Printf("announcement queued as %s\n", info.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "Admin user ID recorded as the sender")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func migrateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Migrate(cmd.Context(), opts.PGDSN); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}

func migrate(ctx context.Context, dsn string) error {
	pool, err := db.New(ctx, dsn, db.Options{MaxConns: 2})
	if err != nil {
		return err
	}
	defer pool.Close()
	return db.Migrate(ctx, pool, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func communityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "community",
		Short: "Work with community language and category files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Check a community file; without a file the built-in defaults are checked",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			f, err := community.LoadFile(path)
			if err != nil {
				return err
			}
			cmd.Printf("ok: %d languages, %d categories\n", len(f.Languages), len(f.Categories))
			return nil
		},
	})
	return cmd
}
