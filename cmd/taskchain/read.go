package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/taskchain/reader"
	"github.com/arloliu/taskchain/source"
	"github.com/arloliu/taskchain/types"
)

type readOptions struct {
	subject   string
	pageSize  int
	fromID    int64
	statuses  []string
	since     time.Duration
	readMode  string
	summaries bool
	asJSON    bool
	timeout   time.Duration
}

func readCmd(flags *globalFlags) *cobra.Command {
	opts := &readOptions{}

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read every matching task from the task service",
		Long: `Read tasks through the paginated reader and print them.

Examples:
  taskchain read --status Ready --status Reserved
  taskchain read --since 10m --json
  taskchain read --summaries --page-size 500`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			if opts.subject == "" {
				opts.subject = cfg.QuerySubject
			}
			if opts.pageSize == 0 {
				opts.pageSize = cfg.PageSize
			}

			logger, err := flags.logger()
			if err != nil {
				return err
			}

			nc, err := flags.connect()
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			r := reader.New(source.NewNATSQuerier(nc, opts.subject, 0), reader.WithLogger(logger))

			return runRead(ctx, r, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.subject, "subject", "", "query subject (default from config)")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "initial page size in owner rows (default from config)")
	cmd.Flags().Int64Var(&opts.fromID, "from", 0, "first task id")
	cmd.Flags().StringSliceVar(&opts.statuses, "status", nil, "task statuses to read (repeatable, default any)")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only tasks modified within this duration")
	cmd.Flags().StringVar(&opts.readMode, "read-mode", string(types.ReadModeDontRead), "input data read mode")
	cmd.Flags().BoolVar(&opts.summaries, "summaries", false, "read one summary row per task")
	cmd.Flags().BoolVarP(&opts.asJSON, "json", "j", false, "output as JSON")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", time.Minute, "timeout for the complete read")

	return cmd
}

func runRead(ctx context.Context, r *reader.Reader, opts *readOptions, out io.Writer) error {
	statuses := make([]types.Status, 0, len(opts.statuses))
	for _, s := range opts.statuses {
		statuses = append(statuses, types.Status(s))
	}

	mode := types.ReadMode(opts.readMode)
	if !mode.IsValid() {
		return fmt.Errorf("invalid --read-mode %q", opts.readMode)
	}

	var (
		tasks     []types.TaskData
		queryTime time.Time
	)
	if opts.summaries {
		summaries, err := r.ReadSummaries(ctx, types.TaskID(opts.fromID), statuses, opts.pageSize)
		if err != nil {
			return err
		}
		tasks = summaries
	} else {
		req := reader.ReadRequest{
			FromTaskID: types.TaskID(opts.fromID),
			Statuses:   statuses,
			PageSize:   opts.pageSize,
			ReadMode:   mode,
		}
		if opts.since > 0 {
			req.ModifiedSince = time.Now().Add(-opts.since).Truncate(time.Second)
		}

		res, err := r.ReadTasks(ctx, req)
		if err != nil {
			return err
		}
		tasks, queryTime = res.Tasks, res.QueryTime
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")

		return enc.Encode(reader.Result{QueryTime: queryTime, Tasks: tasks})
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tOWNERS\tNAME")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", t.TaskID, t.Status, t.Priority, len(t.PotentialOwners), t.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d tasks\n", len(tasks))

	return nil
}
