package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arloliu/taskchain/source"
	"github.com/arloliu/taskchain/types"
)

type respondOptions struct {
	subject   string
	tasksFile string
	usersFile string
}

func respondCmd(flags *globalFlags) *cobra.Command {
	opts := &respondOptions{}

	cmd := &cobra.Command{
		Use:   "respond",
		Short: "Serve tasks from a JSON file as a task service",
		Long: `Serve an in-memory task service on NATS until interrupted.

The tasks file holds a JSON array of tasks; the optional users file a JSON
array of users, served on <subject>.users.

Examples:
  taskchain respond --tasks tasks.json
  taskchain respond --tasks tasks.json --users users.json --subject planning.tasks`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRespond(cmd.Context(), flags, opts)
		},
	}

	cmd.Flags().StringVar(&opts.subject, "subject", "", "query subject (default from config)")
	cmd.Flags().StringVar(&opts.tasksFile, "tasks", "", "JSON file with the tasks to serve")
	cmd.Flags().StringVar(&opts.usersFile, "users", "", "JSON file with the users to serve")
	_ = cmd.MarkFlagRequired("tasks")

	return cmd
}

func runRespond(ctx context.Context, flags *globalFlags, opts *respondOptions) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	if opts.subject == "" {
		opts.subject = cfg.QuerySubject
	}

	logger, err := flags.logger()
	if err != nil {
		return err
	}

	var tasks []types.TaskData
	if err := readJSON(opts.tasksFile, &tasks); err != nil {
		return err
	}

	respOpts := []source.ResponderOption{source.WithResponderLogger(logger)}
	if opts.usersFile != "" {
		var users []types.UserData
		if err := readJSON(opts.usersFile, &users); err != nil {
			return err
		}
		respOpts = append(respOpts, source.WithUsers(source.NewStaticUsers(users)))
	}

	nc, err := flags.connect()
	if err != nil {
		return err
	}
	defer nc.Close()

	responder := source.NewResponder(nc, opts.subject, source.NewStatic(tasks), respOpts...)
	if err := responder.Start(); err != nil {
		return err
	}

	logger.Info("serving tasks", "subject", opts.subject, "tasks", len(tasks))
	<-ctx.Done()

	return responder.Stop()
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return nil
}
