package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"graphreap/internal/reap"
)

func planCmd() *cobra.Command {
	var flags requestFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the delete plan without executing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			return runPlan(cmd, req)
		},
	}
	flags.bind(cmd)
	return cmd
}

func runPlan(cmd *cobra.Command, req reap.Request) error {
	ctx := context.Background()

	p, err := loadProject(os.Stderr)
	if err != nil {
		return err
	}
	db, err := openDB(ctx, p.cfg)
	if err != nil {
		return err
	}
	defer closeDB(ctx, db, p.logger)

	svc := reap.NewService(db, p.registry, p.cfg.Delete.Concurrency, p.logger)
	res, err := svc.Plan(ctx, req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d steps, %d appended by post-processing\n", res.Plan.Len(), res.Plan.Len()-res.Plan.OriginalSize())
	for _, step := range res.Plan.All() {
		marker := ""
		if step.BestEffort {
			marker = " (best effort)"
		}
		fmt.Fprintf(out, "  %s%s\n", step, marker)
	}
	return nil
}
