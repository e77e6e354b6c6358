package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"graphreap/internal/graph"
	"graphreap/internal/reap"
)

// requestFlags are shared by delete and plan.
type requestFlags struct {
	typ     string
	ids     []int64
	owner   int64
	group   int64
	since   string
	until   string
	exclude []string
}

func (f *requestFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.typ, "type", "", "Root type, e.g. Image")
	cmd.Flags().Int64SliceVar(&f.ids, "id", nil, "Root ids (repeatable or comma separated)")
	cmd.Flags().Int64Var(&f.owner, "owner", 0, "Only roots owned by this owner")
	cmd.Flags().Int64Var(&f.group, "group", 0, "Only roots in this group")
	cmd.Flags().StringVar(&f.since, "since", "", "Only roots created at or after this RFC3339 time")
	cmd.Flags().StringVar(&f.until, "until", "", "Only roots created before this RFC3339 time")
	cmd.Flags().StringSliceVar(&f.exclude, "exclude", nil, "Child types to leave in place")
}

func (f *requestFlags) request(cmd *cobra.Command) (reap.Request, error) {
	if strings.TrimSpace(f.typ) == "" {
		return reap.Request{}, fmt.Errorf("--type is required")
	}
	opts := graph.Options{Exclude: f.exclude}
	if cmd.Flags().Changed("owner") {
		opts.Owner = &f.owner
	}
	if cmd.Flags().Changed("group") {
		opts.Group = &f.group
	}
	var err error
	if opts.Since, err = parseTimeFlag("since", f.since); err != nil {
		return reap.Request{}, err
	}
	if opts.Until, err = parseTimeFlag("until", f.until); err != nil {
		return reap.Request{}, err
	}
	if len(f.ids) == 0 && opts.Owner == nil && opts.Group == nil && opts.Since == nil && opts.Until == nil {
		return reap.Request{}, fmt.Errorf("--id or a filter is required")
	}
	return reap.Request{Type: f.typ, IDs: f.ids, Options: opts}, nil
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("--%s must be RFC3339: %w", name, err)
	}
	return &t, nil
}

func deleteCmd() *cobra.Command {
	var flags requestFlags
	var dryRun bool
	var each bool
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete rows and everything they own",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(cmd)
			if err != nil {
				return err
			}
			if err := checkEach(req, dryRun, each); err != nil {
				return err
			}
			return runDelete(cmd, req, dryRun, each)
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Execute and roll back")
	cmd.Flags().BoolVar(&each, "each", false, "Delete every id in its own transaction")
	return cmd
}

func checkEach(req reap.Request, dryRun, each bool) error {
	if !each {
		return nil
	}
	if dryRun {
		return fmt.Errorf("--each and --dry-run cannot be combined")
	}
	if len(req.IDs) == 0 {
		return fmt.Errorf("--each requires --id")
	}
	return nil
}

func runDelete(cmd *cobra.Command, req reap.Request, dryRun, each bool) error {
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

	if each {
		reqs := make([]reap.Request, 0, len(req.IDs))
		for _, id := range req.IDs {
			reqs = append(reqs, reap.Request{Type: req.Type, IDs: []int64{id}, Options: req.Options})
		}
		results, err := svc.DeleteBatch(ctx, reqs)
		for _, res := range results {
			printResult(cmd.OutOrStdout(), res)
		}
		return err
	}

	run := svc.Delete
	if dryRun {
		run = svc.DryRun
	}
	res, err := run(ctx, req)
	printResult(cmd.OutOrStdout(), res)
	return err
}

func printResult(out io.Writer, res *reap.Result) {
	if res == nil {
		return
	}
	status := "rolled back"
	if res.Committed {
		status = "committed"
	}
	fmt.Fprintf(out, "%s %s [%s]: %s\n", res.Request.Type, formatIDs(res.Request.IDs), res.RequestID, status)
	if res.Report == nil {
		return
	}

	for _, r := range res.Report.Results {
		line := fmt.Sprintf("  #%d %-8s %-24s %-9s", r.Index, r.Kind, r.Table, r.State)
		switch {
		case r.ForeignID != nil:
			line += fmt.Sprintf(" id=%d", *r.ForeignID)
		case len(r.IDs) > 0:
			line += " ids=" + formatIDs(r.IDs)
		}
		if r.Affected > 0 {
			line += fmt.Sprintf(" affected=%d", r.Affected)
		}
		if r.Spawned > 0 {
			line += fmt.Sprintf(" spawned=%d", r.Spawned)
		}
		if r.Err != nil {
			line += " error=" + r.Err.Error()
		}
		fmt.Fprintln(out, line)
	}

	deleted := res.Report.Deleted()
	tables := make([]string, 0, len(deleted))
	for table := range deleted {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		fmt.Fprintf(out, "  deleted %d from %s\n", deleted[table], table)
	}
}
