package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"graphreap/internal/hierarchy"
)

func hierarchyCmd() *cobra.Command {
	var root string
	var ids []int64
	var owner, group int64
	var count string
	cmd := &cobra.Command{
		Use:   "hierarchy",
		Short: "Print project or dataset trees as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := hierarchy.Options{}
			if cmd.Flags().Changed("owner") {
				opts.Owner = &owner
			}
			if cmd.Flags().Changed("group") {
				opts.Group = &group
			}
			return runHierarchy(cmd, root, ids, opts, count)
		},
	}
	cmd.Flags().StringVar(&root, "root", "Project", "Project or Dataset")
	cmd.Flags().Int64SliceVar(&ids, "id", nil, "Root ids")
	cmd.Flags().Int64Var(&owner, "owner", 0, "Select roots by owner when no ids are given")
	cmd.Flags().Int64Var(&group, "group", 0, "Select roots by group when no ids are given")
	cmd.Flags().StringVar(&count, "count", "", "Instead of trees, count this child type per root id")
	return cmd
}

func runHierarchy(cmd *cobra.Command, rootName string, ids []int64, opts hierarchy.Options, count string) error {
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

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	loader := hierarchy.NewLoader(p.registry, tx, p.logger)

	var payload any
	if count != "" {
		payload, err = loader.CollectionCount(ctx, rootName, count, ids)
	} else {
		var root hierarchy.Root
		if root, err = hierarchy.ParseRoot(rootName); err != nil {
			return err
		}
		payload, err = loader.LoadContainerHierarchy(ctx, root, ids, opts)
	}
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}
