package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the sample imaging tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := db.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema ready.")
			return nil
		},
	}
}
