package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath = "graphreap.yaml"

func main() {
	root := &cobra.Command{
		Use:          "graphreap",
		Short:        "Cascading deletes over a declared object graph",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Project config file")
	root.AddCommand(initCmd())
	root.AddCommand(deleteCmd())
	root.AddCommand(planCmd())
	root.AddCommand(schemaCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(hierarchyCmd())
	root.AddCommand(sqlCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
