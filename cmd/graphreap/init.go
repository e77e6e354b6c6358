package main

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

//go:embed templates/*.yaml
var templates embed.FS

func initCmd() *cobra.Command {
	var projectName string
	var template string
	var dsn string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new graphreap project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName, template, dsn)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&template, "template", "imaging", "Graph spec template name")
	cmd.Flags().StringVar(&dsn, "dsn", "sqlite://graphreap.db", "Database DSN")
	return cmd
}

func runInit(projectName, template, dsn string) error {
	specPath := "graph.yaml"
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if _, err := os.Stat(specPath); err == nil {
		return fmt.Errorf("%s already exists", specPath)
	}

	contents, err := templates.ReadFile("templates/" + template + ".yaml")
	if err != nil {
		return fmt.Errorf("reading template %s: %w", template, err)
	}

	configContents := fmt.Sprintf("project: %s\nversion: 1\n\ndatabase:\n  dsn: %s\n\nspec: %s\n\nlog:\n  level: info\n  format: text\n\ndelete:\n  concurrency: 4\n", projectName, dsn, specPath)
	if err := os.WriteFile(configPath, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	if err := os.WriteFile(specPath, contents, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", specPath, err)
	}

	return nil
}
