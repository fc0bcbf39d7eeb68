// Package cli wires the quarry engine into a small cobra command tree:
// schema inspection, fact assertion, find/where queries, and pulls.
// Queries and pull patterns are structured YAML documents; surface
// syntax parsing is not part of the engine.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DBPath     string
	SchemaPath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the quarry CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Quarry - an embedded EAV knowledge base",
		Long:  "Query an append-only entity-attribute-value fact store with datalog-style find/where queries and recursive pulls.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "quarry.db", "path to the fact store")
	cmd.PersistentFlags().StringVar(&opts.SchemaPath, "schema", "schema.yaml", "path to the schema document")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewAssertCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewPullCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
