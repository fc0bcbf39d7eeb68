package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrydb/quarry/pkg/pull"
	"github.com/quarrydb/quarry/pkg/quarry"
	"github.com/quarrydb/quarry/pkg/schema"
)

// NewSchemaCommand lists the attributes of the schema document.
func NewSchemaCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "List schema attributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := schema.LoadFile(opts.SchemaPath)
			if err != nil {
				return err
			}
			for _, a := range reg.Attributes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", a.ID, a.Ident, a.Type, a.Cardinality)
			}
			return nil
		},
	}
}

// NewAssertCommand appends a batch of facts from a YAML file.
func NewAssertCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "assert",
		Short: "Assert facts from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			facts, err := LoadFactsFile(file, db.Schema())
			if err != nil {
				return err
			}
			tx, err := db.Store().Assert(cmd.Context(), db.Schema(), facts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "asserted %d facts in tx %d\n", len(facts), tx)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "facts file (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

// NewQueryCommand compiles and runs a find/where query document.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a find/where query from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			ast, inputs, err := LoadQueryFile(file)
			if err != nil {
				return err
			}
			res, err := db.Query(cmd.Context(), ast, inputs)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), opts.Format, res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "query file (required)")
	cmd.MarkFlagRequired("file")
	return cmd
}

// NewPullCommand pulls a pattern around one entity.
func NewPullCommand(opts *RootOptions) *cobra.Command {
	var (
		file   string
		entity int64
		depth  int
	)

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Pull an entity's subgraph from a YAML pattern",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(opts)
			if err != nil {
				return err
			}
			defer db.Close()

			pattern, err := LoadPullFile(file)
			if err != nil {
				return err
			}
			m, err := db.Pull(cmd.Context(), entity, pattern, pull.Options{MaxDepth: depth})
			if err != nil {
				return err
			}
			return printMap(cmd.OutOrStdout(), opts.Format, m)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "pattern file (required)")
	cmd.Flags().Int64VarP(&entity, "entity", "e", 0, "entity id (required)")
	cmd.Flags().IntVar(&depth, "depth", 0, "max reference expansion depth (0 = unbounded)")
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("entity")
	return cmd
}

func openDB(opts *RootOptions) (*quarry.DB, error) {
	reg, err := schema.LoadFile(opts.SchemaPath)
	if err != nil {
		return nil, err
	}
	return quarry.Open(opts.DBPath, reg)
}
