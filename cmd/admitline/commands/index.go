package commands

import (
	"github.com/spf13/cobra"

	"github.com/admitline/admitline/pkg/rag"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the retrieval index and print statistics",
	Long: `Builds the retrieval index from the configured document source and
prints what was indexed. Use it to validate documents before deploying;
malformed JSON and unreadable files are reported as warnings.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, err := currentContext()
		if err != nil {
			return err
		}
		source, err := docsSource(ctx)
		if err != nil {
			return err
		}
		idx, err := rag.BuildIndex(cmd.Context(), source, rag.IndexConfig{})
		if err != nil {
			return err
		}
		return output(map[string]any{
			"documents": idx.Sources(),
			"chunks":    idx.Len(),
		})
	},
}
