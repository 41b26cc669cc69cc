package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|dir|url>...",
	Short: "Ingest files into the knowledge base",
	Long: `Ingest parses each source, splits it into chunks and stores their embeddings.
Directories are walked recursively, skipping hidden entries. Ingesting a file
name again replaces its earlier version.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			return err
		}
		defer bot.Close()

		for _, source := range args {
			docs, err := bot.Ingest.IngestSource(ctx, source)
			if err != nil {
				return fmt.Errorf("failed to ingest %s: %w", source, err)
			}
			printIngested(cmd.OutOrStdout(), docs)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
