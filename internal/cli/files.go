package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List ingested files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		bot, err := openBot(cmd.Context())
		if err != nil {
			return err
		}
		defer bot.Close()

		docs, err := bot.Ingest.ListIngested()
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No files ingested yet."))
			return nil
		}
		printIngested(cmd.OutOrStdout(), docs)
		return nil
	},
}

var filesDeleteCmd = &cobra.Command{
	Use:   "delete <file>...",
	Short: "Delete ingested files by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			return err
		}
		defer bot.Close()

		for _, name := range args {
			if err := bot.Ingest.DeleteFile(ctx, name); err != nil {
				return fmt.Errorf("failed to delete %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s\n", successStyle.Render("✓"), name)
		}
		return nil
	},
}

var purgeYes bool

var filesPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete every ingested file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !purgeYes {
			return fmt.Errorf("refusing to delete every file without --yes")
		}
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			return err
		}
		defer bot.Close()

		if err := bot.Ingest.DeleteAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("All files deleted."))
		return nil
	},
}

func init() {
	filesPurgeCmd.Flags().BoolVarP(&purgeYes, "yes", "y", false, "Confirm deletion")

	filesCmd.AddCommand(filesDeleteCmd, filesPurgeCmd)
	rootCmd.AddCommand(filesCmd)
}
