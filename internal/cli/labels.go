package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teilomillet/docbot"
	"github.com/teilomillet/docbot/pagelabel"
)

var (
	labelsResolve    string
	labelsOffset     int
	labelsAutoOffset bool
)

var labelsCmd = &cobra.Command{
	Use:   "labels <pdf>",
	Short: "Show the page labels printed in a PDF",
	Long: `Labels reads a PDF without ingesting it and prints, for every physical page,
the label printed at its foot or its position when no label is printed.
With --resolve it prints the physical page a label refers to instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pages, err := docbot.PageLabels(args[0])
		if err != nil {
			return err
		}
		if labelsResolve == "" {
			printPages(cmd.OutOrStdout(), pages)
			return nil
		}

		opt := pagelabel.WithOffset(labelsOffset)
		if labelsAutoOffset {
			opt = pagelabel.WithDetectedOffset()
		}
		mapper := pagelabel.NewMapper(pages, opt)
		physical, ok := mapper.Resolve(labelsResolve)
		if !ok {
			return fmt.Errorf("page %q is not in %s (%d pages, offset %d)", labelsResolve, args[0], mapper.Len(), mapper.Offset())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s %d\n",
			dimStyle.Render("page"), labelsResolve, dimStyle.Render("is physical page"), physical)
		return nil
	},
}

var pageImages bool

var pageCmd = &cobra.Command{
	Use:   "page <file> <label>",
	Short: "Cut a cited page out of an ingested PDF",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			return err
		}
		defer bot.Close()

		citer := bot.Citer
		if cmd.Flags().Changed("images") {
			citer = docbot.NewCiter(bot.Registry, bot.Renderer,
				docbot.WithFrontMatterOffset(bot.Config.Pages.FrontMatterOffset),
				docbot.WithAutoOffset(bot.Config.Pages.AutoOffset),
				docbot.WithPageImages(pageImages),
			)
		}
		citations := citer.Cite(ctx, []docbot.Source{{File: args[0], Page: args[1]}})
		if len(citations) == 0 || citations[0].PagePath == "" {
			return fmt.Errorf("could not locate page %s of %s", args[1], args[0])
		}
		c := citations[0]
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n%s %s\n", dimStyle.Render("physical page:"), c.Physical, dimStyle.Render("page:"), c.PagePath)
		for _, img := range c.Images {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", dimStyle.Render("image:"), img)
		}
		return nil
	},
}

func init() {
	labelsCmd.Flags().StringVar(&labelsResolve, "resolve", "", "Print the physical page of this label")
	labelsCmd.Flags().IntVar(&labelsOffset, "offset", 0, "Unnumbered pages before page 1, used for labels not found in the file")
	labelsCmd.Flags().BoolVar(&labelsAutoOffset, "auto-offset", false, "Derive the offset from the labels found in the file")

	pageCmd.Flags().BoolVar(&pageImages, "images", true, "Also extract the images embedded in the page")

	rootCmd.AddCommand(labelsCmd, pageCmd)
}
