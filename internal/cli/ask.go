package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teilomillet/docbot"
)

var (
	askMode         string
	askFile         string
	askSystemPrompt string
)

func requestFromFlags(cmd *cobra.Command, message string, mode docbot.Mode) docbot.Request {
	req := docbot.Request{Message: message, Mode: mode, File: askFile}
	if cmd.Flags().Changed("system-prompt") {
		prompt := askSystemPrompt
		req.SystemPrompt = &prompt
	}
	return req
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question about the ingested files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := docbot.ParseMode(askMode)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			return err
		}
		defer bot.Close()

		resp, err := bot.Chat.Chat(ctx, requestFromFlags(cmd, strings.Join(args, " "), mode))
		if err != nil {
			return err
		}
		printResponse(cmd.OutOrStdout(), mode, resp)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <text>",
	Short: "List the passages most relevant to a text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			return err
		}
		defer bot.Close()

		resp, err := bot.Chat.Chat(ctx, requestFromFlags(cmd, strings.Join(args, " "), docbot.ModeSearch))
		if err != nil {
			return err
		}
		if len(resp.Sources) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("No matching passages."))
			return nil
		}
		printResponse(cmd.OutOrStdout(), docbot.ModeSearch, resp)
		return nil
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	Long: `Chat reads one message per line from standard input and keeps the
conversation as history for the next turns. Type /mode <query|search|chat>
to switch modes, /file <name> to restrict answers to one file, /file to lift
the restriction, /reset to clear the history and /quit to leave.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := docbot.ParseMode(askMode)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		bot, err := openBot(ctx)
		if err != nil {
			return err
		}
		defer bot.Close()

		return runChat(cmd, bot.Chat, mode, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func runChat(cmd *cobra.Command, chat *docbot.ChatService, mode docbot.Mode, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	var history [][2]string
	scanner := bufio.NewScanner(in)
	prompt := func() { fmt.Fprint(out, titleStyle.Render(string(mode)+" > ")) }

	prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/reset":
			history = nil
			fmt.Fprintln(out, dimStyle.Render("History cleared."))
		case strings.HasPrefix(line, "/mode"):
			m, err := docbot.ParseMode(strings.TrimSpace(strings.TrimPrefix(line, "/mode")))
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render(err.Error()))
			} else {
				mode = m
			}
		case strings.HasPrefix(line, "/file"):
			askFile = strings.TrimSpace(strings.TrimPrefix(line, "/file"))
			if askFile == "" {
				fmt.Fprintln(out, dimStyle.Render("Searching all files."))
			} else {
				fmt.Fprintln(out, dimStyle.Render("Searching "+askFile+" only."))
			}
		default:
			req := requestFromFlags(cmd, line, mode)
			req.History = history
			resp, err := chat.Chat(ctx, req)
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("error:"), err)
				break
			}
			printResponse(out, mode, resp)
			history = append(history, [2]string{line, resp.Text})
		}
		prompt()
	}
	return scanner.Err()
}

func init() {
	for _, c := range []*cobra.Command{askCmd, searchCmd, chatCmd} {
		c.Flags().StringVarP(&askFile, "file", "f", "", "Only use this ingested file")
	}
	for _, c := range []*cobra.Command{askCmd, chatCmd} {
		c.Flags().StringVarP(&askMode, "mode", "m", "query", "Chat mode (query, search, chat)")
		c.Flags().StringVar(&askSystemPrompt, "system-prompt", "", "Replace the mode's system prompt")
	}

	rootCmd.AddCommand(askCmd, searchCmd, chatCmd)
}
