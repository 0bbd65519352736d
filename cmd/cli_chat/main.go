package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"docs-chat/internal/client"
	"docs-chat/internal/conversation"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))
)

var (
	serverURL string
	docURL    string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "cli_chat",
	Short: "Ask questions about a Google Doc from the terminal",
	Long: `Interactive terminal client for the docs-chat proxy.

Connect a Google Docs link and ask questions answered only from that document.
Commands inside the session:
  /doc <url>   connect another document
  /reset       clear the conversation
  /quit        exit`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", envOr("DOCS_CHAT_SERVER", "http://localhost:8080"), "Proxy base URL")
	rootCmd.Flags().StringVar(&docURL, "doc", "", "Google Docs URL to connect at startup")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	c := client.New(serverURL, nil, conversation.NewState(), logger)
	out := cmd.OutOrStdout()
	reader := bufio.NewReader(cmd.InOrStdin())

	if docURL != "" {
		connectDocument(ctx, c, out, docURL)
	}

	for {
		if c.State().DocumentURL() == "" {
			fmt.Fprint(out, "Google Docs URL: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return nil
			}
			if line = strings.TrimSpace(line); line != "" {
				connectDocument(ctx, c, out, line)
			}
			continue
		}

		fmt.Fprint(out, promptStyle.Render("> "))
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/reset":
			c.State().Reset()
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		case strings.HasPrefix(line, "/doc "):
			connectDocument(ctx, c, out, strings.TrimSpace(strings.TrimPrefix(line, "/doc ")))
			continue
		}

		ask(ctx, c, out, line)
	}
}

func connectDocument(ctx context.Context, c *client.Client, out io.Writer, rawURL string) {
	fmt.Fprintln(out, "Connecting...")
	if err := c.ConnectDocument(ctx, rawURL); err != nil {
		fmt.Fprintln(out, errorStyle.Render(c.State().Snapshot().LastError))
		return
	}
	fmt.Fprintln(out, okStyle.Render("Document connected.")+" Ask anything about it.")
}

func ask(ctx context.Context, c *client.Client, out io.Writer, question string) {
	_ = c.SubmitQuestion(ctx, question, client.Callbacks{
		OnDelta: func(text string) {
			fmt.Fprint(out, answerStyle.Render(text))
		},
		OnDone: func() {
			fmt.Fprint(out, "\n\n")
		},
		OnError: func(message string) {
			fmt.Fprintf(out, "\n%s\n\n", errorStyle.Render(message))
		},
	})
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
