package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mikeboe/querymind/pkg/chat"
	"github.com/mikeboe/querymind/pkg/clients"
	"github.com/mikeboe/querymind/pkg/config"
	"github.com/mikeboe/querymind/pkg/database"
	"github.com/spf13/cobra"
)

var (
	question string
	userID   string
	endpoint string
)

func main() {
	// Setup structured logging; stderr keeps answers on stdout clean.
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "querymind",
		Short: "Ask questions to a RAG endpoint from the terminal",
		Long:  `QueryMind forwards questions to a retrieval-augmented answer service and prints the answers with their sources. With --user and DATABASE_URL set, the conversation history is kept in Postgres.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if endpoint != "" {
				cfg.Rag.Endpoint = endpoint
			}

			asker, err := clients.NewAsker(ctx, cfg.Rag)
			if err != nil {
				return err
			}

			var store chat.MessageStore
			if userID != "" && cfg.PersistenceEnabled() {
				db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: 2})
				if err != nil {
					return fmt.Errorf("failed to connect to database: %w", err)
				}
				defer db.Close()
				if err := db.InitSchema(ctx); err != nil {
					return fmt.Errorf("failed to initialize schema: %w", err)
				}
				store = db
			}

			o := chat.NewOrchestrator(chat.Config{
				Asker:   asker,
				History: chat.NewHistory(store, userID, slog.Default()),
				Notify: func(n chat.Notice) {
					if n.Destructive {
						fmt.Fprintf(cmd.ErrOrStderr(), "! %s: %s\n", n.Title, n.Description)
					}
				},
			})
			if err := o.LoadHistory(ctx); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "! Could not load conversation history.")
			}

			// Non-Interactive Mode (Flag provided)
			if cmd.Flags().Changed("question") {
				if strings.TrimSpace(question) == "" {
					return fmt.Errorf("--question flag provided but empty")
				}
				return ask(ctx, o, question, cmd.OutOrStdout())
			}

			return repl(ctx, o, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	rootCmd.Flags().StringVarP(&question, "question", "q", "", "Ask a single question and exit")
	rootCmd.Flags().StringVarP(&userID, "user", "u", "", "Signed-in user id; enables persisted history when DATABASE_URL is set")
	rootCmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "Override RAG_ENDPOINT")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}

func ask(ctx context.Context, o *chat.Orchestrator, q string, out io.Writer) error {
	for event := range o.SubmitQueryStream(ctx, q) {
		switch event.Type {
		case chat.EventAssistantMessage:
			printMessage(out, event.Payload.(chat.Message))
		case chat.EventError:
			return fmt.Errorf("%v", event.Payload)
		}
	}
	return nil
}

func repl(ctx context.Context, o *chat.Orchestrator, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "Ask a question. Commands: /new, /history, /select <id>, /clear, /quit")

	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		line = strings.TrimSpace(line)

		switch {
		case line == "":
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/new":
			o.StartNewConversation()
			fmt.Fprintln(out, "Started a new conversation.")
		case line == "/history":
			printHistory(out, o)
		case strings.HasPrefix(line, "/select "):
			id := strings.TrimSpace(strings.TrimPrefix(line, "/select "))
			if !o.SelectConversation(id) {
				fmt.Fprintf(out, "No conversation with id %s\n", id)
				break
			}
			for _, m := range o.Active().Messages {
				printMessage(out, m)
			}
		case line == "/clear":
			if err := o.ClearHistory(ctx); err == nil {
				fmt.Fprintln(out, "History cleared.")
			}
		default:
			if err := ask(ctx, o, line, out); err != nil {
				fmt.Fprintln(out, err)
			}
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
	}
}

func printMessage(out io.Writer, m chat.Message) {
	who := "assistant"
	if m.IsUser {
		who = "you"
	}
	fmt.Fprintf(out, "[%s] %s\n", who, m.Content)
	for _, s := range m.Sources {
		label := s.Title
		if label == "" {
			label = s.URL
		}
		if label == "" {
			continue
		}
		fmt.Fprintf(out, "  - %s\n", label)
	}
}

func printHistory(out io.Writer, o *chat.Orchestrator) {
	convs := o.Conversations()
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations yet.")
		return
	}
	active := o.Active()
	for _, c := range convs {
		marker := " "
		if active != nil && active.ID == c.ID {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %s  %s  %s\n", marker, c.ID, c.Timestamp.Format("2006-01-02 15:04"), c.Preview)
	}
}
