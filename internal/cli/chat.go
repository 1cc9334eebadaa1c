package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tddg/qwen-code/internal/chat"
	"github.com/tddg/qwen-code/internal/genai"
	"github.com/tddg/qwen-code/internal/llm"
	"github.com/tddg/qwen-code/internal/metrics"
	"github.com/tddg/qwen-code/internal/telemetry"
)

var chatNoStream bool

// Theme holds the color scheme for the chat display.
type Theme struct {
	Prompt lipgloss.Color
	Model  lipgloss.Color
	Error  lipgloss.Color
	Hint   lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Prompt: lipgloss.Color("#5FAFD7"), // light blue
	Model:  lipgloss.Color("#00D787"), // green
	Error:  lipgloss.Color("#FF005F"), // red
	Hint:   lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) promptStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Prompt).Bold(true)
}

func (t Theme) modelStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Model)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the configured model",
	Long: `Chat with the configured model.

With a message argument, sends it as a single exchange and prints the
reply. Without arguments, starts an interactive session.

Interactive commands:
  /stats   show session statistics
  /model   show the active model
  /quit    end the session

Examples:
  qwen chat
  qwen chat "explain this stack trace"
  qwen chat --no-stream "write a haiku about goroutines"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for the full reply instead of streaming")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	gen, err := llm.NewGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init provider: %w", err)
	}

	session, err := newChatSession(gen)
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}

	if len(args) == 1 {
		return runOneExchange(ctx, session, args[0])
	}
	return runInteractive(ctx, session)
}

func newChatSession(gen genai.ContentGenerator) (*chat.Session, error) {
	var genCfg *genai.GenerateContentConfig
	if cfg.SystemPrompt != "" {
		genCfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.SystemText(cfg.SystemPrompt),
		}
	}
	opts := chat.Options{
		Generator:     gen,
		Recorder:      recorder,
		Metrics:       collector,
		Logger:        logger,
		SessionID:     cfg.SessionID,
		Model:         cfg.Model,
		FallbackModel: cfg.FallbackModel,
		AuthType:      cfg.AuthType,
		OnPersistent429: func(ctx context.Context, current, fallback string, cause error) bool {
			fmt.Fprintln(os.Stderr, defaultTheme.hintStyle().Render(
				fmt.Sprintf("%s is rate limited, switching to %s", current, fallback)))
			return true
		},
		Config: genCfg,
	}
	return chat.NewSession(opts)
}

// runOneExchange sends a single message and prints the reply.
func runOneExchange(ctx context.Context, session *chat.Session, message string) error {
	promptID := uuid.NewString()
	recordPromptSubmit(message, promptID)

	if chatNoStream {
		resp, err := session.SendText(ctx, message, promptID)
		if err != nil {
			return err
		}
		fmt.Println(resp.Text())
		return nil
	}
	return streamReply(ctx, session, message, promptID, os.Stdout)
}

// runInteractive runs the read-send-print loop until EOF or /quit.
func runInteractive(ctx context.Context, session *chat.Session) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	theme := defaultTheme

	recorder.RecordSessionStart(cfg.Model, string(cfg.AuthType))
	start := time.Now()
	turns := 0
	defer func() {
		recorder.RecordSessionEnd(session.Model(), time.Since(start), turns)
	}()

	if interactive {
		fmt.Println(theme.hintStyle().Render(
			fmt.Sprintf("Chatting with %s. /stats for statistics, /quit to end.", session.Model())))
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Print(theme.promptStyle().Render("you> "))
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		recorder.Record(telemetry.Event{
			EventType: telemetry.EventTypingStart,
			SessionID: cfg.SessionID,
		})

		if strings.HasPrefix(line, "/") {
			if quit := runSlashCommand(session, line); quit {
				return nil
			}
			continue
		}

		promptID := uuid.NewString()
		recordPromptSubmit(line, promptID)
		turns++

		var err error
		if chatNoStream {
			var resp *genai.GenerateContentResponse
			resp, err = session.SendText(ctx, line, promptID)
			if err == nil {
				fmt.Println(theme.modelStyle().Render(resp.Text()))
			}
		} else {
			err = streamReply(ctx, session, line, promptID, os.Stdout)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, theme.errorStyle().Render(fmt.Sprintf("error: %v", err)))
		}
	}
	return scanner.Err()
}

// streamReply streams one exchange, printing text deltas as they arrive.
func streamReply(ctx context.Context, session *chat.Session, message, promptID string, w io.Writer) error {
	stream, err := session.SendStreamText(ctx, message, promptID)
	if err != nil {
		return err
	}
	defer stream.Close()

	style := defaultTheme.modelStyle()
	wrote := false
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if content := chunk.FirstContent(); content != nil {
			for _, part := range content.Parts {
				if part == nil || part.Thought {
					continue
				}
				if part.Text != "" {
					fmt.Fprint(w, style.Render(part.Text))
					wrote = true
				}
				if part.FunctionCall != nil {
					fmt.Fprintln(w, defaultTheme.hintStyle().Render(
						fmt.Sprintf("[tool call: %s]", part.FunctionCall.Name)))
				}
			}
		}
	}
	if wrote {
		fmt.Fprintln(w)
	}
	return nil
}

// runSlashCommand handles interactive commands; returns true on /quit.
func runSlashCommand(session *chat.Session, line string) bool {
	recorder.Record(telemetry.Event{
		EventType: telemetry.EventCommandExecute,
		SessionID: cfg.SessionID,
		Detail:    map[string]any{"command": line},
	})

	switch line {
	case "/quit", "/exit":
		return true
	case "/model":
		fmt.Println(session.Model())
	case "/stats":
		printStats()
	default:
		fmt.Println(defaultTheme.hintStyle().Render("unknown command " + line))
	}
	return false
}

func printStats() {
	snap := collector.Snapshot()
	fmt.Printf("Session uptime: %.0fs\n", snap.UptimeSeconds)
	printOpStats("send", snap.Send)
	printOpStats("stream", snap.Stream)
}

func printOpStats(name string, s *metrics.ExchangeSnapshot) {
	if s == nil || s.Count == 0 {
		return
	}
	fmt.Printf("%s exchanges: %d (failures: %d)\n", name, s.Count, s.Failures)
	fmt.Printf("  latency avg/min/max: %.0fms / %dms / %dms\n", s.AvgTimeMs, s.MinTimeMs, s.MaxTimeMs)
	fmt.Printf("  tokens in/out: %d / %d\n", s.TotalInputTokens, s.TotalOutputTokens)
}

func recordPromptSubmit(message, promptID string) {
	recorder.Record(telemetry.Event{
		EventType: telemetry.EventPromptSubmit,
		SessionID: cfg.SessionID,
		PromptID:  promptID,
		Detail:    map[string]any{"length": len(message)},
	})
}
