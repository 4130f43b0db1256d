package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/pmt-assistant/internal/app"
	"github.com/dwizi/pmt-assistant/internal/assistant"
	"github.com/dwizi/pmt-assistant/internal/config"
)

const chatHelp = `commands:
  /context <file>   load pasted context from a file
  /clear            forget the loaded context
  /team a, b        set team member names
  /help             show this help
  /quit             leave`

type chatSession struct {
	context string
	team    []string
}

func newChatCommand(logger *slog.Logger) *cobra.Command {
	var (
		contextFile string
		team        string
		plain       bool
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions interactively against a context file",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readContextFile(contextFile)
			if err != nil {
				return err
			}
			components, err := app.Build(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer components.Close()

			session := &chatSession{context: raw, team: splitTeam(team)}
			return runChat(cmd.Context(), cmd.InOrStdin(), newPrinter(cmd.OutOrStdout(), plain), components.Assistant, session)
		},
	}
	cmd.Flags().StringVar(&contextFile, "context-file", "", "file holding the pasted PMT Pro context")
	cmd.Flags().StringVar(&team, "team", "", "comma separated team member names")
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colored output")
	return cmd
}

func runChat(ctx context.Context, in io.Reader, p *printer, service answerer, session *chatSession) error {
	if ctx == nil {
		ctx = context.Background()
	}
	fmt.Fprintln(p.out, p.paint(p.theme.brand, "PMT Pro assistant"))
	p.info("type /help for commands, /quit to leave")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(p.out, p.promptText())
		if !scanner.Scan() {
			fmt.Fprintln(p.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") || line == "exit" || line == "quit" {
			if !session.command(p, line) {
				return nil
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.response(service.Answer(ctx, assistant.Request{
			Query:       line,
			Context:     session.context,
			TeamMembers: session.team,
		}))
	}
}

// command applies a slash command and reports whether the session goes on.
func (s *chatSession) command(p *printer, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "/quit", "/exit", "exit", "quit":
		return false
	case "/help":
		p.info("%s", chatHelp)
	case "/context":
		if arg == "" {
			p.failure("usage: /context <file>")
			return true
		}
		raw, err := readContextFile(arg)
		if err != nil {
			p.failure("%v", err)
			return true
		}
		s.context = raw
		p.ok("loaded %d lines of context", strings.Count(strings.TrimRight(raw, "\n"), "\n")+1)
	case "/clear":
		s.context = ""
		p.ok("context cleared")
	case "/team":
		s.team = splitTeam(arg)
		p.ok("team set to %d members", len(s.team))
	default:
		p.failure("unknown command %s, type /help", name)
	}
	return true
}
