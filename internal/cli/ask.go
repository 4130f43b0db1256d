package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dwizi/pmt-assistant/internal/app"
	"github.com/dwizi/pmt-assistant/internal/assistant"
	"github.com/dwizi/pmt-assistant/internal/config"
)

type answerer interface {
	Answer(ctx context.Context, req assistant.Request) assistant.Response
}

func newAskCommand(logger *slog.Logger) *cobra.Command {
	var (
		query       string
		contextFile string
		team        string
		plain       bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer one question against a context file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" {
				query = strings.Join(args, " ")
			}
			if strings.TrimSpace(query) == "" {
				return errors.New("a question is required, pass it as an argument or with --query")
			}
			raw, err := readContextFile(contextFile)
			if err != nil {
				return err
			}

			components, err := app.Build(config.FromEnv(), logger)
			if err != nil {
				return err
			}
			defer components.Close()

			request := assistant.Request{Query: query, Context: raw, TeamMembers: splitTeam(team)}
			runAsk(cmd.Context(), newPrinter(cmd.OutOrStdout(), plain), components.Assistant, request)
			return nil
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "question to ask")
	cmd.Flags().StringVar(&contextFile, "context-file", "", "file holding the pasted PMT Pro context")
	cmd.Flags().StringVar(&team, "team", "", "comma separated team member names")
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colored output")
	return cmd
}

func runAsk(ctx context.Context, p *printer, service answerer, request assistant.Request) {
	if ctx == nil {
		ctx = context.Background()
	}
	p.response(service.Answer(ctx, request))
}

func readContextFile(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read context file: %w", err)
	}
	return string(raw), nil
}

func splitTeam(value string) []string {
	var members []string
	for _, part := range strings.Split(value, ",") {
		if name := strings.TrimSpace(part); name != "" {
			members = append(members, name)
		}
	}
	return members
}
