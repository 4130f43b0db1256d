package mcpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dwizi/pmt-assistant/internal/assistant"
	"github.com/dwizi/pmt-assistant/internal/docstore"
)

const (
	defaultSearchLimit = 3
	maxSearchLimit     = 10
	maxExcerptRunes    = 600
)

type Assistant interface {
	Answer(ctx context.Context, req assistant.Request) assistant.Response
}

type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]docstore.SearchResult, error)
}

type Config struct {
	Name    string
	Version string
}

type askArgs struct {
	Query       string   `json:"query" jsonschema:"the user question, e.g. What should I complete today?"`
	Context     string   `json:"context,omitempty" jsonschema:"raw workspace context text with task and message sections"`
	TeamMembers []string `json:"team_members,omitempty" jsonschema:"known team member names"`
}

type searchArgs struct {
	Query string `json:"query" jsonschema:"free text to look up in the indexed documents"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of excerpts, 1 to 10"`
}

// New registers ask_assistant and, when a searcher is available,
// search_documents.
func New(answerer Assistant, searcher Searcher, cfg Config, logger *slog.Logger) *sdkmcp.Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "mcpserver")
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "pmt-assistant"
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "dev"
	}
	server := sdkmcp.NewServer(&sdkmcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "ask_assistant",
		Description: "Answer a project-management question about the user's tasks, team and messages.",
	}, func(ctx context.Context, req *sdkmcp.CallToolRequest, args askArgs) (*sdkmcp.CallToolResult, any, error) {
		query := strings.TrimSpace(args.Query)
		if query == "" {
			return errorResult("query is required"), nil, nil
		}
		if answerer == nil {
			return errorResult("assistant is unavailable"), nil, nil
		}
		answer := answerer.Answer(ctx, askRequest(args))
		logger.Info("mcp tool answered", "tool", "ask_assistant", "intent", string(answer.Intent), "fallback", answer.UsedFallback)
		return textResult(answer.Text), nil, nil
	})

	if searcher != nil {
		sdkmcp.AddTool(server, &sdkmcp.Tool{
			Name:        "search_documents",
			Description: "Search the indexed PMT Pro documents and return the most relevant excerpts.",
		}, func(ctx context.Context, req *sdkmcp.CallToolRequest, args searchArgs) (*sdkmcp.CallToolResult, any, error) {
			query := strings.TrimSpace(args.Query)
			if query == "" {
				return errorResult("query is required"), nil, nil
			}
			results, err := searcher.Search(ctx, query, clampLimit(args.Limit))
			if err != nil {
				logger.Warn("document search failed", "error", err)
				return errorResult("document search failed: " + err.Error()), nil, nil
			}
			logger.Info("mcp tool answered", "tool", "search_documents", "results", len(results))
			return textResult(formatResults(results)), nil, nil
		})
	}
	return server
}

// Handler serves one shared server over the streamable HTTP transport.
func Handler(server *sdkmcp.Server) http.Handler {
	return sdkmcp.NewStreamableHTTPHandler(func(*http.Request) *sdkmcp.Server { return server }, nil)
}

func askRequest(args askArgs) assistant.Request {
	return assistant.Request{
		Query:       strings.TrimSpace(args.Query),
		Context:     args.Context,
		TeamMembers: args.TeamMembers,
	}
}

func clampLimit(limit int) int {
	if limit < 1 {
		return defaultSearchLimit
	}
	if limit > maxSearchLimit {
		return maxSearchLimit
	}
	return limit
}

func formatResults(results []docstore.SearchResult) string {
	if len(results) == 0 {
		return "No relevant documents found."
	}
	var builder strings.Builder
	for index, result := range results {
		if index > 0 {
			builder.WriteString("\n\n")
		}
		title := strings.TrimSpace(result.Title)
		if title == "" {
			title = result.Source
		}
		fmt.Fprintf(&builder, "%d. %s (%s, score %.2f)\n%s", index+1, title, result.Source, result.Score, excerpt(result.Content))
	}
	return builder.String()
}

func excerpt(content string) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= maxExcerptRunes {
		return content
	}
	return strings.TrimSpace(string(runes[:maxExcerptRunes])) + "..."
}

func textResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}}}
}

func errorResult(text string) *sdkmcp.CallToolResult {
	return &sdkmcp.CallToolResult{Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: text}}, IsError: true}
}
