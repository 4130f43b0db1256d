package assistant

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dwizi/pmt-assistant/internal/intent"
	"github.com/dwizi/pmt-assistant/internal/pmcontext"
)

const ApologyMessage = "I'm sorry, I couldn't generate an answer right now. Please try again in a moment."

type Request struct {
	Query       string
	Context     string
	TeamMembers []string
}

type Response struct {
	Text         string
	Intent       intent.Intent
	UsedFallback bool
}

// Fallback answers questions the templates cannot, typically by asking a
// language model about the raw context.
type Fallback interface {
	Answer(ctx context.Context, query, rawContext string) (string, error)
}

type Service struct {
	parser     *pmcontext.Parser
	classifier *intent.Classifier
	fallback   Fallback
	logger     *slog.Logger
}

func New(parser *pmcontext.Parser, classifier *intent.Classifier, fallback Fallback, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if parser == nil {
		parser = pmcontext.NewParser(logger)
	}
	if classifier == nil {
		classifier = intent.NewClassifier(intent.Keywords{})
	}
	return &Service{
		parser:     parser,
		classifier: classifier,
		fallback:   fallback,
		logger:     logger.With("component", "assistant"),
	}
}

// Answer never fails: every path ends in some text for the user.
func (s *Service) Answer(ctx context.Context, req Request) Response {
	started := time.Now()
	aggregated := s.parser.Parse(req.Context)
	members := mergeNames(req.TeamMembers, aggregated.TeamMembers)
	kind := s.classifier.Classify(req.Query, members)

	view := answerView{
		query:   strings.TrimSpace(req.Query),
		lower:   strings.ToLower(req.Query),
		data:    aggregated,
		members: members,
	}
	text, ok := s.render(kind, view)
	response := Response{Text: text, Intent: kind}
	if !ok {
		response.Text = s.askFallback(ctx, req)
		response.UsedFallback = true
	}
	s.logger.Info("query answered",
		"intent", string(kind),
		"fallback", response.UsedFallback,
		"personal_tasks", aggregated.PersonalTasks.Len(),
		"team_tasks", aggregated.TeamTaskCount(),
		"messages", aggregated.Messages.Len(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return response
}

type answerView struct {
	query   string
	lower   string
	data    pmcontext.Aggregated
	members []string
}

func (s *Service) render(kind intent.Intent, view answerView) (string, bool) {
	switch kind {
	case intent.TaskQuery:
		return renderTasks(view), true
	case intent.TeamTaskQuery:
		return renderTeamTasks(view)
	case intent.MessageQuery:
		return renderMessages(view), true
	case intent.DateMessageQuery:
		return renderDatedMessages(view), true
	case intent.FieldSpecificQuery:
		return renderField(view)
	case intent.KanbanQuery:
		return renderKanban(view)
	case intent.AttachmentQuery:
		return renderAttachments(view)
	default:
		return "", false
	}
}

func (s *Service) askFallback(ctx context.Context, req Request) string {
	if s.fallback == nil {
		s.logger.Warn("no fallback configured")
		return ApologyMessage
	}
	reply, err := s.fallback.Answer(ctx, req.Query, req.Context)
	if err != nil {
		s.logger.Warn("fallback failed", "error", err)
		return ApologyMessage
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		s.logger.Warn("fallback returned empty reply")
		return ApologyMessage
	}
	return reply
}

func mergeNames(lists ...[]string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, list := range lists {
		for _, name := range list {
			trimmed := strings.TrimSpace(name)
			key := strings.ToLower(trimmed)
			if trimmed == "" {
				continue
			}
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, trimmed)
		}
	}
	sort.Strings(out)
	return out
}
