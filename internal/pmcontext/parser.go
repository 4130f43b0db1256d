package pmcontext

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

type Parser struct {
	now     func() time.Time
	lexicon Lexicon
	logger  *slog.Logger
}

type Option func(*Parser)

// WithClock pins the reference time used for urgency and recency buckets.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

func WithLexicon(lexicon Lexicon) Option {
	return func(p *Parser) {
		p.lexicon = DefaultLexicon().Merge(lexicon)
	}
}

func NewParser(logger *slog.Logger, opts ...Option) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	parser := &Parser{
		now:     func() time.Time { return time.Now().UTC() },
		lexicon: DefaultLexicon(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(parser)
	}
	return parser
}

// Parse folds a context blob into buckets. It never fails: lines that cannot
// be attributed are logged at debug level and skipped. Task-shaped items
// seen before any header land in the personal buckets.
func (p *Parser) Parse(raw string) Aggregated {
	today := truncateDay(p.now())
	clock := func() time.Time { return today }
	classifier := lineClassifier{lexicon: p.lexicon}
	tasks := taskExtractor{now: clock}
	messages := messageExtractor{now: clock}

	result := Aggregated{
		TeamTasks: map[string]TaskBuckets{},
		Messages:  MessageBuckets{BySender: map[string][]MessageRecord{}},
		Today:     today,
	}
	members := map[string]struct{}{}
	state := lineState{Section: SectionNone}

	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	for index, line := range lines {
		lineNo := index + 1
		next, kind := classifier.classify(line, state)
		state = next
		if kind == lineUserMarker {
			members[state.User] = struct{}{}
			continue
		}
		if kind == lineOther {
			p.logger.Debug("context line not attributed", "line", lineNo, "section", string(state.Section))
		}
		if kind != lineItem {
			continue
		}

		switch state.Section {
		case SectionPersonalTasks, SectionTeamTasks:
			task, rule, ok := tasks.extract(line, state)
			if !ok {
				continue
			}
			task.Line = lineNo
			if rule == "fallback" {
				p.logger.Debug("task line matched no pattern", "line", lineNo, "section", string(state.Section))
			}
			if state.Section == SectionPersonalTasks {
				result.PersonalTasks.add(task)
				continue
			}
			owner := strings.TrimSpace(task.AssignedTo)
			if owner == "" {
				owner = "Unassigned"
				task.AssignedTo = owner
			} else {
				members[owner] = struct{}{}
			}
			buckets := result.TeamTasks[owner]
			buckets.add(task)
			result.TeamTasks[owner] = buckets
		case SectionMessages:
			message, rule, ok := messages.extract(line, state)
			if !ok {
				continue
			}
			message.Line = lineNo
			if rule == "fallback" {
				p.logger.Debug("message line matched no pattern", "line", lineNo)
			}
			result.Messages.add(message)
		default:
			// Before any header, only lines that clearly read as tasks are
			// kept; they count as personal.
			task, rule, ok := tasks.extract(line, state)
			if !ok || rule == "fallback" {
				p.logger.Debug("item outside any section", "line", lineNo)
				continue
			}
			task.Line = lineNo
			result.PersonalTasks.add(task)
		}
	}

	result.TeamMembers = make([]string, 0, len(members))
	for name := range members {
		result.TeamMembers = append(result.TeamMembers, name)
	}
	sort.Strings(result.TeamMembers)
	return result
}
