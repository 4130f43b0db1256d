package pmcontext

import "strings"

// Lexicon holds the header phrases used to recognise sections. Phrases are
// matched case-insensitively by containment against non-bulleted lines.
type Lexicon struct {
	MessageHeaders  []string
	TeamHeaders     []string
	PersonalHeaders []string
	UserMarkers     []string
}

func DefaultLexicon() Lexicon {
	return Lexicon{
		MessageHeaders: []string{
			"recent messages",
			"team messages",
			"unread messages",
			"messages",
			"message summary",
			"inbox",
			"conversations",
			"chat history",
		},
		TeamHeaders: []string{
			"tech team - active tasks",
			"team - active tasks",
			"team tasks",
			"team active tasks",
			"team kanban",
			"team board",
			"team assignments",
		},
		PersonalHeaders: []string{
			"your active tasks",
			"your tasks",
			"my tasks",
			"my active tasks",
			"personal tasks",
			"active tasks",
			"kanban board",
			"kanban",
			"tasks",
		},
		UserMarkers: []string{"👤", "🧑‍💻", "👨‍💻", "👩‍💻"},
	}
}

// Merge returns a lexicon with extra phrases appended after the defaults so
// built-in phrases keep their precedence.
func (l Lexicon) Merge(extra Lexicon) Lexicon {
	return Lexicon{
		MessageHeaders:  mergePhrases(l.MessageHeaders, extra.MessageHeaders),
		TeamHeaders:     mergePhrases(l.TeamHeaders, extra.TeamHeaders),
		PersonalHeaders: mergePhrases(l.PersonalHeaders, extra.PersonalHeaders),
		UserMarkers:     mergePhrases(l.UserMarkers, extra.UserMarkers),
	}
}

func mergePhrases(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := map[string]struct{}{}
	for _, list := range [][]string{base, extra} {
		for _, phrase := range list {
			value := strings.ToLower(strings.TrimSpace(phrase))
			if value == "" {
				continue
			}
			if _, exists := seen[value]; exists {
				continue
			}
			seen[value] = struct{}{}
			out = append(out, value)
		}
	}
	return out
}
