package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dwizi/pmt-assistant/internal/intent"
	"github.com/dwizi/pmt-assistant/internal/pmcontext"
)

// LexiconFile is the on-disk shape of the optional lexicon extension file.
//
//	headers:
//	  messages: ["standup notes"]
//	  team: ["squad board"]
//	  personal: ["sprint backlog"]
//	  user_markers: ["🧑"]
//	keywords:
//	  task: ["roadmap"]
//	  message: ["ping"]
type LexiconFile struct {
	Headers struct {
		Messages    []string `yaml:"messages"`
		Team        []string `yaml:"team"`
		Personal    []string `yaml:"personal"`
		UserMarkers []string `yaml:"user_markers"`
	} `yaml:"headers"`
	Keywords intent.Keywords `yaml:"keywords"`
}

// Lexicon is the merged result of the built-in phrase lists and a lexicon file.
type Lexicon struct {
	Headers  pmcontext.Lexicon
	Keywords intent.Keywords
}

// LoadLexicon reads path and returns the extra phrases it declares. An empty
// path or a missing file yields an empty extension so callers fall back to the
// built-in lists.
func LoadLexicon(path string) (Lexicon, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Lexicon{}, nil
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Lexicon{}, nil
	}
	if err != nil {
		return Lexicon{}, fmt.Errorf("read lexicon: %w", err)
	}
	var file LexiconFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Lexicon{}, fmt.Errorf("parse lexicon %s: %w", path, err)
	}
	return Lexicon{
		Headers: pmcontext.Lexicon{
			MessageHeaders:  file.Headers.Messages,
			TeamHeaders:     file.Headers.Team,
			PersonalHeaders: file.Headers.Personal,
			UserMarkers:     file.Headers.UserMarkers,
		},
		Keywords: file.Keywords,
	}, nil
}
