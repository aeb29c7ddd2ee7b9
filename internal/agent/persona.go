package agent

import (
	"errors"
	"fmt"
	"strings"
)

// ID identifies an agent persona.
type ID string

const (
	Tutor      ID = "tutor"
	Coder      ID = "coder"
	Architect  ID = "architect"
	Marketer   ID = "marketer"
	Reviewer   ID = "reviewer"
	Curriculum ID = "curriculum"
)

// All lists every known agent in display order.
var All = []ID{Tutor, Coder, Architect, Marketer, Reviewer, Curriculum}

// ErrUnknownAgent is returned when an agent ID has no persona.
var ErrUnknownAgent = errors.New("unknown agent")

// Parse converts a string into a known agent ID.
func Parse(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	for _, a := range All {
		if a == id {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAgent, s)
}

// Emoji returns the glyph used when an agent is shown to a user.
func (id ID) Emoji() string {
	switch id {
	case Tutor:
		return "👨‍🏫"
	case Coder:
		return "💻"
	case Architect:
		return "🏗️"
	case Marketer:
		return "📈"
	case Reviewer:
		return "🔍"
	case Curriculum:
		return "🎓"
	}
	return "🤖"
}

// DisplayName is the capitalized agent name, e.g. "Coder".
func (id ID) DisplayName() string {
	s := string(id)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Persona defines an agent's identity and how it should be prompted.
type Persona struct {
	ID           ID      `json:"id"`
	Name         string  `json:"name"`
	Emoji        string  `json:"emoji"`
	Role         string  `json:"role"`
	Model        string  `json:"model,omitempty"`
	Temperature  float64 `json:"temperature"`
	SystemPrompt string  `json:"system_prompt"`
}
