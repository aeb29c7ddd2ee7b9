package intent

import (
	"fmt"
	"strings"

	"github.com/nidhogg/nuka-academy/internal/agent"
)

// Intent is the coarse category of what a user wants.
type Intent string

const (
	Learn   Intent = "learn"
	Build   Intent = "build"
	Market  Intent = "market"
	Review  Intent = "review"
	Plan    Intent = "plan"
	General Intent = "general"
)

// Intents lists every intent in classification order, general last.
var Intents = []Intent{Build, Market, Review, Plan, Learn, General}

// ParseIntent converts a string into a known intent.
func ParseIntent(s string) (Intent, error) {
	in := Intent(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Intents {
		if in == known {
			return in, nil
		}
	}
	return "", fmt.Errorf("unknown intent %q", s)
}

// Title is the heading used when several agents answer one request.
func (i Intent) Title() string {
	switch i {
	case Learn:
		return "🎓 Learning Path"
	case Build:
		return "🚀 Project Build"
	case Market:
		return "📈 Marketing Strategy"
	case Review:
		return "🔍 Code Review"
	case Plan:
		return "🏗️ Architecture Plan"
	case General:
		return "💬 General Assistance"
	}
	return "Response"
}

// Complexity is an ordered estimate of how demanding a request is.
type Complexity string

const (
	Beginner     Complexity = "beginner"
	Intermediate Complexity = "intermediate"
	Advanced     Complexity = "advanced"
	Expert       Complexity = "expert"
)

// Complexities lists the levels from lowest to highest.
var Complexities = []Complexity{Beginner, Intermediate, Advanced, Expert}

// ParseComplexity converts a string into a known complexity level.
func ParseComplexity(s string) (Complexity, error) {
	c := Complexity(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Complexities {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown complexity %q", s)
}

// Rank returns the position of c in Complexities, or -1.
func (c Complexity) Rank() int {
	for i, known := range Complexities {
		if c == known {
			return i
		}
	}
	return -1
}

// Entities are the structured facts pulled out of a request.
type Entities struct {
	Technologies []string `json:"technologies"`
	ProjectType  string   `json:"project_type,omitempty"`
	Goals        []string `json:"goals"`
	Timeframe    string   `json:"timeframe,omitempty"`
}

// Step is one agent invocation in a workflow.
// Dependencies are indices of earlier steps whose output this step reads.
type Step struct {
	Agent         agent.ID `json:"agent"`
	Action        string   `json:"action"`
	EstimatedTime string   `json:"estimated_time"`
	Dependencies  []int    `json:"dependencies,omitempty"`
}

// Analysis is the analyzer's verdict for one request.
type Analysis struct {
	Intent          Intent     `json:"intent"`
	Confidence      float64    `json:"confidence"`
	Agents          []agent.ID `json:"agents"`
	Workflow        []Step     `json:"workflow"`
	Complexity      Complexity `json:"complexity"`
	Entities        Entities   `json:"entities"`
	SuggestedPrompt string     `json:"suggested_prompt,omitempty"`
}
