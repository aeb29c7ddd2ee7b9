// Package intent classifies free-form requests and plans which agents handle them.
package intent

import (
	"fmt"
	"math"
	"strings"

	"github.com/nidhogg/nuka-academy/internal/agent"
)

const (
	baseConfidence = 0.50
	maxConfidence  = 0.95
)

// Analyzer turns raw text into an Analysis. It holds no mutable state and
// is safe for concurrent use.
type Analyzer struct {
	tables Tables
}

// NewAnalyzer builds an analyzer over custom tables. Every template must
// form a valid workflow.
func NewAnalyzer(t Tables) (*Analyzer, error) {
	for in, steps := range t.Templates {
		if err := ValidateWorkflow(steps); err != nil {
			return nil, fmt.Errorf("template %s: %w", in, err)
		}
	}
	if _, ok := t.Templates[General]; !ok {
		return nil, fmt.Errorf("template %s is required", General)
	}
	return &Analyzer{tables: t}, nil
}

var defaultAnalyzer = &Analyzer{tables: defaultTables}

// Default returns the analyzer over the built-in tables.
func Default() *Analyzer {
	return defaultAnalyzer
}

// Analyze classifies input. context is prior conversation text that only
// feeds entity extraction and complexity; the intent comes from input alone.
func (a *Analyzer) Analyze(input, context string) *Analysis {
	lower := strings.ToLower(input)
	full := lower
	if context != "" {
		full = strings.ToLower(context + " " + input)
	}

	in := a.detectIntent(lower)
	entities := a.extractEntities(full)
	complexity := a.complexity(full, entities)
	workflow := a.workflow(in, complexity)

	return &Analysis{
		Intent:          in,
		Confidence:      a.confidence(in, entities, lower),
		Agents:          agentsOf(workflow),
		Workflow:        workflow,
		Complexity:      complexity,
		Entities:        entities,
		SuggestedPrompt: suggestedPrompt(in, entities),
	}
}

func (a *Analyzer) detectIntent(input string) Intent {
	for _, g := range a.tables.Intents {
		for _, p := range g.Patterns {
			if p.MatchString(input) {
				return g.Intent
			}
		}
	}
	return General
}

func (a *Analyzer) extractEntities(text string) Entities {
	e := Entities{
		Technologies: []string{},
		Goals:        []string{},
	}
	for _, t := range a.tables.Technologies {
		if t.Pattern.MatchString(text) {
			e.Technologies = append(e.Technologies, t.Name)
		}
	}
	for _, pt := range a.tables.ProjectTypes {
		if pt.Pattern.MatchString(text) {
			e.ProjectType = pt.Name
			break
		}
	}
	for _, g := range a.tables.Goals {
		if g.Pattern.MatchString(text) {
			e.Goals = append(e.Goals, g.Name)
		}
	}
	for _, tf := range a.tables.Timeframes {
		if m := tf.Pattern.FindString(text); m != "" {
			e.Timeframe = m
			break
		}
	}
	return e
}

func (a *Analyzer) complexity(text string, e Entities) Complexity {
	score := 0.0
	for _, s := range a.tables.BeginnerSignals {
		if s.MatchString(text) {
			score -= 2
		}
	}
	for _, s := range a.tables.AdvancedSignals {
		if s.MatchString(text) {
			score += 2
		}
	}
	score += float64(len(e.Technologies)) * 0.5
	score += float64(len(e.Goals)) * 0.3

	switch {
	case score < 0:
		return Beginner
	case score < 1.5:
		return Intermediate
	case score < 3:
		return Advanced
	default:
		return Expert
	}
}

// workflow copies the template so callers never alias table data.
func (a *Analyzer) workflow(in Intent, c Complexity) []Step {
	tmpl, ok := a.tables.Templates[in]
	if !ok {
		tmpl = a.tables.Templates[General]
	}
	steps := make([]Step, 0, len(tmpl)+1)
	for _, s := range tmpl {
		steps = append(steps, copyStep(s))
	}

	if in == Build && c == Expert && len(steps) > 0 {
		extra := copyStep(a.tables.ExpertBuildStep)
		extra.Dependencies = []int{len(steps) - 1}
		steps = append(steps, extra)
	}
	return steps
}

func (a *Analyzer) confidence(in Intent, e Entities, input string) float64 {
	c := baseConfidence
	for _, kw := range a.tables.StrongKeywords[in] {
		if strings.Contains(input, kw) {
			c += 0.15
		}
	}
	c += float64(len(e.Technologies)) * 0.05
	if e.ProjectType != "" {
		c += 0.10
	}
	c += float64(len(e.Goals)) * 0.05
	return math.Min(c, maxConfidence)
}

func suggestedPrompt(in Intent, e Entities) string {
	switch {
	case in == Build && e.ProjectType != "":
		tech := ""
		if len(e.Technologies) > 0 {
			tech = " using " + strings.Join(e.Technologies, ", ")
		}
		return fmt.Sprintf("Build a %s%s that helps users [specific problem]", e.ProjectType, tech)
	case in == Learn && len(e.Technologies) > 0:
		return fmt.Sprintf("Teach me %s from basics to building a real project", e.Technologies[0])
	case in == Market && e.ProjectType != "":
		return fmt.Sprintf("Create a complete go-to-market strategy for my %s", e.ProjectType)
	}
	return ""
}

func agentsOf(steps []Step) []agent.ID {
	seen := make(map[agent.ID]bool, len(steps))
	out := make([]agent.ID, 0, len(steps))
	for _, s := range steps {
		if !seen[s.Agent] {
			seen[s.Agent] = true
			out = append(out, s.Agent)
		}
	}
	return out
}

func copyStep(s Step) Step {
	if s.Dependencies != nil {
		s.Dependencies = append([]int(nil), s.Dependencies...)
	}
	return s
}
