package intent

import "github.com/nidhogg/nuka-academy/internal/agent"

// Suggestion is an example request offered to users at a given level.
type Suggestion struct {
	Text   string     `json:"text"`
	Intent Intent     `json:"intent"`
	Agents []agent.ID `json:"agents"`
}

var quickStart = map[Complexity][]string{
	Beginner: {
		"Teach me to build my first web app",
		"Build a simple todo app with Next.js",
		"Explain how to make money with micro-SaaS",
	},
	Intermediate: {
		"Build a receipt scanner SaaS app",
		"Create a landing page for my app",
		"Design a scalable API architecture",
	},
	Advanced: {
		"Build an AI-powered analytics dashboard",
		"Review and optimize my production code",
		"Create a complete launch strategy",
	},
	Expert: {
		"Build an enterprise-grade multi-tenant SaaS",
		"Design a microservices architecture",
		"Scale my SaaS to 10k users",
	},
}

// QuickStart returns example requests for a level, each labelled with the
// intent and agents this analyzer assigns to it. Unknown levels fall back
// to beginner.
func (a *Analyzer) QuickStart(level Complexity) []Suggestion {
	texts, ok := quickStart[level]
	if !ok {
		texts = quickStart[Beginner]
	}
	out := make([]Suggestion, len(texts))
	for i, text := range texts {
		an := a.Analyze(text, "")
		out[i] = Suggestion{Text: text, Intent: an.Intent, Agents: an.Agents}
	}
	return out
}
