package agent

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Resolver maps an agent ID to its persona.
type Resolver interface {
	Resolve(id ID) (*Persona, error)
}

// Lister lists personas in display order.
type Lister interface {
	List() []*Persona
}

// Override adjusts a built-in persona from configuration.
type Override struct {
	Model        string
	Temperature  *float64
	Instructions string
}

// Registry holds the personas available to the completion layer.
type Registry struct {
	personas map[ID]*Persona
	mu       sync.RWMutex
	logger   *zap.Logger
}

// NewRegistry creates a registry seeded with the built-in personas.
func NewRegistry(logger *zap.Logger) *Registry {
	r := &Registry{
		personas: make(map[ID]*Persona, len(All)),
		logger:   logger,
	}
	for _, p := range builtinPersonas() {
		r.personas[p.ID] = &p
	}
	return r
}

// Apply merges a configuration override into an existing persona.
func (r *Registry) Apply(id ID, o Override) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.personas[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	updated := *p
	if o.Model != "" {
		updated.Model = o.Model
	}
	if o.Temperature != nil {
		updated.Temperature = *o.Temperature
	}
	if o.Instructions != "" {
		updated.SystemPrompt = o.Instructions
	}
	r.personas[id] = &updated
	r.logger.Info("applied persona override",
		zap.String("agent", string(id)),
		zap.String("model", updated.Model),
		zap.Float64("temperature", updated.Temperature))
	return nil
}

// Resolve returns a copy of the persona for id.
func (r *Registry) Resolve(id ID) (*Persona, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.personas[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	cp := *p
	return &cp, nil
}

// List returns all personas in display order.
func (r *Registry) List() []*Persona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Persona, 0, len(r.personas))
	for _, id := range All {
		if p, ok := r.personas[id]; ok {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

func builtinPersonas() []Persona {
	return []Persona{
		{
			ID: Tutor, Name: Tutor.DisplayName(), Emoji: Tutor.Emoji(),
			Role:        "educator",
			Temperature: 0.7,
			SystemPrompt: "You are the Tutor agent. Teach software engineering and product concepts " +
				"through small, concrete projects. Check understanding before moving on, define " +
				"jargon when you first use it, and end with an exercise the learner can finish today.",
		},
		{
			ID: Coder, Name: Coder.DisplayName(), Emoji: Coder.Emoji(),
			Role:        "software engineer",
			Temperature: 0.3,
			SystemPrompt: "You are the Coder agent. Produce complete, runnable code with file paths, " +
				"error handling and tests. Follow any architecture given in the context and list the " +
				"commands needed to run what you wrote.",
		},
		{
			ID: Architect, Name: Architect.DisplayName(), Emoji: Architect.Emoji(),
			Role:        "system architect",
			Temperature: 0.5,
			SystemPrompt: "You are the Architect agent. Design systems: components, data model, " +
				"interfaces, deployment and the trade-offs behind each choice. Prefer the simplest " +
				"design that meets the stated scale.",
		},
		{
			ID: Marketer, Name: Marketer.DisplayName(), Emoji: Marketer.Emoji(),
			Role:        "growth marketer",
			Temperature: 0.8,
			SystemPrompt: "You are the Marketer agent. Define the audience, positioning, pricing and " +
				"launch channels for a product, with copy the founder can paste as-is and metrics to " +
				"watch in the first month.",
		},
		{
			ID: Reviewer, Name: Reviewer.DisplayName(), Emoji: Reviewer.Emoji(),
			Role:        "code reviewer",
			Temperature: 0.3,
			SystemPrompt: "You are the Reviewer agent. Find correctness, security and performance " +
				"problems, rank them by severity and show the corrected code for each finding.",
		},
		{
			ID: Curriculum, Name: Curriculum.DisplayName(), Emoji: Curriculum.Emoji(),
			Role:        "curriculum designer",
			Temperature: 0.6,
			SystemPrompt: "You are the Curriculum agent. Turn a goal into an ordered plan of milestones, " +
				"each with an outcome, a time estimate and the project that proves it was reached.",
		},
	}
}
