package gateway

import "github.com/nidhogg/nuka-academy/internal/agent"

var slackEmoji = map[agent.ID]string{
	agent.Tutor:      ":teacher:",
	agent.Coder:      ":computer:",
	agent.Architect:  ":building_construction:",
	agent.Marketer:   ":chart_with_upwards_trend:",
	agent.Reviewer:   ":mag:",
	agent.Curriculum: ":mortar_board:",
}

// PersonasFrom builds the chat display for each agent persona.
func PersonasFrom(personas []*agent.Persona) map[string]*AgentPersona {
	out := make(map[string]*AgentPersona, len(personas))
	for _, p := range personas {
		emoji, ok := slackEmoji[p.ID]
		if !ok {
			emoji = ":robot_face:"
		}
		out[string(p.ID)] = &AgentPersona{
			Name:  p.Emoji + " " + p.Name,
			Emoji: emoji,
		}
	}
	return out
}
