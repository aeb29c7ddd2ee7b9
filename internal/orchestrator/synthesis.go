package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/nuka-academy/internal/intent"
)

const noResults = "No results generated."

var nextSteps = map[intent.Intent][]string{
	intent.Learn: {
		"Practice the concepts with hands-on exercises",
		"Build a small project to apply what you learned",
		"Ask questions if anything is unclear",
	},
	intent.Build: {
		"Review the generated code and architecture",
		"Test the implementation locally",
		"Deploy to production",
		"Consider adding marketing materials",
	},
	intent.Market: {
		"Implement the marketing strategy",
		"Create the landing page",
		"Set up analytics tracking",
		"Launch and iterate based on feedback",
	},
	intent.Review: {
		"Implement the suggested improvements",
		"Run tests to verify changes",
		"Deploy the optimized version",
	},
	intent.Plan: {
		"Review the architecture design",
		"Break down into implementation tasks",
		"Start building incrementally",
	},
}

// synthesize merges step results into the user-facing answer. A single
// result is returned unchanged.
func synthesize(results []AgentResult, a *intent.Analysis) string {
	switch len(results) {
	case 0:
		return noResults
	case 1:
		return results[0].Response
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", a.Intent.Title())
	fmt.Fprintf(&sb, "I've completed your request using %d specialized agents. Here's what we accomplished:\n\n", len(results))

	var total int64
	for i, r := range results {
		fmt.Fprintf(&sb, "## %d. %s %s - %s\n\n", i+1, r.Agent.Emoji(), r.Agent.DisplayName(), r.Action)
		sb.WriteString(r.Response)
		sb.WriteString("\n\n---\n\n")
		total += r.DurationMs
	}

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "✅ All %d agents completed successfully in %s\n\n", len(results),
		formatDuration(time.Duration(total)*time.Millisecond))

	if steps, ok := nextSteps[a.Intent]; ok {
		sb.WriteString("## Next Steps\n\n")
		for i, s := range steps {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, s)
		}
	}
	return sb.String()
}

// formatDuration renders whole seconds as "Ns" under a minute, else "Nm Ns".
func formatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}
