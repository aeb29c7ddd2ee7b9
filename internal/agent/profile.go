package agent

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// profileFiles are read in order from <dir>/<agent id>/ and appended to the
// persona's system prompt.
var profileFiles = []string{"PERSONA.md", "STYLE.md", "GOALS.md"}

// LoadProfile returns the concatenated profile text for one agent, or ""
// when the agent has no profile files.
func LoadProfile(dir string, id ID) string {
	base := filepath.Join(dir, string(id))
	var parts []string
	for _, f := range profileFiles {
		data, err := os.ReadFile(filepath.Join(base, f))
		if err != nil {
			continue
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// LoadProfiles appends on-disk profile text to every persona that has one
// and returns how many personas changed. An empty dir is a no-op.
func (r *Registry) LoadProfiles(dir string) int {
	if dir == "" {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range All {
		extra := LoadProfile(dir, id)
		p, ok := r.personas[id]
		if extra == "" || !ok {
			continue
		}
		updated := *p
		updated.SystemPrompt = p.SystemPrompt + "\n\n" + extra
		r.personas[id] = &updated
		n++
		r.logger.Debug("loaded persona profile", zap.String("agent", string(id)), zap.Int("bytes", len(extra)))
	}
	return n
}
