package intent

import "testing"

func TestQuickStartMatchesAnalyzer(t *testing.T) {
	for _, level := range Complexities {
		suggestions := Default().QuickStart(level)
		if len(suggestions) != 3 {
			t.Fatalf("%s: got %d suggestions, want 3", level, len(suggestions))
		}
		for _, s := range suggestions {
			a := Default().Analyze(s.Text, "")
			if s.Intent != a.Intent {
				t.Errorf("%q labelled %q, analyzer says %q", s.Text, s.Intent, a.Intent)
			}
			if len(s.Agents) != len(a.Agents) {
				t.Errorf("%q has %d agents, analyzer says %d", s.Text, len(s.Agents), len(a.Agents))
			}
		}
	}
}

func TestQuickStartUnknownLevel(t *testing.T) {
	got := Default().QuickStart("wizard")
	want := Default().QuickStart(Beginner)
	if len(got) != len(want) || got[0].Text != want[0].Text {
		t.Errorf("unknown level should fall back to beginner suggestions")
	}
}
