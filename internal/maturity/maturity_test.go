package maturity

import "testing"

func TestLevelString(t *testing.T) {
	tests := []struct {
		lvl  Level
		want string
	}{
		{Student, "student"},
		{Intern, "intern"},
		{Supervised, "supervised"},
		{Autonomous, "autonomous"},
		{Level(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.lvl.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.lvl, got, tt.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	for _, lvl := range []Level{Student, Intern, Supervised, Autonomous} {
		got, ok := ParseLevel(lvl.String())
		if !ok || got != lvl {
			t.Errorf("ParseLevel(%q) = %v, %v", lvl.String(), got, ok)
		}
	}

	if _, ok := ParseLevel("wizard"); ok {
		t.Error("ParseLevel should reject unrecognized strings")
	}
	if lvl, ok := ParseLevel(""); ok || lvl != Student {
		t.Errorf("ParseLevel(\"\") = %v, %v, want Student, false", lvl, ok)
	}
}

func TestThresholds_FromConfidence(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{0.0, Student},
		{0.49, Student},
		{0.5, Intern},
		{0.69, Intern},
		{0.7, Supervised},
		{0.89, Supervised},
		{0.9, Autonomous},
		{1.0, Autonomous},
	}

	for _, tt := range tests {
		if got := DefaultThresholds.FromConfidence(tt.score); got != tt.want {
			t.Errorf("FromConfidence(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestThresholds_LevelOf(t *testing.T) {
	// A recognized status wins over confidence.
	if got := DefaultThresholds.LevelOf("autonomous", 0.1); got != Autonomous {
		t.Errorf("LevelOf(autonomous, 0.1) = %v, want Autonomous", got)
	}
	// Unrecognized status falls back to confidence.
	if got := DefaultThresholds.LevelOf("wizard", 0.95); got != Autonomous {
		t.Errorf("LevelOf(wizard, 0.95) = %v, want Autonomous", got)
	}
	// Empty status falls back to confidence.
	if got := DefaultThresholds.LevelOf("", 0.3); got != Student {
		t.Errorf("LevelOf(\"\", 0.3) = %v, want Student", got)
	}
}

func TestThresholds_Custom(t *testing.T) {
	strict := Thresholds{Student: 0.8, Intern: 0.9, Supervised: 0.99}
	if got := strict.FromConfidence(0.85); got != Intern {
		t.Errorf("strict FromConfidence(0.85) = %v, want Intern", got)
	}
	if got := strict.FromConfidence(0.95); got != Supervised {
		t.Errorf("strict FromConfidence(0.95) = %v, want Supervised", got)
	}
}
