// Package maturity resolves an agent's trust tier with minimal latency.
// Resolution is cache-then-registry: a short-TTL write-through cache bounds
// staleness after an agent is promoted or demoted without forcing a registry
// read on every trigger.
package maturity

// Level is an agent's trust tier. Levels form an ordered progression:
// a Student agent has the least autonomy, an Autonomous agent the most.
type Level int

const (
	Student Level = iota // Least trusted. Actions blocked and routed to training.
	Intern               // Actions blocked pending human approval.
	Supervised           // Actions execute under a monitored session.
	Autonomous           // Actions execute without oversight.
)

func (l Level) String() string {
	switch l {
	case Student:
		return "student"
	case Intern:
		return "intern"
	case Supervised:
		return "supervised"
	case Autonomous:
		return "autonomous"
	default:
		return "unknown"
	}
}

// ParseLevel converts a persisted status string to a Level.
// Returns (Student, false) for unrecognized or empty strings — callers
// fall back to confidence thresholding when ok is false.
func ParseLevel(s string) (Level, bool) {
	switch s {
	case "student":
		return Student, true
	case "intern":
		return Intern, true
	case "supervised":
		return Supervised, true
	case "autonomous":
		return Autonomous, true
	default:
		return Student, false
	}
}

// Thresholds maps a confidence score to a Level when the persisted status
// is absent or unrecognized. The boundaries are inclusive at the top:
// confidence >= Supervised yields Autonomous.
type Thresholds struct {
	Student    float64 // Below this: Student.
	Intern     float64 // Below this: Intern.
	Supervised float64 // Below this: Supervised; at or above: Autonomous.
}

// DefaultThresholds are the stock confidence boundaries.
var DefaultThresholds = Thresholds{Student: 0.5, Intern: 0.7, Supervised: 0.9}

// FromConfidence classifies a confidence score into a Level.
func (t Thresholds) FromConfidence(score float64) Level {
	switch {
	case score < t.Student:
		return Student
	case score < t.Intern:
		return Intern
	case score < t.Supervised:
		return Supervised
	default:
		return Autonomous
	}
}

// LevelOf determines the effective Level from a persisted status string and
// a confidence score. The status string wins when recognized; confidence is
// the fallback classifier only.
func (t Thresholds) LevelOf(status string, confidence float64) Level {
	if lvl, ok := ParseLevel(status); ok {
		return lvl
	}
	return t.FromConfidence(confidence)
}
