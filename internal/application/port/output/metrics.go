package output

// Outcome labels recorded for transition attempts
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeLockHeld = "lock_held"
	OutcomeError    = "error"
)

// Metrics records use case activity
type Metrics interface {
	TransitionAttempted(from, to, outcome string)
	ConflictRetried()
	ApplicationSubmitted()
	ScoreOverridden()
}

// NopMetrics discards all observations
type NopMetrics struct{}

func (NopMetrics) TransitionAttempted(string, string, string) {}
func (NopMetrics) ConflictRetried()                           {}
func (NopMetrics) ApplicationSubmitted()                      {}
func (NopMetrics) ScoreOverridden()                           {}
