package core

const (
	PlanTrial Plan = "trial"
	PlanPro   Plan = "pro"
)

// Plan gates feature access for the single tenant of this instance.
type Plan string

func (p Plan) Valid() bool {
	switch p {
	case PlanTrial, PlanPro:
		return true
	default:
		return false
	}
}

// Profile is the subscription record consulted before entry creation and
// report export. It carries no monetary semantics.
type Profile struct {
	Plan            Plan
	TrialEntryLimit int
}

// CanCreateEntry reports whether another entry may be logged given the
// current stored entry count. Pro plans are unlimited.
func (p Profile) CanCreateEntry(currentCount int) bool {
	if p.Plan == PlanPro {
		return true
	}
	return currentCount < p.TrialEntryLimit
}

// CanExportReports reports whether printable summaries may be exported.
func (p Profile) CanExportReports() bool {
	return p.Plan == PlanPro
}
