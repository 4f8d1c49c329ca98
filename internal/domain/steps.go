package domain

// Step identifies one page of the quiz wizard.
type Step int

const (
	FirstStep Step = 1
	LastStep  Step = 7
)

// Valid reports whether s is within [FirstStep, LastStep].
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// StepInfo describes a step for progress chrome.
type StepInfo struct {
	Step       Step   `json:"step"`
	Title      string `json:"title"`
	Percentage int    `json:"percentage"`
}

var steps = []StepInfo{
	{Step: 1, Title: "Gallery Context", Percentage: 0},
	{Step: 2, Title: "Product Interest", Percentage: 16},
	{Step: 3, Title: "Device Quantities", Percentage: 33},
	{Step: 4, Title: "Languages", Percentage: 50},
	{Step: 5, Title: "Content Scope", Percentage: 66},
	{Step: 6, Title: "Technical Readiness", Percentage: 83},
	{Step: 7, Title: "Goals & Commercials", Percentage: 100},
}

// Steps returns the metadata of every step in order.
func Steps() []StepInfo {
	out := make([]StepInfo, len(steps))
	copy(out, steps)

	return out
}

// StepInfoFor returns the metadata for s, falling back to the first step.
func StepInfoFor(s Step) StepInfo {
	if !s.Valid() {
		return steps[0]
	}

	return steps[s-1]
}

// CanAdvance reports whether the answers given so far allow leaving step.
// Only the active step is checked. Unknown steps never advance.
func CanAdvance(step Step, a QuizAnswers) bool {
	switch step {
	case 1:
		base := a.AnnualVisitors > 0 && len(a.Usage) > 0
		if a.ChargeAdmission == Yes {
			return base && a.AdmissionFee > 0
		}
		return base && a.ChargeAdmission == No
	case 2:
		return len(a.Products) > 0
	case 3:
		for _, p := range a.Products {
			if a.DeviceCounts[p] <= 0 {
				return false
			}
		}
		return a.DashboardUsers > 0
	case 4:
		return len(a.Languages) > 0
	case 5:
		return a.PointsOfInterest != "" && a.UpdateFrequency != ""
	case 6:
		return a.WifiStable.IsSet() && a.PowerStable.IsSet()
	case 7:
		return len(a.Objectives) >= 1 && len(a.Objectives) <= MaxObjectives && a.CommercialStructure != ""
	default:
		return false
	}
}
