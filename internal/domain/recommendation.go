package domain

import (
	"slices"
	"strconv"
	"strings"
)

// Recommendation labels.
const (
	RecEdgeNFCGuide        = "Edge-Optimized NFC Guide"
	RecCloudSyncHandsets   = "Cloud-Sync AI Handsets"
	RecMultilingualCore    = "Multilingual AI Core Service"
	RecDynamicCMSDashboard = "Dynamic CMS Dashboard"
)

const (
	// multilingualLanguageThreshold is the language count that triggers the multilingual rule.
	multilingualLanguageThreshold = 3

	// cmsPointsThreshold is the parsed points-of-interest value that triggers the CMS rule.
	cmsPointsThreshold = 20

	// maxSummarySentences bounds how many rationale sentences reach the summary.
	maxSummarySentences = 3
)

// Recommendation is the derived product advice for a finished quiz.
type Recommendation struct {
	Items   []string `json:"items"`
	Summary string   `json:"summary"`
}

// rule emits a label and a rationale sentence when it fires.
type rule func(a QuizAnswers) (label, why string, ok bool)

// rules are evaluated independently and in order; none short-circuits another.
var rules = []rule{
	infrastructureRule,
	multilingualRule,
	contentManagementRule,
}

func infrastructureRule(a QuizAnswers) (string, string, bool) {
	if a.WifiStable == No || a.PowerStable == No {
		return RecEdgeNFCGuide,
			"Given the potential technical constraints, our low-power, edge-first NFC solution " +
				"ensures visitor service stays active even without consistent connectivity.",
			true
	}

	return RecCloudSyncHandsets,
		"Your stable infrastructure allows for a seamless, real-time AI experience using our " +
			"high-performance connected handsets.",
		true
}

func multilingualRule(a QuizAnswers) (string, string, bool) {
	if len(a.Languages) < multilingualLanguageThreshold && !slices.Contains(a.Objectives, ObjectiveImproveAccessibility) {
		return "", "", false
	}

	return RecMultilingualCore,
		"Our AI engine will automatically serve native content to your international visitors in " +
			strconv.Itoa(len(a.Languages)) + " languages.",
		true
}

func contentManagementRule(a QuizAnswers) (string, string, bool) {
	points, ok := LeadingInt(a.PointsOfInterest)
	if !(ok && points >= cmsPointsThreshold) && !strings.Contains(a.UpdateFrequency, UpdateFrequencyMonthly) {
		return "", "", false
	}

	return RecDynamicCMSDashboard,
		"Your high POI volume necessitates our centralized cloud management platform for rapid updates.",
		true
}

// Recommend derives the product recommendations for a set of final answers.
// Output is deterministic for equal input.
func Recommend(a QuizAnswers) Recommendation {
	items := make([]string, 0, len(rules))
	why := make([]string, 0, len(rules))
	seen := make(map[string]struct{}, len(rules))

	for _, r := range rules {
		label, sentence, ok := r(a)
		if !ok {
			continue
		}

		why = append(why, sentence)

		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		items = append(items, label)
	}

	if len(why) > maxSummarySentences {
		why = why[:maxSummarySentences]
	}

	return Recommendation{
		Items:   items,
		Summary: strings.Join(why, " "),
	}
}

// LeadingInt parses the integer prefix of s the way bucket labels are read:
// optional leading whitespace and sign, then decimal digits. "30+" yields 30,
// "20-25" yields 20 and "<10" yields ok=false.
func LeadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}

	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}

	if end == digits {
		return 0, false
	}

	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}

	return n, true
}
