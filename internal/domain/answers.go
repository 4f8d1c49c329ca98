package domain

import (
	"maps"
	"slices"
)

// YesNo is a tri-state answer: "Yes", "No" or unset.
type YesNo string

const (
	Yes   YesNo = "Yes"
	No    YesNo = "No"
	Unset YesNo = ""
)

// IsSet reports whether the answer was given.
func (v YesNo) IsSet() bool {
	return v == Yes || v == No
}

// Valid reports whether v is one of the three allowed states.
func (v YesNo) Valid() bool {
	return v == Unset || v.IsSet()
}

// QuizAnswers is the single record of everything a gallery told the quiz.
// The JSON shape matches the persisted snapshot.
type QuizAnswers struct {
	Usage               []string       `json:"usage"`
	ChargeAdmission     YesNo          `json:"chargeAdmission"`
	AdmissionFee        float64        `json:"admissionFee"`
	Currency            string         `json:"currency"`
	AnnualVisitors      int            `json:"annualVisitors"`
	Products            []string       `json:"products"`
	DeviceCounts        map[string]int `json:"deviceCounts"`
	DashboardUsers      int            `json:"dashboardUsers"`
	Languages           []string       `json:"languages"`
	PointsOfInterest    string         `json:"pointsOfInterest"`
	UpdateFrequency     string         `json:"updateFrequency"`
	WifiStable          YesNo          `json:"wifiStable"`
	PowerStable         YesNo          `json:"powerStable"`
	Objectives          []string       `json:"objectives"`
	CommercialStructure string         `json:"commercialStructure"`
}

// DefaultAnswers returns the record a fresh session starts with.
func DefaultAnswers() QuizAnswers {
	return QuizAnswers{
		Usage:          []string{},
		Currency:       "EUR",
		Products:       []string{},
		DeviceCounts:   map[string]int{},
		DashboardUsers: 1,
		Languages:      []string{},
		Objectives:     []string{},
	}
}

// Clone returns a deep copy so callers never share slices or the count map.
func (a QuizAnswers) Clone() QuizAnswers {
	out := a
	out.Usage = cloneSet(a.Usage)
	out.Products = cloneSet(a.Products)
	out.Languages = cloneSet(a.Languages)
	out.Objectives = cloneSet(a.Objectives)

	out.DeviceCounts = make(map[string]int, len(a.DeviceCounts))
	maps.Copy(out.DeviceCounts, a.DeviceCounts)

	return out
}

// TotalDevices sums every device count.
func (a QuizAnswers) TotalDevices() int {
	total := 0
	for _, n := range a.DeviceCounts {
		total += n
	}

	return total
}

// DeviceCount returns the quantity requested for product, zero when absent.
func (a QuizAnswers) DeviceCount(product string) int {
	return a.DeviceCounts[product]
}

func cloneSet(values []string) []string {
	if values == nil {
		return []string{}
	}

	return slices.Clone(values)
}

// normalizeDeviceCounts keeps only entries for currently selected products.
func normalizeDeviceCounts(products []string, counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for product, n := range counts {
		if slices.Contains(products, product) {
			out[product] = n
		}
	}

	return out
}
