package domain

import (
	"fmt"
	"maps"
	"slices"
)

// AnswersPatch is a partial update of QuizAnswers. A nil field leaves the
// current value untouched; a non-nil field overwrites it (later wins).
//
// DeviceCounts is a full replacement map, never deep-merged. After the patch
// is applied only products that are still selected keep a count.
type AnswersPatch struct {
	Usage               *[]string       `json:"usage,omitempty"`
	ChargeAdmission     *YesNo          `json:"chargeAdmission,omitempty"`
	AdmissionFee        *float64        `json:"admissionFee,omitempty"`
	Currency            *string         `json:"currency,omitempty"`
	AnnualVisitors      *int            `json:"annualVisitors,omitempty"`
	Products            *[]string       `json:"products,omitempty"`
	DeviceCounts        *map[string]int `json:"deviceCounts,omitempty"`
	DashboardUsers      *int            `json:"dashboardUsers,omitempty"`
	Languages           *[]string       `json:"languages,omitempty"`
	PointsOfInterest    *string         `json:"pointsOfInterest,omitempty"`
	UpdateFrequency     *string         `json:"updateFrequency,omitempty"`
	WifiStable          *YesNo          `json:"wifiStable,omitempty"`
	PowerStable         *YesNo          `json:"powerStable,omitempty"`
	Objectives          *[]string       `json:"objectives,omitempty"`
	CommercialStructure *string         `json:"commercialStructure,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p AnswersPatch) IsEmpty() bool {
	return p == AnswersPatch{}
}

// ApplyPatch merges patch into current and returns the new record.
// The patch is rejected as a whole if any field breaks the answer invariants;
// current is never modified.
func ApplyPatch(current QuizAnswers, patch AnswersPatch) (QuizAnswers, error) {
	if err := patch.validate(); err != nil {
		return current, err
	}

	next := current.Clone()

	if patch.Usage != nil {
		next.Usage = cloneSet(*patch.Usage)
	}
	if patch.ChargeAdmission != nil {
		next.ChargeAdmission = *patch.ChargeAdmission
	}
	if patch.AdmissionFee != nil {
		next.AdmissionFee = *patch.AdmissionFee
	}
	if patch.Currency != nil {
		next.Currency = *patch.Currency
	}
	if patch.AnnualVisitors != nil {
		next.AnnualVisitors = *patch.AnnualVisitors
	}
	if patch.Products != nil {
		next.Products = cloneSet(*patch.Products)
	}
	if patch.DeviceCounts != nil {
		next.DeviceCounts = make(map[string]int, len(*patch.DeviceCounts))
		maps.Copy(next.DeviceCounts, *patch.DeviceCounts)
	}
	if patch.DashboardUsers != nil {
		next.DashboardUsers = *patch.DashboardUsers
	}
	if patch.Languages != nil {
		next.Languages = cloneSet(*patch.Languages)
	}
	if patch.PointsOfInterest != nil {
		next.PointsOfInterest = *patch.PointsOfInterest
	}
	if patch.UpdateFrequency != nil {
		next.UpdateFrequency = *patch.UpdateFrequency
	}
	if patch.WifiStable != nil {
		next.WifiStable = *patch.WifiStable
	}
	if patch.PowerStable != nil {
		next.PowerStable = *patch.PowerStable
	}
	if patch.Objectives != nil {
		next.Objectives = cloneSet(*patch.Objectives)
	}
	if patch.CommercialStructure != nil {
		next.CommercialStructure = *patch.CommercialStructure
	}

	next.DeviceCounts = normalizeDeviceCounts(next.Products, next.DeviceCounts)

	return next, nil
}

func (p AnswersPatch) validate() error {
	sets := []struct {
		field  string
		values *[]string
	}{
		{FieldUsage, p.Usage},
		{FieldProducts, p.Products},
		{FieldLanguages, p.Languages},
		{FieldObjectives, p.Objectives},
	}
	for _, s := range sets {
		if s.values == nil {
			continue
		}
		if err := validateSet(s.field, *s.values); err != nil {
			return err
		}
	}

	if p.Objectives != nil && len(*p.Objectives) > MaxObjectives {
		return NewValidationErrorWithValue(FieldObjectives,
			fmt.Sprintf("at most %d objectives may be selected", MaxObjectives), *p.Objectives)
	}

	tri := []struct {
		field string
		value *YesNo
	}{
		{FieldChargeAdmission, p.ChargeAdmission},
		{FieldWifiStable, p.WifiStable},
		{FieldPowerStable, p.PowerStable},
	}
	for _, t := range tri {
		if t.value != nil && !t.value.Valid() {
			return NewValidationErrorWithValue(t.field, "must be Yes, No or empty", *t.value)
		}
	}

	if p.AdmissionFee != nil && !(*p.AdmissionFee >= 0) {
		return NewValidationErrorWithValue(FieldAdmissionFee, "must not be negative", *p.AdmissionFee)
	}
	if p.AnnualVisitors != nil && *p.AnnualVisitors < 0 {
		return NewValidationErrorWithValue(FieldAnnualVisitors, "must not be negative", *p.AnnualVisitors)
	}
	if p.DashboardUsers != nil && *p.DashboardUsers < 0 {
		return NewValidationErrorWithValue(FieldDashboardUsers, "must not be negative", *p.DashboardUsers)
	}

	if p.DeviceCounts != nil {
		for product, n := range *p.DeviceCounts {
			if !InCatalog(FieldProducts, product) {
				return NewValidationErrorWithValue(FieldDeviceCounts, "unknown product", product)
			}
			if n < 0 {
				return NewValidationErrorWithValue(FieldDeviceCounts, "quantity must not be negative", n)
			}
		}
	}

	single := []struct {
		field string
		value *string
	}{
		{FieldPointsOfInterest, p.PointsOfInterest},
		{FieldUpdateFrequency, p.UpdateFrequency},
		{FieldCommercialStructure, p.CommercialStructure},
	}
	for _, s := range single {
		if s.value != nil && *s.value != "" && !InCatalog(s.field, *s.value) {
			return NewValidationErrorWithValue(s.field, "unknown option", *s.value)
		}
	}

	return nil
}

func validateSet(field string, values []string) error {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if !InCatalog(field, v) {
			return NewValidationErrorWithValue(field, "unknown option", v)
		}
		if _, dup := seen[v]; dup {
			return NewValidationErrorWithValue(field, "duplicate option", v)
		}
		seen[v] = struct{}{}
	}

	return nil
}

// Toggle flips value in the multi-select field. It reports changed=false when
// the toggle was refused, which only happens when adding an objective would
// exceed MaxObjectives.
func Toggle(current QuizAnswers, field, value string) (QuizAnswers, bool, error) {
	if !IsMultiSelect(field) {
		return current, false, NewValidationErrorWithValue("field", "not a multi-select answer", field)
	}
	if !InCatalog(field, value) {
		return current, false, NewValidationErrorWithValue(field, "unknown option", value)
	}

	next := current.Clone()
	set := next.set(field)

	if i := slices.Index(*set, value); i >= 0 {
		*set = slices.Delete(*set, i, i+1)
	} else {
		if field == FieldObjectives && len(*set) >= MaxObjectives {
			return current, false, nil
		}
		*set = append(*set, value)
	}

	if field == FieldProducts {
		next.DeviceCounts = normalizeDeviceCounts(next.Products, next.DeviceCounts)
	}

	return next, true, nil
}

func (a *QuizAnswers) set(field string) *[]string {
	switch field {
	case FieldUsage:
		return &a.Usage
	case FieldProducts:
		return &a.Products
	case FieldLanguages:
		return &a.Languages
	default:
		return &a.Objectives
	}
}
