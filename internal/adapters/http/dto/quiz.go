package dto

import (
	"github.com/jsamuelsen/gallery-quiz/internal/domain"
)

// SessionURI binds the :id path parameter of session routes.
type SessionURI struct {
	ID string `uri:"id" json:"id" validate:"required,uuid"`
}

// PatchAnswersRequest is the body of PATCH /sessions/:id/answers.
// Omitted fields are left untouched. deviceCounts replaces the whole map.
type PatchAnswersRequest struct {
	Usage               *[]string       `json:"usage,omitempty"               validate:"omitempty,unique,dive,catalog=usage"`
	ChargeAdmission     *string         `json:"chargeAdmission,omitempty"     validate:"omitempty,yesno"`
	AdmissionFee        *float64        `json:"admissionFee,omitempty"        validate:"omitempty,min=0"`
	Currency            *string         `json:"currency,omitempty"            validate:"omitempty,max=32"`
	AnnualVisitors      *int            `json:"annualVisitors,omitempty"      validate:"omitempty,min=0"`
	Products            *[]string       `json:"products,omitempty"            validate:"omitempty,unique,dive,catalog=products"`
	DeviceCounts        *map[string]int `json:"deviceCounts,omitempty"        validate:"omitempty,dive,keys,catalog=deviceCounts,endkeys,min=0"`
	DashboardUsers      *int            `json:"dashboardUsers,omitempty"      validate:"omitempty,min=0"`
	Languages           *[]string       `json:"languages,omitempty"           validate:"omitempty,unique,dive,catalog=languages"`
	PointsOfInterest    *string         `json:"pointsOfInterest,omitempty"    validate:"omitempty,choice=pointsOfInterest"`
	UpdateFrequency     *string         `json:"updateFrequency,omitempty"     validate:"omitempty,choice=updateFrequency"`
	WifiStable          *string         `json:"wifiStable,omitempty"          validate:"omitempty,yesno"`
	PowerStable         *string         `json:"powerStable,omitempty"         validate:"omitempty,yesno"`
	Objectives          *[]string       `json:"objectives,omitempty"          validate:"omitempty,max=3,unique,dive,catalog=objectives"`
	CommercialStructure *string         `json:"commercialStructure,omitempty" validate:"omitempty,choice=commercialStructure"`
}

// Validate rejects a patch that changes nothing.
func (r PatchAnswersRequest) Validate() error {
	if r.ToPatch().IsEmpty() {
		return domain.NewValidationError("body", "at least one answer field is required")
	}

	return nil
}

// ToPatch converts the request into a domain patch.
func (r PatchAnswersRequest) ToPatch() domain.AnswersPatch {
	return domain.AnswersPatch{
		Usage:               r.Usage,
		ChargeAdmission:     yesNo(r.ChargeAdmission),
		AdmissionFee:        r.AdmissionFee,
		Currency:            r.Currency,
		AnnualVisitors:      r.AnnualVisitors,
		Products:            r.Products,
		DeviceCounts:        r.DeviceCounts,
		DashboardUsers:      r.DashboardUsers,
		Languages:           r.Languages,
		PointsOfInterest:    r.PointsOfInterest,
		UpdateFrequency:     r.UpdateFrequency,
		WifiStable:          yesNo(r.WifiStable),
		PowerStable:         yesNo(r.PowerStable),
		Objectives:          r.Objectives,
		CommercialStructure: r.CommercialStructure,
	}
}

func yesNo(s *string) *domain.YesNo {
	if s == nil {
		return nil
	}

	v := domain.YesNo(*s)

	return &v
}

// ToggleRequest is the body of POST /sessions/:id/answers/toggle.
type ToggleRequest struct {
	Field string `json:"field" validate:"required,oneof=usage products languages objectives"`
	Value string `json:"value" validate:"required,notempty"`
}

// Validate checks the value against the catalog of the chosen field.
func (r ToggleRequest) Validate() error {
	if !domain.InCatalog(r.Field, r.Value) {
		return domain.NewValidationErrorWithValue("value", "is not an offered option", r.Value)
	}

	return nil
}
