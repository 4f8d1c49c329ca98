package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jsamuelsen/gallery-quiz/internal/domain"
)

// SnapshotVersion is the envelope version written by EncodeSnapshot.
const SnapshotVersion = 1

// Snapshot errors. Every decode failure wraps ErrInvalidSnapshot.
var (
	ErrInvalidSnapshot     = errors.New("invalid snapshot")
	ErrSnapshotVersion     = fmt.Errorf("%w: unsupported version", ErrInvalidSnapshot)
	ErrSnapshotSchema      = fmt.Errorf("%w: schema violation", ErrInvalidSnapshot)
	ErrSnapshotUnparseable = fmt.Errorf("%w: malformed json", ErrInvalidSnapshot)
)

// Snapshot is the persisted envelope around a set of answers.
type Snapshot struct {
	Version int                `json:"version"`
	SavedAt time.Time          `json:"savedAt"`
	Answers domain.QuizAnswers `json:"answers"`
	Legacy  bool               `json:"-"`
}

// answersSchema mirrors domain.QuizAnswers with the rules a stored record must satisfy.
type answersSchema struct {
	Usage               []string       `json:"usage" validate:"unique,dive,catalog=usage"`
	ChargeAdmission     string         `json:"chargeAdmission" validate:"omitempty,oneof=Yes No"`
	AdmissionFee        float64        `json:"admissionFee" validate:"min=0"`
	Currency            string         `json:"currency" validate:"max=32"`
	AnnualVisitors      int            `json:"annualVisitors" validate:"min=0"`
	Products            []string       `json:"products" validate:"unique,dive,catalog=products"`
	DeviceCounts        map[string]int `json:"deviceCounts" validate:"dive,keys,catalog=deviceCounts,endkeys,min=0"`
	DashboardUsers      int            `json:"dashboardUsers" validate:"min=0"`
	Languages           []string       `json:"languages" validate:"unique,dive,catalog=languages"`
	PointsOfInterest    string         `json:"pointsOfInterest" validate:"omitempty,catalog=pointsOfInterest"`
	UpdateFrequency     string         `json:"updateFrequency" validate:"omitempty,catalog=updateFrequency"`
	WifiStable          string         `json:"wifiStable" validate:"omitempty,oneof=Yes No"`
	PowerStable         string         `json:"powerStable" validate:"omitempty,oneof=Yes No"`
	Objectives          []string       `json:"objectives" validate:"max=3,unique,dive,catalog=objectives"`
	CommercialStructure string         `json:"commercialStructure" validate:"omitempty,catalog=commercialStructure"`
}

type envelope struct {
	Version *int            `json:"version"`
	SavedAt time.Time       `json:"savedAt"`
	Answers json.RawMessage `json:"answers"`
}

// snapshotValidator checks stored answers against the catalog.
var snapshotValidator = newSnapshotValidator()

func newSnapshotValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}

		return name
	})

	_ = v.RegisterValidation("catalog", ValidateCatalog)
	v.RegisterStructValidation(validateDeviceCountKeys, answersSchema{})

	return v
}

// ValidateCatalog implements the `catalog=<field>` tag: the value must be an
// option of the named answer field.
func ValidateCatalog(fl validator.FieldLevel) bool {
	return domain.InCatalog(fl.Param(), fl.Field().String())
}

func validateDeviceCountKeys(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(answersSchema)
	if !ok {
		return
	}

	for product := range s.DeviceCounts {
		if !slices.Contains(s.Products, product) {
			sl.ReportError(s.DeviceCounts, "deviceCounts", "DeviceCounts", "selected", product)
		}
	}
}

// EncodeSnapshot serializes answers in the current envelope format.
func EncodeSnapshot(a domain.QuizAnswers, savedAt time.Time) ([]byte, error) {
	data, err := json.Marshal(Snapshot{
		Version: SnapshotVersion,
		SavedAt: savedAt.UTC(),
		Answers: a,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	return data, nil
}

// DecodeSnapshot parses and validates a stored snapshot. It accepts the
// versioned envelope and the bare answers object written by older clients.
// Fields missing from the stored record take their default values.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrSnapshotUnparseable, err)
	}

	if env.Version == nil {
		answers, err := decodeAnswers(data)
		if err != nil {
			return Snapshot{}, err
		}

		return Snapshot{Version: 0, Answers: answers, Legacy: true}, nil
	}

	if *env.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: %d", ErrSnapshotVersion, *env.Version)
	}
	if len(env.Answers) == 0 || bytes.Equal(env.Answers, []byte("null")) {
		return Snapshot{}, fmt.Errorf("%w: answers missing", ErrSnapshotSchema)
	}

	answers, err := decodeAnswers(env.Answers)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{Version: *env.Version, SavedAt: env.SavedAt, Answers: answers}, nil
}

func decodeAnswers(data []byte) (domain.QuizAnswers, error) {
	schema := schemaFrom(domain.DefaultAnswers())

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&schema); err != nil {
		return domain.QuizAnswers{}, fmt.Errorf("%w: %w", ErrSnapshotUnparseable, err)
	}

	if err := snapshotValidator.Struct(schema); err != nil {
		return domain.QuizAnswers{}, fmt.Errorf("%w: %w", ErrSnapshotSchema, err)
	}

	return schema.toDomain(), nil
}

func schemaFrom(a domain.QuizAnswers) answersSchema {
	return answersSchema{
		Usage:               a.Usage,
		ChargeAdmission:     string(a.ChargeAdmission),
		AdmissionFee:        a.AdmissionFee,
		Currency:            a.Currency,
		AnnualVisitors:      a.AnnualVisitors,
		Products:            a.Products,
		DeviceCounts:        a.DeviceCounts,
		DashboardUsers:      a.DashboardUsers,
		Languages:           a.Languages,
		PointsOfInterest:    a.PointsOfInterest,
		UpdateFrequency:     a.UpdateFrequency,
		WifiStable:          string(a.WifiStable),
		PowerStable:         string(a.PowerStable),
		Objectives:          a.Objectives,
		CommercialStructure: a.CommercialStructure,
	}
}

func (s answersSchema) toDomain() domain.QuizAnswers {
	a := domain.QuizAnswers{
		Usage:               s.Usage,
		ChargeAdmission:     domain.YesNo(s.ChargeAdmission),
		AdmissionFee:        s.AdmissionFee,
		Currency:            s.Currency,
		AnnualVisitors:      s.AnnualVisitors,
		Products:            s.Products,
		DeviceCounts:        s.DeviceCounts,
		DashboardUsers:      s.DashboardUsers,
		Languages:           s.Languages,
		PointsOfInterest:    s.PointsOfInterest,
		UpdateFrequency:     s.UpdateFrequency,
		WifiStable:          domain.YesNo(s.WifiStable),
		PowerStable:         domain.YesNo(s.PowerStable),
		Objectives:          s.Objectives,
		CommercialStructure: s.CommercialStructure,
	}

	// Clone replaces null collections with empty ones.
	return a.Clone()
}
