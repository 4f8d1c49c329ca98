package domain

import "slices"

// Answer field names, as they appear in snapshots and API payloads.
const (
	FieldUsage               = "usage"
	FieldChargeAdmission     = "chargeAdmission"
	FieldAdmissionFee        = "admissionFee"
	FieldCurrency            = "currency"
	FieldAnnualVisitors      = "annualVisitors"
	FieldProducts            = "products"
	FieldDeviceCounts        = "deviceCounts"
	FieldDashboardUsers      = "dashboardUsers"
	FieldLanguages           = "languages"
	FieldPointsOfInterest    = "pointsOfInterest"
	FieldUpdateFrequency     = "updateFrequency"
	FieldWifiStable          = "wifiStable"
	FieldPowerStable         = "powerStable"
	FieldObjectives          = "objectives"
	FieldCommercialStructure = "commercialStructure"
)

// MaxObjectives caps how many objectives a gallery may pick.
const MaxObjectives = 3

// Catalog option values referenced by the recommendation rules.
const (
	ObjectiveImproveAccessibility = "Improve accessibility"
	UpdateFrequencyMonthly        = "Monthly"
	CurrencyCustom                = "Custom"
)

// Catalog holds the fixed option lists offered by the quiz.
type Catalog struct {
	Usage               []string          `json:"usage"`
	Products            []string          `json:"products"`
	ProductTooltips     map[string]string `json:"productTooltips"`
	Languages           []string          `json:"languages"`
	PointsOfInterest    []string          `json:"pointsOfInterest"`
	UpdateFrequency     []string          `json:"updateFrequency"`
	Objectives          []string          `json:"objectives"`
	CommercialStructure []string          `json:"commercialStructure"`
	Currencies          []string          `json:"currencies"`
	MaxObjectives       int               `json:"maxObjectives"`
}

var (
	usageOptions = []string{"Own gallery", "Exhibitions/fairs"}

	productOptions = []string{"AI-only handset", "NFC-only guide", "AI + NFC handset"}

	productTooltips = map[string]string{
		"AI-only handset": "Designed for conversational-first experiences. Visitors can ask questions " +
			"and receive real-time answers powered by Tree'd's closed-domain AI model.",
		"NFC-only guide": "A streamlined, tap-to-listen system. Visitors tap near exhibits to hear " +
			"curated, pre-approved audio stories, no conversational AI layer included.",
		"AI + NFC handset": "Tree'd complete system. Combines tap-triggered exhibit storytelling with " +
			"real-time conversational AI. Visitors tap to start a curated story, then ask follow-up " +
			"questions for deeper exploration.",
	}

	languageOptions = []string{
		"Arabic", "English", "Spanish", "French", "German",
		"Portuguese", "Russian", "Italian", "Polish", "Ukrainian",
		"Mandarin Chinese", "Hindi", "Urdu", "Japanese", "Turkish",
	}

	pointsOptions = []string{"<10", "10-15", "15-20", "20-25", "30+"}

	updateOptions = []string{"Monthly", "2 months", "3 months", "4 months", "5 months", "6+ months"}

	objectiveOptions = []string{
		"Increase engagement",
		"Increase dwell time",
		"Increase revenue per visitor",
		ObjectiveImproveAccessibility,
		"Modernize brand perception",
		"Replace outdated system",
	}

	commercialOptions = []string{"Upfront purchase", "Leasing", "Revenue share", "Not sure"}

	currencyOptions = []string{"EUR", "USD", "GBP", "EGP", "AED", "SAR", "TRY", CurrencyCustom}
)

// DefaultCatalog returns a copy of the option lists.
func DefaultCatalog() Catalog {
	tooltips := make(map[string]string, len(productTooltips))
	for k, v := range productTooltips {
		tooltips[k] = v
	}

	return Catalog{
		Usage:               slices.Clone(usageOptions),
		Products:            slices.Clone(productOptions),
		ProductTooltips:     tooltips,
		Languages:           slices.Clone(languageOptions),
		PointsOfInterest:    slices.Clone(pointsOptions),
		UpdateFrequency:     slices.Clone(updateOptions),
		Objectives:          slices.Clone(objectiveOptions),
		CommercialStructure: slices.Clone(commercialOptions),
		Currencies:          slices.Clone(currencyOptions),
		MaxObjectives:       MaxObjectives,
	}
}

// optionsFor returns the enumeration backing a field, or nil for free-form fields.
func optionsFor(field string) []string {
	switch field {
	case FieldUsage:
		return usageOptions
	case FieldProducts, FieldDeviceCounts:
		return productOptions
	case FieldLanguages:
		return languageOptions
	case FieldPointsOfInterest:
		return pointsOptions
	case FieldUpdateFrequency:
		return updateOptions
	case FieldObjectives:
		return objectiveOptions
	case FieldCommercialStructure:
		return commercialOptions
	default:
		return nil
	}
}

// HasCatalog reports whether field is backed by a fixed enumeration.
func HasCatalog(field string) bool {
	return optionsFor(field) != nil
}

// InCatalog reports whether value belongs to the enumeration of field.
// Fields without an enumeration accept nothing.
func InCatalog(field, value string) bool {
	return slices.Contains(optionsFor(field), value)
}

// IsMultiSelect reports whether field is a set-valued answer.
func IsMultiSelect(field string) bool {
	switch field {
	case FieldUsage, FieldProducts, FieldLanguages, FieldObjectives:
		return true
	default:
		return false
	}
}
