package domain

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Quote request defaults.
const (
	DefaultQuoteRecipient = "mo@treed.co"
	DefaultQuoteSubject   = "Quotation Request - Tree'd History Guide"
)

const profileRule = "-------------------------"

// QuoteOptions configures the compose link. Empty fields use the defaults.
type QuoteOptions struct {
	Recipient string
	Subject   string
}

func (o QuoteOptions) withDefaults() QuoteOptions {
	if o.Recipient == "" {
		o.Recipient = DefaultQuoteRecipient
	}
	if o.Subject == "" {
		o.Subject = DefaultQuoteSubject
	}

	return o
}

var numberPrinter = message.NewPrinter(language.AmericanEnglish)

// FormatCount renders n with en-US digit grouping, e.g. 5000 -> "5,000".
func FormatCount(n int) string {
	return numberPrinter.Sprintf("%d", n)
}

// formatAmount renders a fee the shortest way that round-trips: 10 -> "10", 12.5 -> "12.5".
func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// QuoteBody returns the plain-text gallery profile sent with a quote request.
func QuoteBody(a QuizAnswers) string {
	admission := string(a.ChargeAdmission)
	if a.ChargeAdmission == Yes {
		admission += fmt.Sprintf(" (%s %s)", formatAmount(a.AdmissionFee), a.Currency)
	}

	return strings.Join([]string{
		"GALLERY PROFILE SUMMARY:",
		profileRule,
		"Usage Locations: " + strings.Join(a.Usage, ", "),
		"Admission: " + admission,
		"Annual Visitors: " + FormatCount(a.AnnualVisitors),
		"Total Devices: " + strconv.Itoa(a.TotalDevices()),
		profileRule,
		"",
		"Please provide a formal quotation.",
	}, "\n")
}

// QuoteLink builds the mailto: link the visitor dispatches from their own mail client.
func QuoteLink(a QuizAnswers, opts QuoteOptions) string {
	opts = opts.withDefaults()

	return "mailto:" + opts.Recipient +
		"?subject=" + EncodeURIComponent(opts.Subject) +
		"&body=" + EncodeURIComponent(QuoteBody(a))
}

// EncodeURIComponent percent-encodes s as UTF-8, leaving only
// A-Z a-z 0-9 - _ . ! ~ * ' ( ) unescaped.
func EncodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if isURIUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}

	return b.String()
}

func isURIUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	}

	return strings.IndexByte("-_.!~*'()", c) >= 0
}

// ProfileItem is one labelled value of the results profile.
type ProfileItem struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Accent bool   `json:"accent,omitempty"`
}

// Profile is the human-readable recap shown next to the recommendations.
type Profile struct {
	Summary []ProfileItem `json:"summary"`
	Details []ProfileItem `json:"details"`
}

// BuildProfile derives the results recap from the final answers.
func BuildProfile(a QuizAnswers) Profile {
	fee := "No Fee"
	if a.ChargeAdmission == Yes {
		fee = formatAmount(a.AdmissionFee) + " " + a.Currency
	}

	wifi := "Weak"
	if a.WifiStable == Yes {
		wifi = "Available"
	}

	power := "Unreliable"
	if a.PowerStable == Yes {
		power = "Stable"
	}

	inventory := make([]string, 0, len(a.Products))
	for _, p := range a.Products {
		inventory = append(inventory, fmt.Sprintf("%s (%d)", p, a.DeviceCount(p)))
	}

	return Profile{
		Summary: []ProfileItem{
			{Label: "Units Needed", Value: FormatCount(a.TotalDevices()), Accent: true},
			{Label: "Admission Fee", Value: fee},
			{Label: "Footfall", Value: FormatCount(a.AnnualVisitors)},
			{Label: "Admins", Value: strconv.Itoa(a.DashboardUsers), Accent: true},
			{Label: "Wi-Fi Coverage", Value: wifi},
			{Label: "Power Supply", Value: power},
		},
		Details: []ProfileItem{
			{Label: "Implementation Site", Value: strings.Join(a.Usage, ", ")},
			{Label: "Inventory Mapping", Value: strings.Join(inventory, ", ")},
			{Label: "Intelligence Permissions", Value: fmt.Sprintf("%d Users", a.DashboardUsers)},
			{Label: "Language Matrix", Value: strings.Join(a.Languages, ", ")},
			{Label: "Curation Depth", Value: a.PointsOfInterest + " POIs"},
			{Label: "Refresh Rate", Value: a.UpdateFrequency},
			{Label: "Commercial Intent", Value: a.CommercialStructure},
			{Label: "Strategic KPIs", Value: strings.Join(a.Objectives, " • ")},
		},
	}
}
