package application

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// National ID types accepted at intake
const (
	NationalIDPAN     = "pan"
	NationalIDAadhaar = "aadhaar"
)

var (
	namePattern    = regexp.MustCompile(`^[a-zA-Z ]{2,40}$`)
	emailPattern   = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobilePattern  = regexp.MustCompile(`^\+?[0-9]{10,15}$`)
	cityPattern    = regexp.MustCompile(`^[A-Za-z ]+$`)
	postalPattern  = regexp.MustCompile(`^\d{4,10}$`)
	panPattern     = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	aadhaarPattern = regexp.MustCompile(`^\d{12}$`)
)

const (
	minAge         = 18
	minTenure      = 6
	maxTenure      = 360
	minAddressLen  = 5
	maxAddressLen  = 100
	dateOnlyLayout = "2006-01-02"
)

// Applicant is the structured snapshot captured by the intake steps.
// The status machine treats it as opaque.
type Applicant struct {
	FirstName   string `json:"first_name" yaml:"first_name"`
	LastName    string `json:"last_name" yaml:"last_name"`
	DateOfBirth string `json:"date_of_birth" yaml:"date_of_birth"`
	Gender      string `json:"gender,omitempty" yaml:"gender,omitempty"`
	Email       string `json:"email" yaml:"email"`
	Mobile      string `json:"mobile" yaml:"mobile"`

	AddressLine1 string `json:"address_line1" yaml:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty" yaml:"address_line2,omitempty"`
	City         string `json:"city" yaml:"city"`
	State        string `json:"state" yaml:"state"`
	PostalCode   string `json:"postal_code" yaml:"postal_code"`

	NationalIDType   string `json:"national_id_type" yaml:"national_id_type"`
	NationalIDNumber string `json:"national_id_number" yaml:"national_id_number"`

	EmploymentType string          `json:"employment_type" yaml:"employment_type"`
	MonthlyIncome  decimal.Decimal `json:"monthly_income" yaml:"monthly_income"`

	LoanProduct            string          `json:"loan_product" yaml:"loan_product"`
	LoanAmount             decimal.Decimal `json:"loan_amount" yaml:"loan_amount"`
	TenureMonths           int             `json:"tenure_months" yaml:"tenure_months"`
	LoanPurpose            string          `json:"loan_purpose,omitempty" yaml:"loan_purpose,omitempty"`
	PreferredEMIDate       int             `json:"preferred_emi_date,omitempty" yaml:"preferred_emi_date,omitempty"`
	ExistingEMIObligations decimal.Decimal `json:"existing_emi_obligations" yaml:"existing_emi_obligations"`

	BureauScore *int `json:"bureau_score,omitempty" yaml:"bureau_score,omitempty"`
	Consent     bool `json:"consent" yaml:"consent"`
}

// FullName joins first and last name
func (a Applicant) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// Validate checks every intake field and returns all failures joined.
// now is used for the minimum age check.
func (a Applicant) Validate(now time.Time) error {
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, NewValidationError(field, msg))
	}

	if !namePattern.MatchString(a.FirstName) {
		add("first_name", "only letters and spaces (2-40 chars)")
	}
	if !namePattern.MatchString(a.LastName) {
		add("last_name", "only letters and spaces (2-40 chars)")
	}

	if a.DateOfBirth == "" {
		add("date_of_birth", "date of birth is required")
	} else if dob, err := time.Parse(dateOnlyLayout, a.DateOfBirth); err != nil {
		add("date_of_birth", "date of birth must be YYYY-MM-DD")
	} else if ageAt(dob, now) < minAge {
		add("date_of_birth", "applicant must be at least 18 years old")
	}

	if !emailPattern.MatchString(a.Email) {
		add("email", "invalid email address")
	}
	if !mobilePattern.MatchString(a.Mobile) {
		add("mobile", "invalid mobile number")
	}

	if l := len(strings.TrimSpace(a.AddressLine1)); l < minAddressLen || l > maxAddressLen {
		add("address_line1", "address must be 5-100 characters")
	}
	if !cityPattern.MatchString(a.City) {
		add("city", "city must contain only letters")
	}
	if strings.TrimSpace(a.State) == "" {
		add("state", "state is required")
	}
	if !postalPattern.MatchString(a.PostalCode) {
		add("postal_code", "enter a valid postal code")
	}

	switch strings.ToLower(a.NationalIDType) {
	case NationalIDPAN:
		if !panPattern.MatchString(strings.ToUpper(a.NationalIDNumber)) {
			add("national_id_number", "PAN must look like ABCDE1234F")
		}
	case NationalIDAadhaar:
		if !aadhaarPattern.MatchString(a.NationalIDNumber) {
			add("national_id_number", "Aadhaar must be exactly 12 digits")
		}
	case "":
		add("national_id_type", "national ID type is required")
	default:
		if strings.TrimSpace(a.NationalIDNumber) == "" {
			add("national_id_number", "national ID number is required")
		}
	}

	if strings.TrimSpace(a.EmploymentType) == "" {
		add("employment_type", "employment type is required")
	}
	if !a.MonthlyIncome.IsPositive() {
		add("monthly_income", "must be a positive number")
	}

	if strings.TrimSpace(a.LoanProduct) == "" {
		add("loan_product", "loan product is required")
	}
	if !a.LoanAmount.IsPositive() {
		add("loan_amount", "must be a positive number")
	}
	if a.TenureMonths < minTenure || a.TenureMonths > maxTenure {
		add("tenure_months", "tenure must be 6-360 months")
	}
	if a.ExistingEMIObligations.IsNegative() {
		add("existing_emi_obligations", "cannot be negative")
	}
	if a.PreferredEMIDate != 0 && (a.PreferredEMIDate < 1 || a.PreferredEMIDate > 28) {
		add("preferred_emi_date", "must be a day between 1 and 28")
	}
	if a.BureauScore != nil && (*a.BureauScore < 300 || *a.BureauScore > 900) {
		add("bureau_score", "must be between 300 and 900")
	}
	if !a.Consent {
		add("consent", "consent is required")
	}

	return errors.Join(errs...)
}

func ageAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
