package application

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validApplicant() Applicant {
	score := 760
	return Applicant{
		FirstName:              "Asha",
		LastName:               "Verma",
		DateOfBirth:            "1990-05-14",
		Email:                  "asha.verma@example.com",
		Mobile:                 "+919876543210",
		AddressLine1:           "12 MG Road",
		City:                   "Bengaluru",
		State:                  "Karnataka",
		PostalCode:             "560001",
		NationalIDType:         NationalIDPAN,
		NationalIDNumber:       "ABCDE1234F",
		EmploymentType:         "salaried",
		MonthlyIncome:          decimal.NewFromInt(85000),
		LoanProduct:            "personal",
		LoanAmount:             decimal.NewFromInt(300000),
		TenureMonths:           36,
		ExistingEMIObligations: decimal.NewFromInt(5000),
		BureauScore:            &score,
		Consent:                true,
	}
}

// fields collects the field names of every joined validation error
func fields(err error) []string {
	var out []string
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return out
	}
	for _, e := range joined.Unwrap() {
		var ve *ValidationError
		if errors.As(e, &ve) {
			out = append(out, ve.Field)
		}
	}
	return out
}

func TestApplicant_Validate(t *testing.T) {
	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		mutate    func(a *Applicant)
		wantField string
	}{
		{"valid", func(a *Applicant) {}, ""},
		{"short first name", func(a *Applicant) { a.FirstName = "A" }, "first_name"},
		{"digits in last name", func(a *Applicant) { a.LastName = "V3rma" }, "last_name"},
		{"under age", func(a *Applicant) { a.DateOfBirth = "2010-01-01" }, "date_of_birth"},
		{"turns 18 tomorrow", func(a *Applicant) { a.DateOfBirth = "2006-02-02" }, "date_of_birth"},
		{"bad date", func(a *Applicant) { a.DateOfBirth = "14/05/1990" }, "date_of_birth"},
		{"bad email", func(a *Applicant) { a.Email = "asha@" }, "email"},
		{"short mobile", func(a *Applicant) { a.Mobile = "12345" }, "mobile"},
		{"short address", func(a *Applicant) { a.AddressLine1 = "12" }, "address_line1"},
		{"city digits", func(a *Applicant) { a.City = "Area 51" }, "city"},
		{"missing state", func(a *Applicant) { a.State = "" }, "state"},
		{"postal too short", func(a *Applicant) { a.PostalCode = "123" }, "postal_code"},
		{"bad PAN", func(a *Applicant) { a.NationalIDNumber = "1234567890" }, "national_id_number"},
		{"lowercase PAN accepted", func(a *Applicant) { a.NationalIDNumber = "abcde1234f" }, ""},
		{"Aadhaar", func(a *Applicant) {
			a.NationalIDType = NationalIDAadhaar
			a.NationalIDNumber = "123412341234"
		}, ""},
		{"bad Aadhaar", func(a *Applicant) {
			a.NationalIDType = NationalIDAadhaar
			a.NationalIDNumber = "1234"
		}, "national_id_number"},
		{"missing id type", func(a *Applicant) { a.NationalIDType = "" }, "national_id_type"},
		{"zero income", func(a *Applicant) { a.MonthlyIncome = decimal.Zero }, "monthly_income"},
		{"negative amount", func(a *Applicant) { a.LoanAmount = decimal.NewFromInt(-1) }, "loan_amount"},
		{"tenure too long", func(a *Applicant) { a.TenureMonths = 480 }, "tenure_months"},
		{"negative obligations", func(a *Applicant) { a.ExistingEMIObligations = decimal.NewFromInt(-10) }, "existing_emi_obligations"},
		{"emi date out of range", func(a *Applicant) { a.PreferredEMIDate = 31 }, "preferred_emi_date"},
		{"bureau score out of range", func(a *Applicant) { s := 950; a.BureauScore = &s }, "bureau_score"},
		{"no consent", func(a *Applicant) { a.Consent = false }, "consent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validApplicant()
			tt.mutate(&a)
			err := a.Validate(now)

			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidation(err))
			assert.Equal(t, []string{tt.wantField}, fields(err))
		})
	}
}

func TestApplicant_ValidateReportsEveryField(t *testing.T) {
	err := Applicant{}.Validate(time.Now())
	require.Error(t, err)
	got := fields(err)
	assert.Contains(t, got, "first_name")
	assert.Contains(t, got, "email")
	assert.Contains(t, got, "loan_amount")
	assert.Contains(t, got, "consent")
}
