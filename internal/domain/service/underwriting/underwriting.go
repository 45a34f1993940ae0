// Package underwriting holds the deterministic credit assessment and offer math
// used once an application reaches credit assessment.
package underwriting

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/YoshitsuguKoike/loanstage/internal/domain/model/application"
)

// RiskCategory is the bucket derived from the bureau score
type RiskCategory string

const (
	RiskLow    RiskCategory = "low"
	RiskMedium RiskCategory = "medium"
	RiskHigh   RiskCategory = "high"
)

// FOIRBand grades an obligation-to-income ratio
type FOIRBand string

const (
	FOIRHealthy    FOIRBand = "healthy"
	FOIRBorderline FOIRBand = "borderline"
	FOIRExceeded   FOIRBand = "exceeded"
)

var (
	hundred            = decimal.NewFromInt(100)
	twelve             = decimal.NewFromInt(12)
	assessmentRate     = decimal.NewFromInt(12)
	foirHealthyLimit   = decimal.NewFromInt(40)
	foirThreshold      = decimal.NewFromInt(50)
	processingFeeRatio = decimal.RequireFromString("0.01")
	maxIncomeMultiple  = decimal.NewFromInt(60)
)

// OfferValidity is how long a generated offer stays open
const OfferValidity = 7 * 24 * time.Hour

// ErrNoBureauScore is returned when neither the applicant nor an override supplies a score
var ErrNoBureauScore = errors.New("no bureau score available")

// StandardTerms are attached to every generated offer
var StandardTerms = []string{
	"Interest rate is subject to change based on RBI guidelines",
	"Processing fee is non-refundable",
	"EMI will be auto-debited from your account",
	"Prepayment charges may apply as per policy",
	"Late payment charges will be levied for delayed EMIs",
}

// Assessment is the outcome of a credit assessment
type Assessment struct {
	CreditScore     int             `json:"credit_score"`
	ScoreSource     string          `json:"score_source"`
	RiskCategory    RiskCategory    `json:"risk_category"`
	ProposedEMI     decimal.Decimal `json:"proposed_emi"`
	FOIR            decimal.Decimal `json:"foir"`
	FOIRBand        FOIRBand        `json:"foir_band"`
	RecommendedRate decimal.Decimal `json:"recommended_rate"`
	MaxLoanAmount   decimal.Decimal `json:"max_loan_amount"`
	WithinPolicy    bool            `json:"within_policy"`
	Summary         string          `json:"summary"`
}

// Offer is a generated loan offer
type Offer struct {
	LoanAmount    decimal.Decimal `json:"loan_amount"`
	InterestRate  decimal.Decimal `json:"interest_rate"`
	TenureMonths  int             `json:"tenure_months"`
	EMI           decimal.Decimal `json:"emi"`
	ProcessingFee decimal.Decimal `json:"processing_fee"`
	TotalInterest decimal.Decimal `json:"total_interest"`
	TotalPayable  decimal.Decimal `json:"total_payable"`
	NetDisbursal  decimal.Decimal `json:"net_disbursal"`
	ValidUntil    time.Time       `json:"valid_until"`
	Terms         []string        `json:"terms"`
}

// EMI computes the reducing-balance instalment rounded to the nearest unit.
// annualRate is a percentage, e.g. 10.5.
func EMI(principal, annualRate decimal.Decimal, tenureMonths int) decimal.Decimal {
	if tenureMonths <= 0 || !principal.IsPositive() {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(tenureMonths))
	if annualRate.IsZero() {
		return principal.Div(n).Round(0)
	}
	r := annualRate.Div(twelve.Mul(hundred))
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	return principal.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1))).Round(0)
}

// FOIR is (existing EMI + proposed EMI) / monthly income, as a percentage
func FOIR(monthlyIncome, existingEMI, proposedEMI decimal.Decimal) decimal.Decimal {
	if !monthlyIncome.IsPositive() {
		return decimal.Zero
	}
	return existingEMI.Add(proposedEMI).Div(monthlyIncome).Mul(hundred).Round(2)
}

// GradeFOIR buckets a FOIR percentage
func GradeFOIR(foir decimal.Decimal) FOIRBand {
	switch {
	case foir.LessThanOrEqual(foirHealthyLimit):
		return FOIRHealthy
	case foir.LessThanOrEqual(foirThreshold):
		return FOIRBorderline
	default:
		return FOIRExceeded
	}
}

// CategorizeRisk maps a bureau score to a risk category
func CategorizeRisk(score int) RiskCategory {
	switch {
	case score >= 750:
		return RiskLow
	case score >= 650:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// RecommendedRate returns the annual rate offered for a risk category
func RecommendedRate(c RiskCategory) decimal.Decimal {
	switch c {
	case RiskLow:
		return decimal.RequireFromString("10.5")
	case RiskMedium:
		return decimal.RequireFromString("12.5")
	default:
		return decimal.RequireFromString("15.0")
	}
}

// MaxLoanAmount caps the principal at 60x monthly income
func MaxLoanAmount(monthlyIncome decimal.Decimal) decimal.Decimal {
	return monthlyIncome.Mul(maxIncomeMultiple).Floor()
}

// ResolveScore picks the credit score: the latest override wins over the applicant's bureau score
func ResolveScore(a application.Applicant, overrides []application.ScoreOverride) (int, string, error) {
	if score, ok := application.LatestScore(overrides); ok {
		return int(decimal.NewFromFloat(score).Round(0).IntPart()), "override", nil
	}
	if a.BureauScore != nil {
		return *a.BureauScore, "bureau", nil
	}
	return 0, "", ErrNoBureauScore
}

// Assess runs the credit assessment for an applicant
func Assess(a application.Applicant, overrides []application.ScoreOverride) (Assessment, error) {
	score, source, err := ResolveScore(a, overrides)
	if err != nil {
		return Assessment{}, err
	}
	if !a.MonthlyIncome.IsPositive() {
		return Assessment{}, application.NewValidationError("monthly_income", "must be a positive number")
	}

	proposed := EMI(a.LoanAmount, assessmentRate, a.TenureMonths)
	foir := FOIR(a.MonthlyIncome, a.ExistingEMIObligations, proposed)
	risk := CategorizeRisk(score)
	maxAmount := MaxLoanAmount(a.MonthlyIncome)
	band := GradeFOIR(foir)

	return Assessment{
		CreditScore:     score,
		ScoreSource:     source,
		RiskCategory:    risk,
		ProposedEMI:     proposed,
		FOIR:            foir,
		FOIRBand:        band,
		RecommendedRate: RecommendedRate(risk),
		MaxLoanAmount:   maxAmount,
		WithinPolicy:    band != FOIRExceeded && a.LoanAmount.LessThanOrEqual(maxAmount),
		Summary: fmt.Sprintf("applicant shows %s risk profile with FOIR of %s%%",
			risk, foir.StringFixed(1)),
	}, nil
}

// GenerateOffer prices a loan offer from an assessment
func GenerateOffer(a application.Applicant, as Assessment, now time.Time) (Offer, error) {
	if !a.LoanAmount.IsPositive() || a.TenureMonths <= 0 {
		return Offer{}, application.NewValidationError("loan_amount", "loan amount and tenure are required")
	}

	emi := EMI(a.LoanAmount, as.RecommendedRate, a.TenureMonths)
	totalPayable := emi.Mul(decimal.NewFromInt(int64(a.TenureMonths)))
	fee := a.LoanAmount.Mul(processingFeeRatio).Floor()

	terms := make([]string, len(StandardTerms))
	copy(terms, StandardTerms)

	return Offer{
		LoanAmount:    a.LoanAmount,
		InterestRate:  as.RecommendedRate,
		TenureMonths:  a.TenureMonths,
		EMI:           emi,
		ProcessingFee: fee,
		TotalInterest: totalPayable.Sub(a.LoanAmount),
		TotalPayable:  totalPayable,
		NetDisbursal:  a.LoanAmount.Sub(fee),
		ValidUntil:    now.UTC().Add(OfferValidity),
		Terms:         terms,
	}, nil
}
