package presenter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/YoshitsuguKoike/loanstage/internal/application/dto"
	"github.com/YoshitsuguKoike/loanstage/internal/application/port/output"
	"github.com/YoshitsuguKoike/loanstage/internal/domain/model"
)

const progressWidth = 20

// TextPresenter implements output.ApplicationPresenter for human-readable CLI output
type TextPresenter struct {
	output io.Writer
}

// NewTextPresenter creates a new text presenter
func NewTextPresenter(output io.Writer) output.ApplicationPresenter {
	return &TextPresenter{output: output}
}

// PresentSuccess presents a successful result
func (p *TextPresenter) PresentSuccess(message string, data interface{}) error {
	fmt.Fprintf(p.output, "✓ %s\n", message)
	if data != nil {
		fmt.Fprintf(p.output, "%+v\n", data)
	}
	return nil
}

// PresentError presents an error and returns it
func (p *TextPresenter) PresentError(err error) error {
	fmt.Fprintf(p.output, "✗ Error: %v\n", err)
	return err
}

func (p *TextPresenter) PresentApplication(app dto.ApplicationDTO) error {
	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Application:\t%s\n", app.ID)
	fmt.Fprintf(w, "Applicant:\t%s\n", app.ApplicantName)
	fmt.Fprintf(w, "Stage:\t%s (%s)\n", app.StageLabel, app.Stage)
	fmt.Fprintf(w, "Progress:\t%s %.0f%%\n", progressBar(app.Progress), app.Progress)
	if app.Terminal {
		fmt.Fprintf(w, "Next:\t(terminal)\n")
	} else {
		fmt.Fprintf(w, "Next:\t%s\n", strings.Join(app.AllowedTargets, ", "))
	}
	fmt.Fprintf(w, "Loan:\t%s %s over %d months\n",
		app.Applicant.LoanProduct, app.Applicant.LoanAmount.StringFixed(2), app.Applicant.TenureMonths)
	fmt.Fprintf(w, "Version:\t%d\n", app.Version)
	fmt.Fprintf(w, "Created:\t%s\n", formatTime(app.CreatedAt))
	fmt.Fprintf(w, "Updated:\t%s\n", formatTime(app.UpdatedAt))
	return w.Flush()
}

func (p *TextPresenter) PresentTransition(res dto.TransitionResponse) error {
	t := res.Transition
	fmt.Fprintf(p.output, "✓ %s: %s → %s by %s\n", res.Application.ID, t.From, t.To, t.Actor)
	if t.Note != "" {
		fmt.Fprintf(p.output, "  Note: %s\n", t.Note)
	}
	if res.Attempts > 1 {
		fmt.Fprintf(p.output, "  Applied after %d attempts\n", res.Attempts)
	}
	fmt.Fprintln(p.output)
	return p.PresentApplication(res.Application)
}

func (p *TextPresenter) PresentHistory(res dto.HistoryResponse) error {
	fmt.Fprintf(p.output, "History of %s (now %s)\n\n", res.ApplicationID, res.Stage)
	if len(res.Transitions) == 0 {
		fmt.Fprintln(p.output, "No transitions yet.")
		return nil
	}

	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tWHEN\tFROM\tTO\tACTOR\tNOTE")
	for i, t := range res.Transitions {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, formatTime(t.Timestamp), t.From, t.To, t.Actor, t.Note)
	}
	return w.Flush()
}

func (p *TextPresenter) PresentList(res dto.ListApplicationsResponse) error {
	if res.Count == 0 {
		fmt.Fprintln(p.output, "No applications found.")
		return nil
	}

	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAPPLICANT\tSTAGE\tPROGRESS\tAMOUNT\tUPDATED")
	for _, app := range res.Applications {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\t%s\n",
			app.ID, app.ApplicantName, app.Stage, app.Progress,
			app.Applicant.LoanAmount.StringFixed(2), formatTime(app.UpdatedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(p.output, "\n%d application(s)\n", res.Count)
	return nil
}

func (p *TextPresenter) PresentOverrides(applicationID string, overrides []dto.ScoreOverrideDTO) error {
	fmt.Fprintf(p.output, "Score overrides for %s\n\n", applicationID)
	if len(overrides) == 0 {
		fmt.Fprintln(p.output, "No overrides recorded.")
		return nil
	}

	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "WHEN\tBY\tPREVIOUS\tNEW\tREASON")
	for _, o := range overrides {
		prev := "-"
		if o.PreviousScore != nil {
			prev = fmt.Sprintf("%g", *o.PreviousScore)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%g\t%s\n", formatTime(o.Timestamp), o.OverriddenBy, prev, o.NewScore, o.Reason)
	}
	return w.Flush()
}

func (p *TextPresenter) PresentAssessment(res dto.AssessmentResponse) error {
	a := res.Assessment
	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Application:\t%s (%s)\n", res.ApplicationID, res.Stage)
	fmt.Fprintf(w, "Credit score:\t%d (%s)\n", a.CreditScore, a.ScoreSource)
	fmt.Fprintf(w, "Risk:\t%s\n", a.RiskCategory)
	fmt.Fprintf(w, "Proposed EMI:\t%s\n", a.ProposedEMI.StringFixed(0))
	fmt.Fprintf(w, "FOIR:\t%s%% (%s)\n", a.FOIR.StringFixed(2), a.FOIRBand)
	fmt.Fprintf(w, "Recommended rate:\t%s%%\n", a.RecommendedRate.StringFixed(1))
	fmt.Fprintf(w, "Max loan amount:\t%s\n", a.MaxLoanAmount.StringFixed(0))
	fmt.Fprintf(w, "Within policy:\t%t\n", a.WithinPolicy)
	if a.Summary != "" {
		fmt.Fprintf(w, "Summary:\t%s\n", a.Summary)
	}
	return w.Flush()
}

func (p *TextPresenter) PresentOffer(res dto.OfferResponse) error {
	o := res.Offer
	w := tabwriter.NewWriter(p.output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Offer for:\t%s (%s)\n", res.ApplicationID, res.Stage)
	fmt.Fprintf(w, "Loan amount:\t%s\n", o.LoanAmount.StringFixed(0))
	fmt.Fprintf(w, "Interest rate:\t%s%% p.a.\n", o.InterestRate.StringFixed(1))
	fmt.Fprintf(w, "Tenure:\t%d months\n", o.TenureMonths)
	fmt.Fprintf(w, "EMI:\t%s\n", o.EMI.StringFixed(0))
	fmt.Fprintf(w, "Processing fee:\t%s\n", o.ProcessingFee.StringFixed(0))
	fmt.Fprintf(w, "Total interest:\t%s\n", o.TotalInterest.StringFixed(0))
	fmt.Fprintf(w, "Total payable:\t%s\n", o.TotalPayable.StringFixed(0))
	fmt.Fprintf(w, "Net disbursal:\t%s\n", o.NetDisbursal.StringFixed(0))
	fmt.Fprintf(w, "Valid until:\t%s\n", o.ValidUntil.Format("2006-01-02"))
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(p.output, "\nTerms:")
	for _, term := range o.Terms {
		fmt.Fprintf(p.output, "  - %s\n", term)
	}
	return nil
}

// StageRow is one line of the stage catalogue
type StageRow struct {
	Stage    model.Stage
	Progress float64
}

// PresentStages prints every stage with its label and reachable targets
func PresentStages(out io.Writer, rows []StageRow) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STAGE\tLABEL\tTONE\tPROGRESS\tNEXT")
	for _, r := range rows {
		next := make([]string, 0, 2)
		for _, s := range r.Stage.Successors() {
			next = append(next, s.String())
		}
		nextStr := strings.Join(next, ", ")
		if r.Stage.IsTerminal() {
			nextStr = "(terminal)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f%%\t%s\n", r.Stage, r.Stage.Label(), r.Stage.Tone(), r.Progress, nextStr)
	}
	return w.Flush()
}

func progressBar(percent float64) string {
	filled := int(percent / 100 * progressWidth)
	if filled > progressWidth {
		filled = progressWidth
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", progressWidth-filled) + "]"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
