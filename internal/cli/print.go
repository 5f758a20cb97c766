package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/hongminglow/loandesk/internal/dashboard"
	"github.com/hongminglow/loandesk/internal/format"
	"github.com/hongminglow/loandesk/internal/models"
)

func (a *App) printApplications(apps []models.LoanApplication) {
	if len(apps) == 0 {
		fmt.Fprintln(a.out, "No loan applications found.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "APPLICATION\tCUSTOMER\tAMOUNT\tTYPE\tSTATUS\tSUBMITTED\tNOTE")
	for _, app := range apps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			app.ApplicationID,
			app.CustomerName,
			format.Currency(app.LoanAmount),
			app.LoanTypeOrDefault(),
			app.Status,
			format.Date(app.CreatedAt, a.loc),
			app.Reason(),
		)
	}
	tw.Flush()
}

func (a *App) printApplication(app models.LoanApplication) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Application:\t%s\n", app.ApplicationID)
	fmt.Fprintf(tw, "Customer:\t%s\n", app.CustomerName)
	fmt.Fprintf(tw, "Amount:\t%s\n", format.Currency(app.LoanAmount))
	fmt.Fprintf(tw, "Loan type:\t%s\n", app.LoanTypeOrDefault())
	fmt.Fprintf(tw, "Status:\t%s\n", app.Status)
	switch app.Status {
	case models.StatusRejected:
		fmt.Fprintf(tw, "Rejection reason:\t%s\n", app.Reason())
	case models.StatusEvidenceRequired:
		fmt.Fprintf(tw, "Evidence required:\t%s\n", app.Reason())
	}
	fmt.Fprintf(tw, "Submitted:\t%s\n", format.DateTime(app.CreatedAt, a.loc))
	if app.UpdatedAt != nil {
		fmt.Fprintf(tw, "Updated:\t%s\n", format.DateTime(*app.UpdatedAt, a.loc))
	}
	if next := dashboard.Actions(app); len(next) > 0 {
		fmt.Fprintf(tw, "Next steps:\t%s\n", joinStatuses(next))
	}
	tw.Flush()
}

func (a *App) printPayments(payments []models.Payment) {
	if len(payments) == 0 {
		fmt.Fprintln(a.out, "No payments found.")
		return
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAYMENT\tAPPLICATION\tAMOUNT\tPAID")
	for _, p := range payments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.PaymentID, p.ApplicationID, format.Currency(p.Amount), format.DateTime(p.CreatedAt, a.loc))
	}
	tw.Flush()
}

func joinStatuses(statuses []models.Status) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
