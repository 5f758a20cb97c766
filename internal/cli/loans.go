package cli

import (
	"context"
	"fmt"

	"github.com/hongminglow/loandesk/internal/format"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/validate"
)

func (a *App) apply(ctx context.Context, args []string) error {
	fs := a.flags("apply")
	name := fs.String("name", "", "customer name")
	amount := fs.String("amount", "", "loan amount between 100 and 100000")
	if _, err := a.parse(fs, args); err != nil {
		return err
	}

	customer, err := a.value(*name, "Customer name: ")
	if err != nil {
		return err
	}
	raw, err := a.value(*amount, "Loan amount: ")
	if err != nil {
		return err
	}
	loanAmount, err := validate.ParseAmount(raw)
	if err != nil {
		return fmt.Errorf("loan amount: %w", err)
	}

	app, err := a.loans.SubmitApplication(ctx, a.sessions.Principal(), customer, loanAmount)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Submitted %s for %s (%s)\n", app.ApplicationID, format.Currency(app.LoanAmount), app.Status)
	return nil
}

func (a *App) list(ctx context.Context, _ []string) error {
	apps, err := a.loans.UserApplications(ctx, a.sessions.Principal())
	if err != nil {
		return err
	}
	a.printApplications(apps)
	return nil
}

func (a *App) ids(ctx context.Context, _ []string) error {
	keys, err := a.loans.ApplicationIDs(ctx, a.sessions.Principal())
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(a.out, k)
	}
	return nil
}

func (a *App) show(ctx context.Context, args []string) error {
	id, err := a.oneArg("show", args)
	if err != nil {
		return err
	}
	p := a.sessions.Principal()
	app, err := a.loans.ApplicationByID(p.Context(ctx), id)
	if err != nil {
		return err
	}
	if app == nil {
		fmt.Fprintf(a.out, "Application %s not found.\n", id)
		return loans.ErrApplicationNotFound
	}
	a.printApplication(*app)
	return nil
}

func (a *App) pay(ctx context.Context, args []string) error {
	fs := a.flags("pay")
	appID := fs.String("app", "", "application id")
	amount := fs.String("amount", "", "payment amount")
	if _, err := a.parse(fs, args); err != nil {
		return err
	}

	p := a.sessions.Principal()
	id := *appID
	if id == "" {
		keys, err := a.loans.ApplicationIDs(ctx, p)
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			fmt.Fprintln(a.out, "Your applications:")
			for _, k := range keys {
				fmt.Fprintf(a.out, "  %s\n", k)
			}
		}
		if id, err = a.readLine("Application id: "); err != nil {
			return err
		}
	}
	raw, err := a.value(*amount, "Payment amount: ")
	if err != nil {
		return err
	}
	paid, err := validate.ParseAmount(raw)
	if err != nil {
		return fmt.Errorf("payment amount: %w", err)
	}

	payment, err := a.loans.SubmitPayment(ctx, p, id, paid)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Recorded %s: %s on %s\n", payment.PaymentID, format.Currency(payment.Amount), payment.ApplicationID)
	return nil
}

func (a *App) payments(ctx context.Context, args []string) error {
	fs := a.flags("payments")
	appID := fs.String("app", "", "only payments for this application")
	if _, err := a.parse(fs, args); err != nil {
		return err
	}

	p := a.sessions.Principal()
	if *appID != "" {
		list, err := a.loans.PaymentsForApplication(ctx, p, *appID)
		if err != nil {
			return err
		}
		a.printPayments(list)
		return nil
	}
	list, err := a.loans.Payments(ctx, p)
	if err != nil {
		return err
	}
	a.printPayments(list)
	return nil
}
