package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hongminglow/loandesk/internal/dashboard"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
	"github.com/hongminglow/loandesk/internal/workflow"
)

const reviewHelp = `commands:
  next | prev | page N          move between pages
  status STATUS|all             filter by status on the server
  sort createdAt|loanAmount [asc|desc]
  find TEXT                     narrow the page by name or id (empty clears)
  approve ID
  reject ID REASON...
  evidence ID DESCRIPTION...
  refresh | help | quit`

func (a *App) search(ctx context.Context, args []string) error {
	term := strings.Join(args, " ")
	apps, err := a.loans.SearchApplications(ctx, a.sessions.Principal(), term)
	if err != nil {
		return err
	}
	a.printApplications(apps)
	return nil
}

func (a *App) approve(ctx context.Context, args []string) error {
	id, err := a.oneArg("approve", args)
	if err != nil {
		return err
	}
	return a.transition(ctx, id, workflow.Approve())
}

func (a *App) reject(ctx context.Context, args []string) error {
	fs := a.flags("reject")
	reason := fs.String("reason", "", "rejection reason")
	rest, err := a.parse(fs, args)
	if err != nil {
		return err
	}
	id, err := a.oneArg("reject", rest)
	if err != nil {
		return err
	}
	text, err := a.value(*reason, "Rejection reason: ")
	if err != nil {
		return err
	}
	return a.transition(ctx, id, workflow.Reject(text))
}

func (a *App) evidence(ctx context.Context, args []string) error {
	fs := a.flags("evidence")
	desc := fs.String("description", "", "evidence the customer must provide")
	rest, err := a.parse(fs, args)
	if err != nil {
		return err
	}
	id, err := a.oneArg("evidence", rest)
	if err != nil {
		return err
	}
	text, err := a.value(*desc, "Evidence required: ")
	if err != nil {
		return err
	}
	return a.transition(ctx, id, workflow.RequestEvidence(text))
}

func (a *App) transition(ctx context.Context, id string, t workflow.Transition) error {
	app, err := a.loans.UpdateApplicationStatus(ctx, a.sessions.Principal(), id, t.To, t.Reason)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", app.ApplicationID, app.Status)
	return nil
}

// review runs the interactive dashboard until quit or end of input.
func (a *App) review(ctx context.Context, args []string) error {
	fs := a.flags("review")
	page := fs.Int("page", 1, "page number")
	size := fs.Int("size", 10, "page size")
	status := fs.String("status", "", "only this status")
	sortBy := fs.String("sort", string(storage.SortByCreatedAt), "createdAt or loanAmount")
	order := fs.String("order", string(storage.Descending), "asc or desc")
	if _, err := a.parse(fs, args); err != nil {
		return err
	}

	q := storage.ListQuery{
		Page:      *page,
		PageSize:  *size,
		SortBy:    storage.SortField(*sortBy),
		SortOrder: storage.SortOrder(*order),
	}
	if *status != "" {
		st, err := models.ParseStatus(*status)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}
		q.Status = st
	}

	board := dashboard.NewBoard(a.loans, a.sessions.Principal())
	defer board.Close()
	if err := board.Load(ctx, q); err != nil {
		return err
	}

	var filter string
	a.renderBoard(board, filter)
	for {
		line, err := a.readLine("review> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		verb, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)

		switch strings.ToLower(verb) {
		case "":
			continue
		case "q", "quit", "exit":
			return nil
		case "help", "?":
			fmt.Fprintln(a.out, reviewHelp)
			continue
		case "n", "next":
			err = a.turnPage(ctx, board, 1)
		case "p", "prev":
			err = a.turnPage(ctx, board, -1)
		case "page":
			n, convErr := strconv.Atoi(rest)
			if convErr != nil || n < 1 {
				fmt.Fprintln(a.out, "page needs a positive number")
				continue
			}
			cur := board.View().Query
			cur.Page = n
			err = board.Load(ctx, cur)
		case "status":
			cur := board.View().Query
			cur.Page = 1
			cur.Status = ""
			if rest != "" && !strings.EqualFold(rest, "all") {
				st, parseErr := models.ParseStatus(rest)
				if parseErr != nil {
					fmt.Fprintln(a.out, parseErr)
					continue
				}
				cur.Status = st
			}
			err = board.Load(ctx, cur)
		case "sort":
			field, dir, _ := strings.Cut(rest, " ")
			cur := board.View().Query
			cur.SortBy = storage.SortField(field)
			cur.SortOrder = storage.SortOrder(strings.TrimSpace(dir))
			err = board.Load(ctx, cur)
		case "find":
			filter = rest
		case "refresh":
			err = board.Refresh(ctx)
		case "approve", "reject", "evidence":
			err = a.reviewAction(ctx, board, strings.ToLower(verb), rest)
		default:
			fmt.Fprintf(a.out, "unknown command %q; type help\n", verb)
			continue
		}
		if err != nil {
			fmt.Fprintf(a.out, "error: %v\n", err)
		}
		a.renderBoard(board, filter)
	}
}

func (a *App) reviewAction(ctx context.Context, board *dashboard.Board, verb, rest string) error {
	id, text, _ := strings.Cut(rest, " ")
	if id == "" {
		return fmt.Errorf("%s needs an application id", verb)
	}
	var t workflow.Transition
	switch verb {
	case "approve":
		t = workflow.Approve()
	case "reject":
		t = workflow.Reject(text)
	case "evidence":
		t = workflow.RequestEvidence(text)
	}
	return board.Review(ctx, id, t)
}

func (a *App) turnPage(ctx context.Context, board *dashboard.Board, delta int) error {
	v := board.View()
	next := v.Query.Page + delta
	if next < 1 || (v.Page.TotalPages > 0 && next > v.Page.TotalPages) {
		return errors.New("no more pages")
	}
	q := v.Query
	q.Page = next
	return board.Load(ctx, q)
}

func (a *App) renderBoard(board *dashboard.Board, filter string) {
	v := board.View()
	status := "all"
	if v.Query.Status != "" {
		status = string(v.Query.Status)
	}
	fmt.Fprintf(a.out, "\nPage %d of %d (%d applications, status %s, sorted by %s %s)\n",
		v.Page.Page, max(v.Page.TotalPages, 1), v.Page.TotalCount, status, v.Query.SortBy, v.Query.SortOrder)
	if filter != "" {
		fmt.Fprintf(a.out, "Filter: %q\n", filter)
	}
	a.printApplications(board.Filter("", filter))
}

// resetData deletes every application and payment. Accounts are kept.
func (a *App) resetData(ctx context.Context, args []string) error {
	fs := a.flags("reset")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if _, err := a.parse(fs, args); err != nil {
		return err
	}
	if a.reset == nil {
		return errors.New("reset is only available with local storage")
	}
	p := a.sessions.Principal()
	if !p.Authenticated() {
		return loans.ErrAuthRequired
	}
	if !p.IsAdmin {
		return loans.ErrPermission
	}

	if !*yes {
		answer, err := a.readLine("Delete all applications and payments? Type 'reset' to confirm: ")
		if err != nil {
			return err
		}
		if answer != "reset" {
			fmt.Fprintln(a.out, "Aborted.")
			return nil
		}
	}
	if err := a.reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	fmt.Fprintln(a.out, "All applications and payments deleted.")
	return nil
}
