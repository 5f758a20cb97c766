// Package cli implements the loanctl command line client. Every command
// restores the persisted session first and acts as that user.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/session"
)

// ErrUsage is returned for unknown commands and bad arguments.
var ErrUsage = errors.New("usage error")

// RoleSetter promotes or demotes a profile.
type RoleSetter interface {
	SetRole(ctx context.Context, id, role string) error
}

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

// App dispatches loanctl commands.
type App struct {
	sessions *session.Manager
	loans    *loans.Service
	roles    RoleSetter

	in  *bufio.Reader
	out io.Writer
	loc *time.Location

	// readPassword reads without echo; nil reads a plain line from in.
	readPassword func() ([]byte, error)
	// reset wipes stored applications and payments; nil when unsupported.
	reset func(ctx context.Context) error

	commands map[string]command
}

// Option configures an App.
type Option func(*App)

// WithPasswordReader reads passwords through fn instead of the input stream.
func WithPasswordReader(fn func() ([]byte, error)) Option {
	return func(a *App) { a.readPassword = fn }
}

// WithLocation renders timestamps in loc.
func WithLocation(loc *time.Location) Option {
	return func(a *App) { a.loc = loc }
}

// WithReset enables the reset command, which calls fn.
func WithReset(fn func(ctx context.Context) error) Option {
	return func(a *App) { a.reset = fn }
}

// NewApp builds the client. roles may be nil when the backend manages
// roles itself.
func NewApp(sessions *session.Manager, loanSvc *loans.Service, roles RoleSetter, in io.Reader, out io.Writer, opts ...Option) *App {
	a := &App{
		sessions: sessions,
		loans:    loanSvc,
		roles:    roles,
		in:       bufio.NewReader(in),
		out:      out,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.commands = map[string]command{
		"signup":   {"signup -email EMAIL -name NAME", a.signUp},
		"signin":   {"signin -email EMAIL", a.signIn},
		"signout":  {"signout", a.signOut},
		"whoami":   {"whoami", a.whoAmI},
		"promote":  {"promote USER_ID [-revoke]", a.promote},
		"apply":    {"apply -name NAME -amount AMOUNT", a.apply},
		"list":     {"list", a.list},
		"ids":      {"ids", a.ids},
		"show":     {"show APPLICATION_ID", a.show},
		"pay":      {"pay -app APPLICATION_ID -amount AMOUNT", a.pay},
		"payments": {"payments [-app APPLICATION_ID]", a.payments},
		"review":   {"review [-page N] [-size N] [-status STATUS] [-sort createdAt|loanAmount] [-order asc|desc]", a.review},
		"search":   {"search TERM", a.search},
		"approve":  {"approve APPLICATION_ID", a.approve},
		"reject":   {"reject APPLICATION_ID -reason TEXT", a.reject},
		"evidence": {"evidence APPLICATION_ID -description TEXT", a.evidence},
		"reset":    {"reset [-yes]", a.resetData},
	}
	return a
}

// Run executes one command. args excludes the program name.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		a.usage()
		if len(args) == 0 {
			return ErrUsage
		}
		return nil
	}
	cmd, ok := a.commands[args[0]]
	if !ok {
		fmt.Fprintf(a.out, "unknown command %q\n\n", args[0])
		a.usage()
		return ErrUsage
	}
	if err := a.sessions.Start(ctx); err != nil {
		return err
	}
	return cmd.run(ctx, args[1:])
}

func (a *App) usage() {
	names := make([]string, 0, len(a.commands))
	for name := range a.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(a.out, "usage: loanctl <command> [flags]")
	fmt.Fprintln(a.out)
	for _, name := range names {
		fmt.Fprintf(a.out, "  %s\n", a.commands[name].usage)
	}
}

// flags returns a flag set that reports errors to the app output.
func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.Usage = func() { fmt.Fprintf(a.out, "usage: loanctl %s\n", a.commands[name].usage) }
	return fs
}

// parse accepts flags before or after positional arguments.
func (a *App) parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUsage, err)
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func (a *App) oneArg(name string, args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		fmt.Fprintf(a.out, "usage: loanctl %s\n", a.commands[name].usage)
		return "", ErrUsage
	}
	return strings.TrimSpace(args[0]), nil
}
