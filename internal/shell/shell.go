// Package shell provides the interactive report prompt.
//
// The shell keeps a small set of session filters (mode, lookback, database,
// role, percentiles) and dispatches to the same report service the CLI uses.
// Command parsing is separate from the prompt loop so it can be tested
// without a terminal.
package shell

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"

	"github.com/xtxerr/filestall/internal/iostats"
	"github.com/xtxerr/filestall/internal/render"
	"github.com/xtxerr/filestall/internal/report"
)

// Reporter is the report surface the shell drives.
type Reporter interface {
	Report(ctx context.Context, opts report.Options) ([]iostats.Metric, error)
}

// Shell is one interactive session.
type Shell struct {
	svc       Reporter
	out       io.Writer
	databases []string

	mode        report.Mode
	lookback    time.Duration
	database    string
	role        string
	percentiles bool

	quit bool
}

// New creates a Shell. databases seeds filter completion and may be empty.
func New(svc Reporter, out io.Writer, databases []string) *Shell {
	sorted := append([]string(nil), databases...)
	sort.Strings(sorted)
	return &Shell{
		svc:       svc,
		out:       out,
		databases: sorted,
		mode:      report.ModeHistorical,
	}
}

// Run starts the prompt loop. It returns when the user exits.
func (s *Shell) Run() {
	fmt.Fprintln(s.out, `filestall shell - type "help" for commands, "exit" to leave`)
	p := prompt.New(
		s.executor,
		s.completer,
		prompt.OptionPrefix("filestall> "),
		prompt.OptionTitle("filestall"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return s.quit
		}),
	)
	p.Run()
}

func (s *Shell) executor(line string) {
	if err := s.Execute(context.Background(), line); err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}

// Execute runs one shell command line.
func (s *Shell) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "report", "r":
		return s.runReport(ctx, args)
	case "mode":
		return s.setMode(args)
	case "lookback":
		return s.setLookback(args)
	case "db", "database":
		s.database = strings.Join(args, " ")
		return nil
	case "role":
		return s.setRole(args)
	case "percentiles":
		return s.setPercentiles(args)
	case "show":
		s.showSettings()
		return nil
	case "help", "?":
		s.showHelp()
		return nil
	case "exit", "quit", "q":
		s.quit = true
		return nil
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
}

// runReport dispatches one report with the session filters. An optional
// argument overrides the mode for this run only.
func (s *Shell) runReport(ctx context.Context, args []string) error {
	mode := s.mode
	if len(args) > 0 {
		m, err := report.ParseMode(args[0])
		if err != nil {
			return err
		}
		mode = m
	}

	rows, err := s.svc.Report(ctx, report.Options{
		Mode:        mode,
		Lookback:    s.lookback,
		Database:    s.database,
		Role:        s.role,
		Percentiles: s.percentiles,
	})
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Fprintln(s.out, "no data")
		return nil
	}
	render.Metrics(s.out, rows, render.Options{Table: true, Percentiles: s.percentiles})
	return nil
}

func (s *Shell) setMode(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mode historical|current")
	}
	m, err := report.ParseMode(args[0])
	if err != nil {
		return err
	}
	s.mode = m
	return nil
}

func (s *Shell) setLookback(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: lookback <duration> (e.g. 24h, 90m)")
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Errorf("bad duration %q: %v", args[0], err)
	}
	s.lookback = d
	return nil
}

func (s *Shell) setRole(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: role data|log|all")
	}
	s.role = args[0]
	return nil
}

func (s *Shell) setPercentiles(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("usage: percentiles on|off")
	}
	s.percentiles = args[0] == "on"
	return nil
}

func (s *Shell) showSettings() {
	lookback := "default"
	if s.lookback != 0 {
		lookback = s.lookback.String()
	}
	database := s.database
	if database == "" {
		database = "(all)"
	}
	role := s.role
	if role == "" {
		role = "all"
	}
	fmt.Fprintf(s.out, "mode        %s\n", s.mode)
	fmt.Fprintf(s.out, "lookback    %s\n", lookback)
	fmt.Fprintf(s.out, "database    %s\n", database)
	fmt.Fprintf(s.out, "role        %s\n", role)
	fmt.Fprintf(s.out, "percentiles %v\n", s.percentiles)
}

func (s *Shell) showHelp() {
	fmt.Fprint(s.out, `commands:
  report [historical|current]  run a report with the session filters
  mode historical|current      set the default report mode
  lookback <duration>          set the historical window (e.g. 24h)
  db [name]                    filter to one database; bare db clears
  role data|log|all            filter to one file role
  percentiles on|off           toggle P95 latency columns
  show                         print the session filters
  exit                         leave the shell
`)
}

var commandSuggestions = []prompt.Suggest{
	{Text: "report", Description: "run a report with the session filters"},
	{Text: "mode", Description: "set the default report mode"},
	{Text: "lookback", Description: "set the historical window"},
	{Text: "db", Description: "filter to one database"},
	{Text: "role", Description: "filter to one file role"},
	{Text: "percentiles", Description: "toggle P95 latency columns"},
	{Text: "show", Description: "print the session filters"},
	{Text: "help", Description: "show command help"},
	{Text: "exit", Description: "leave the shell"},
}

func (s *Shell) completer(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	fields := strings.Fields(text)

	// Completing the command word itself.
	if len(fields) == 0 || (len(fields) == 1 && !strings.HasSuffix(text, " ")) {
		return prompt.FilterHasPrefix(commandSuggestions, d.GetWordBeforeCursor(), true)
	}

	var candidates []prompt.Suggest
	switch fields[0] {
	case "report", "mode":
		candidates = []prompt.Suggest{
			{Text: "historical", Description: "per-interval metrics from stored snapshots"},
			{Text: "current", Description: "live cumulative counters"},
		}
	case "role":
		candidates = []prompt.Suggest{
			{Text: "data", Description: "data files"},
			{Text: "log", Description: "transaction log files"},
			{Text: "all", Description: "no role filter"},
		}
	case "db", "database":
		for _, name := range s.databases {
			candidates = append(candidates, prompt.Suggest{Text: name})
		}
	case "percentiles":
		candidates = []prompt.Suggest{{Text: "on"}, {Text: "off"}}
	}
	return prompt.FilterHasPrefix(candidates, d.GetWordBeforeCursor(), true)
}
