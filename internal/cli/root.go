package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/engine"
	"github.com/roach88/foodcsp/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Domain  string // CUE domain file; empty selects the embedded default
	Journal string // SQLite journal file; empty keeps it in memory
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the foodcsp CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "foodcsp",
		Short: "foodcsp - food ordering constraint solver",
		Long: `Model who orders what from which shop as a constraint problem.

Participants pick items from shops under default and custom constraints.
Conflicting constraints are detected before they are stored, and every
satisfying assignment can be enumerated and filtered.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Domain, "domain", "", "CUE domain file (default: built-in domain)")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "SQLite journal file (default: in memory)")

	// Add subcommands
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewSolveCommand(opts))
	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// newLogger logs warnings and errors to w, or everything when verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// openSession loads the domain and starts a session holding its defaults.
// Custom constraints listed in the domain file are added afterwards; one
// that conflicts with a default is skipped with a warning.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*engine.Session, *compiler.Domain, error) {
	domain, err := LoadDomainFile(opts.Domain)
	if err != nil {
		return nil, nil, err
	}

	logger := newLogger(opts, cmd.ErrOrStderr())
	journal := opts.Journal
	if journal == "" {
		journal = store.MemoryPath
	}

	session, err := engine.NewSession(ctx, domain.Registry, domain.Defaults, engine.Options{
		Logger:      logger,
		JournalPath: journal,
	})
	if err != nil {
		return nil, nil, err
	}

	for _, rec := range domain.Constraints {
		res, err := session.AddConstraint(ctx, rec, engine.NeverConfirm)
		if err != nil {
			_ = session.Close()
			return nil, nil, fmt.Errorf("domain constraint %q: %w", rec.Description, err)
		}
		if res.Outcome == engine.OutcomeAborted {
			logger.Warn("domain constraint skipped", "description", res.Record.Description, "reason", res.Reason)
		}
	}

	logger.Debug("session opened",
		"domain", domainName(opts.Domain),
		"defaults", len(domain.Defaults),
		"constraints", len(domain.Constraints))
	return session, domain, nil
}

func domainName(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
