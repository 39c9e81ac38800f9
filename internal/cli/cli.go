// Package cli implements the patchkit command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/asynkron/patchkit/internal/config"
	"github.com/asynkron/patchkit/internal/schema"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// usageError marks bad invocations so Run can return exit code 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// app carries the streams and the resolved settings shared by commands.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	noColor    bool

	cfg    *config.Config
	logger zerolog.Logger
	styles styles
}

type styles struct {
	added    lipgloss.Style
	modified lipgloss.Style
	deleted  lipgloss.Style
	failed   lipgloss.Style
	muted    lipgloss.Style
	title    lipgloss.Style
}

// Run executes patchkit using the provided CLI arguments.
// It returns a POSIX-style exit code indicating whether execution succeeded.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, os.Stdin, stdout, stderr)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	var usage usageError
	if errors.As(err, &usage) {
		return 2
	}
	return 1
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "patchkit",
		Short: "Parse and apply unified and context diffs",
		Long: `patchkit reads patches in unified or context format and applies them
to files, like patch(1), with structured errors for every failed hunk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML configuration file (default "+config.DefaultFile+" when present)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(a.parseCommand(), a.applyCommand(), a.schemaCommand(), a.versionCommand())
	return root
}

// setup resolves configuration and builds the logger before a command runs.
func (a *app) setup(cmd *cobra.Command) error {
	path, required := a.configPath, true
	if path == "" {
		path, required = config.DefaultFile, false
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(a.logLevel))
		if err := cfg.Validate(); err != nil {
			return usageError{err: err}
		}
	}
	a.cfg = cfg
	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: a.stderr, NoColor: a.noColor}).
		Level(cfg.Level()).
		With().Timestamp().Logger()
	a.styles = newStyles(a.stdout, a.noColor || os.Getenv("NO_COLOR") != "")
	return nil
}

func newStyles(w io.Writer, noColor bool) styles {
	r := lipgloss.NewRenderer(w)
	if noColor {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		added:    r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		modified: r.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		deleted:  r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		failed:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		muted:    r.NewStyle().Foreground(lipgloss.Color("240")),
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
	}
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.stdout, "patchkit %s\n", Version)
			return err
		},
	}
}

func (a *app) schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of parse --json output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := a.stdout.Write(schema.Raw())
			return err
		},
	}
}

// openPatch returns the patch stream named by arg, where "-" is stdin.
func (a *app) openPatch(arg string) (io.ReadCloser, error) {
	if arg == "-" {
		return io.NopCloser(a.stdin), nil
	}
	f, err := os.Open(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to open patch: %w", err)
	}
	return f, nil
}
