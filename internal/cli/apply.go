package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/asynkron/patchkit/internal/stats"
	"github.com/asynkron/patchkit/pkg/patch"
)

// errApplyFailed is returned after the per-file failures have been printed.
var errApplyFailed = errors.New("some files could not be patched")

type applyFlags struct {
	strip      int
	workingDir string
	strict     bool
	lenient    bool
	dryRun     bool
	workers    int
}

func (a *app) applyCommand() *cobra.Command {
	var f applyFlags
	cmd := &cobra.Command{
		Use:   "apply PATCH",
		Short: "Apply a patch to files on disk",
		Long:  "Apply every file diff in PATCH (or stdin when PATCH is -) relative to the working directory.",
		Args:  exactlyOnePatch,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.mergeApplyFlags(cmd, f)
			r, err := a.openPatch(args[0])
			if err != nil {
				return err
			}
			defer r.Close()
			return a.runApply(cmd, r, stats.NewInMemory())
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&f.strip, "strip", "p", 0, "strip N leading path components from file names")
	flags.StringVarP(&f.workingDir, "directory", "C", "", "resolve file names relative to this directory")
	flags.BoolVar(&f.strict, "strict", true, "verify context lines before applying each hunk")
	flags.BoolVar(&f.lenient, "lenient", false, "accept context-format hunks whose context lines disagree")
	flags.BoolVar(&f.dryRun, "dry-run", false, "report what would change without writing files")
	flags.IntVar(&f.workers, "workers", 0, "number of files patched concurrently")
	return cmd
}

// mergeApplyFlags lets explicitly set flags override the loaded configuration.
func (a *app) mergeApplyFlags(cmd *cobra.Command, f applyFlags) {
	flags := cmd.Flags()
	if flags.Changed("strip") {
		a.cfg.Strip = f.strip
	}
	if flags.Changed("directory") {
		a.cfg.WorkingDir = f.workingDir
	}
	if flags.Changed("strict") {
		a.cfg.Strict = f.strict
	}
	if flags.Changed("lenient") {
		a.cfg.Lenient = f.lenient
	}
	if flags.Changed("dry-run") {
		a.cfg.DryRun = f.dryRun
	}
	if flags.Changed("workers") && f.workers > 0 {
		a.cfg.Workers = f.workers
	}
}

func (a *app) runApply(cmd *cobra.Command, r io.Reader, recorder stats.Recorder) error {
	cfg := a.cfg
	if cfg.Strip < 0 {
		return usageError{err: fmt.Errorf("invalid strip count %d", cfg.Strip)}
	}
	diffs, err := patch.Parse(r, patch.ParseOptions{Lenient: cfg.Lenient, Logger: &a.logger})
	if err != nil {
		return err
	}
	if len(diffs) == 0 {
		fmt.Fprintln(a.stdout, a.styles.muted.Render("No file diffs found."))
		return nil
	}

	results, applyErr := patch.ApplyFilesystem(cmd.Context(), diffs, patch.FilesystemOptions{
		Options: patch.Options{
			ApplyOptions: patch.ApplyOptions{Strict: cfg.Strict},
			Lenient:      cfg.Lenient,
			Strip:        cfg.Strip,
			Workers:      cfg.Workers,
			Logger:       &a.logger,
			Observe:      recorder.Record,
		},
		WorkingDir: cfg.WorkingDir,
		DryRun:     cfg.DryRun,
	})
	if applyErr != nil && results == nil {
		return applyErr
	}

	a.printResults(results)
	a.printSummary(recorder.Snapshot(), cfg.DryRun)
	if applyErr != nil {
		return errApplyFailed
	}
	return nil
}

func (a *app) printResults(results []patch.Result) {
	for _, res := range results {
		line := fmt.Sprintf("%s %s", a.statusStyle(res.Status).Render(res.Status), res.Path)
		if res.Err == nil && res.Status != patch.StatusDeleted {
			line += " " + a.styles.muted.Render(fmt.Sprintf("(%d hunks, %s)", res.Hunks, humanize.Bytes(uint64(res.Bytes))))
		}
		fmt.Fprintln(a.stdout, line)
		if res.Err != nil {
			fmt.Fprintln(a.stdout, indent(describe(res.Err), "    "))
		}
	}
}

func (a *app) printSummary(s stats.Snapshot, dryRun bool) {
	title := "Summary"
	if dryRun {
		title = "Summary (dry run, nothing written)"
	}
	fmt.Fprintln(a.stdout)
	fmt.Fprintln(a.stdout, a.styles.title.Render(title))
	fmt.Fprintf(a.stdout, "  %d of %d files patched: %d added, %d modified, %d deleted\n",
		s.Succeeded(), s.Files, s.Added, s.Modified, s.Deleted)
	if s.Failed > 0 {
		fmt.Fprintln(a.stdout, "  "+a.styles.failed.Render(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Fprintf(a.stdout, "  %d hunks, %s written in %s\n", s.Hunks, humanize.Bytes(uint64(s.Bytes)), s.TotalTime.Round(time.Microsecond))
	if s.Files > 0 {
		fmt.Fprintln(a.stdout, a.styles.muted.Render(fmt.Sprintf("  per file: fastest %s, slowest %s",
			s.MinTime.Round(time.Microsecond), s.MaxTime.Round(time.Microsecond))))
	}
}

func (a *app) statusStyle(status string) lipgloss.Style {
	switch status {
	case patch.StatusAdded:
		return a.styles.added
	case patch.StatusModified:
		return a.styles.modified
	case patch.StatusDeleted:
		return a.styles.deleted
	default:
		return a.styles.failed
	}
}

// describe renders patch errors with their hunk report and other errors as is.
func describe(err error) string {
	var pe *patch.Error
	if errors.As(err, &pe) {
		return patch.FormatError(pe)
	}
	return err.Error()
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
