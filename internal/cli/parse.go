package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/asynkron/patchkit/pkg/patch"
)

// diffView is the JSON shape printed by "parse --json".
type diffView struct {
	Path         string     `json:"path"`
	OldName      string     `json:"oldName"`
	NewName      string     `json:"newName"`
	Kind         string     `json:"kind"`
	Format       string     `json:"format"`
	OldTimestamp *int64     `json:"oldTimestamp"`
	NewTimestamp *int64     `json:"newTimestamp"`
	Added        int        `json:"added"`
	Removed      int        `json:"removed"`
	Hunks        []hunkView `json:"hunks"`
}

type hunkView struct {
	Header    string   `json:"header"`
	OldStart  int      `json:"oldStart"`
	OldLength int      `json:"oldLength"`
	NewStart  int      `json:"newStart"`
	NewLength int      `json:"newLength"`
	Malformed bool     `json:"malformed,omitempty"`
	Lines     []string `json:"lines"`
}

func exactlyOnePatch(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return usageError{err: fmt.Errorf("expected exactly one PATCH argument, got %d", len(args))}
	}
	return nil
}

func (a *app) parseCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "parse PATCH",
		Short: "Show the files and hunks a patch contains",
		Long:  "Parse PATCH (or stdin when PATCH is -) and list every file diff it contains.",
		Args:  exactlyOnePatch,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openPatch(args[0])
			if err != nil {
				return err
			}
			defer r.Close()

			diffs, parseErr := patch.Parse(r, patch.ParseOptions{Lenient: a.cfg.Lenient, Logger: &a.logger})
			if asJSON {
				err = a.printJSON(diffs)
			} else {
				a.printTable(diffs)
			}
			return errors.Join(parseErr, err)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the parsed diffs as JSON")
	return cmd
}

func (a *app) printJSON(diffs []*patch.Diff) error {
	views := make([]diffView, 0, len(diffs))
	for _, d := range diffs {
		added, removed := d.Stats()
		view := diffView{
			Path:         d.Path(),
			OldName:      d.OldName,
			NewName:      d.NewName,
			Kind:         d.Kind().String(),
			Format:       d.Format.String(),
			OldTimestamp: d.OldTimestamp,
			NewTimestamp: d.NewTimestamp,
			Added:        added,
			Removed:      removed,
			Hunks:        make([]hunkView, 0, len(d.Hunks)),
		}
		for _, h := range d.Hunks {
			hv := hunkView{
				Header:    h.Header,
				OldStart:  h.Old.Start,
				OldLength: h.Old.Length,
				NewStart:  h.New.Start,
				NewLength: h.New.Length,
				Malformed: h.Malformed(),
				Lines:     make([]string, 0, len(h.Lines)),
			}
			for _, line := range h.Lines {
				hv.Lines = append(hv.Lines, string(line.Kind.Prefix())+line.Text)
			}
			view.Hunks = append(view.Hunks, hv)
		}
		views = append(views, view)
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(views)
}

func (a *app) printTable(diffs []*patch.Diff) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(a.stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"File", "Kind", "Format", "Hunks", "+", "-", "Old time", "New time"})

	var totalAdded, totalRemoved int
	for _, d := range diffs {
		added, removed := d.Stats()
		totalAdded += added
		totalRemoved += removed
		tbl.AppendRow(table.Row{
			d.Path(), d.Kind().String(), d.Format.String(), len(d.Hunks),
			added, removed, formatTimestamp(d.OldTimestamp), formatTimestamp(d.NewTimestamp),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d files", len(diffs)), "", "", "", totalAdded, totalRemoved, "", ""})
	tbl.Render()
}

func formatTimestamp(ts *int64) string {
	switch {
	case ts == nil:
		return "(none)"
	case *ts == patch.TimestampUnknown:
		return "unknown"
	default:
		return time.UnixMilli(*ts).UTC().Format(time.RFC3339)
	}
}
