package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/core/user"
	backendsvc "github.com/trezcool/catechism/services/backend"
	exportsvc "github.com/trezcool/catechism/services/export"
)

var errNotConfirmed = errors.New("submission cancelled")

type autoMapOptions struct {
	key            timetable.Key
	username       string
	password       string
	activitiesFile string
	mode           string
	exportFile     string
	diff           bool
	submit         bool
}

func (cli *commandLine) autoMap(opts autoMapOptions) error {
	ctx := context.Background()

	// the configured mode is checked by core.NewConfig, only the flag needs parsing
	mode, err := timetable.ParsePreviewMode(cli.conf.Timetable.PreviewMode)
	if opts.mode != "" {
		mode, err = timetable.ParsePreviewMode(opts.mode)
	}
	if err != nil {
		return err
	}

	client := backendsvc.NewClient(cli.conf, user.Session{})
	sess, err := client.Login(ctx, opts.username, opts.password)
	if err != nil {
		return err
	}
	if !sess.Can(user.CapPlanTimetable) {
		return errors.New("permission denied")
	}

	ws := timetable.NewWorkspace(client)
	if err = ws.Select(ctx, opts.key); err != nil {
		return err
	}

	if opts.activitiesFile != "" {
		acts := timetable.NewActivities()
		if err = readYAML(opts.activitiesFile, &acts); err != nil {
			return err
		}
		if _, err = ws.SetActivities(acts); err != nil {
			return err
		}
	}

	capacity := ws.Capacity()
	fmt.Fprintf(cli.out, "%s: %d session(s), %.1f unit(s) of lessons, %d manual activit(ies), %d slot(s) remaining\n",
		opts.key, capacity.ScheduleCount, capacity.TotalUnits, capacity.FilledCount, capacity.Remaining)
	if !capacity.CanAutoMap() {
		return errors.Wrapf(timetable.ErrAutoMapDisabled, "%d slot(s) remaining", capacity.Remaining)
	}

	if _, err = ws.AutoMap(); err != nil {
		return err
	}
	rows := ws.Preview(mode)
	if err = printPreview(cli, rows); err != nil {
		return err
	}
	if unassigned := ws.Unassigned(); len(unassigned) > 0 {
		names := make([]string, 0, len(unassigned))
		for _, l := range unassigned {
			names = append(names, l.Name)
		}
		cli.logger.Warn(fmt.Sprintf("%d lesson(s) left unassigned: %s", len(unassigned), strings.Join(names, ", ")))
	}

	if opts.exportFile != "" {
		if err = exportPreview(opts.exportFile, fmt.Sprintf("Grade %d - year %d", opts.key.GradeID, opts.key.YearID), rows); err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "preview written to %s\n", opts.exportFile)
	}

	if opts.diff {
		if err = cli.diffSubmitted(ctx, client, ws, mode, rows); err != nil {
			return err
		}
	}

	if !opts.submit {
		return nil
	}
	if !sess.Can(user.CapSubmitTimetable) {
		return errors.New("permission denied")
	}
	answer, err := cli.readLine(fmt.Sprintf("Submit the timetable of %s? Once submitted it cannot be changed. Type %q to confirm: ", opts.key, "yes"))
	if err != nil {
		return err
	}
	if answer != "yes" {
		return errNotConfirmed
	}
	msg, err := ws.Submit(ctx, client)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, msg)
	return nil
}

func previewLines(rows []timetable.PreviewRow) []string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		line := fmt.Sprintf("#%d\t%s\t%s", row.OrderSchedule, row.Date, row.Title)
		if len(row.Exams) > 0 {
			line += "\t[exam: " + strings.Join(row.Exams, ", ") + "]"
		}
		lines = append(lines, line)
	}
	return lines
}

func printPreview(cli *commandLine, rows []timetable.PreviewRow) error {
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	for _, line := range previewLines(rows) {
		fmt.Fprintln(tw, line)
	}
	return tw.Flush()
}

func exportPreview(path, title string, rows []timetable.PreviewRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = exportsvc.NewXLSXExporter().Export(f, title, rows); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// diffSubmitted prints how the new mapping differs from the timetable already submitted for the key.
func (cli *commandLine) diffSubmitted(ctx context.Context, client *backendsvc.Client, ws *timetable.Workspace, mode timetable.PreviewMode, rows []timetable.PreviewRow) error {
	submitted, err := client.Timetable(ctx, ws.Key())
	if err != nil {
		if errors.Cause(err) == timetable.ErrNotFound {
			fmt.Fprintln(cli.out, "no timetable submitted yet")
			return nil
		}
		return err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(strings.Join(previewLines(timetable.Preview(submitted, ws.Sessions(), ws.Lessons(), mode)), "\n") + "\n"),
		B:        difflib.SplitLines(strings.Join(previewLines(rows), "\n") + "\n"),
		FromFile: "submitted",
		ToFile:   "mapped",
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(cli.out, "no difference with the submitted timetable")
		return nil
	}
	fmt.Fprint(cli.out, text)
	return nil
}
