package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/classtrack/rollcall"
	"github.com/classtrack/rollcall/store"
	"github.com/classtrack/rollcall/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// passMark is the attendance percentage highlighted as present in the terminal summary.
const passMark = 50

type analyzeOptions struct {
	dir       string
	meetingID string
	out       string
	save      bool
	strategy  string
	model     string
	policy    string
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute the attendance of a meeting from a directory of captures",
		Long: `Reads <user>_<timestamp>.(jpg|jpeg|png) captures from a directory, classifies
every frame and prints the attendance report as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.analyze(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "Directory holding the meeting captures")
	cmd.Flags().StringVarP(&opts.meetingID, "meeting", "m", "", "Meeting id (default: directory name)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", pipeName, "Report destination file")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Store the report in the configured database")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "Detection strategy: haar or cascade")
	cmd.Flags().StringVar(&opts.model, "model", "", "Model file of the haar strategy")
	cmd.Flags().StringVar(&opts.policy, "policy", "", "Unclassifiable frames: skip or negative")
	cobra.CheckErr(cmd.MarkFlagRequired("dir"))

	return cmd
}

func (a *app) analyze(cmd *cobra.Command, opts analyzeOptions) error {
	ctx := cmd.Context()
	start := time.Now()

	detOpts := a.cfg.Detector
	if opts.strategy != "" {
		detOpts.Strategy = opts.strategy
	}
	if opts.model != "" {
		detOpts.ModelPath = opts.model
	}
	if opts.policy != "" {
		detOpts.FailurePolicy = rollcall.FailurePolicy(opts.policy)
	}
	if opts.save && a.cfg.Database.URL == "" {
		return errors.New("--save needs database.url to be configured")
	}

	detector, err := rollcall.NewDetector(detOpts)
	if err != nil {
		return err
	}

	users, err := rollcall.LoadMeetingDir(opts.dir)
	if err != nil {
		return err
	}
	meetingID := opts.meetingID
	if meetingID == "" {
		meetingID = filepath.Base(filepath.Clean(opts.dir))
	}

	total := 0
	for _, u := range users {
		total += len(u.Frames)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n",
		utils.DecorateText("⚡ ROLLCALL", utils.StatusMessage),
		utils.DecorateText(fmt.Sprintf("is analyzing %d frames of %d users (%s)...", total, len(users), detector.Name()), utils.DefaultMessage))

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	proc := rollcall.NewProcessor(detector, detOpts, a.logger)
	proc.Progress = func(string) { bar.Add(1) }

	report, err := proc.Process(ctx, rollcall.Request{MeetingID: meetingID, Users: users})
	bar.Finish()
	if err != nil {
		return err
	}

	if opts.save {
		db, err := store.New(ctx, a.cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		if err := db.SaveReport(ctx, report); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
	}

	if err := writeReport(cmd.OutOrStdout(), opts.out, report); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nExecution time: %s\n",
		utils.DecorateText(utils.FormatTime(time.Since(start)), utils.SuccessMessage))
	return nil
}

// writeReport encodes the report as JSON to dst. On an interactive stdout a
// readable summary is printed instead.
func writeReport(stdout io.Writer, dst string, report *rollcall.AttendanceReport) error {
	if dst == pipeName {
		if f, ok := stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return printSummary(stdout, report)
		}
		return encodeReport(stdout, report)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("unable to create the report file: %w", err)
	}
	if err := encodeReport(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeReport(w io.Writer, report *rollcall.AttendanceReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printSummary(w io.Writer, report *rollcall.AttendanceReport) error {
	fmt.Fprintf(w, "Meeting %s (report %s)\n\n", report.MeetingID, report.ID)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tPOSITIVE\tNEGATIVE\tSEMI\tSKIPPED\tATTENDANCE")
	for _, id := range report.UserIDs() {
		u := report.Users[id]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n", id, u.Positive, u.Negative, u.SemiPositive,
			u.FramesSkipped, utils.DecorateText(utils.FormatPercent(u.FinalPercent),
				utils.AttendanceMessage(u.FinalPercent, passMark)))
	}
	return tw.Flush()
}
