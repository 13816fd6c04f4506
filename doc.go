/*
Package rollcall infers meeting attendance from periodic webcam captures.

Every frame of a participant is classified by a Detector as negative (no face),
positive (face) or semi-positive (face of uncertain quality). Two detectors are
provided: a sliding window over a weighted vote of Haar-like features
(WindowDetector) and a pigo face cascade confirmed by an eye check
(CascadeDetector). The labels of each participant are folded in capture order
by an Aggregator, which promotes sustained runs of semi-positive frames to a
positive credit, and the result is summarized in an AttendanceReport.

A minimal use of the library:

	package main

	import (
		"context"
		"fmt"

		"github.com/classtrack/rollcall"
	)

	func main() {
		opts := rollcall.DefaultOptions()
		opts.ModelPath = "data/haar_model.yaml"

		det, err := rollcall.NewDetector(opts)
		if err != nil {
			panic(err)
		}
		users, err := rollcall.LoadMeetingDir("captures/m001")
		if err != nil {
			panic(err)
		}

		p := rollcall.NewProcessor(det, opts, nil)
		report, err := p.Process(context.Background(), rollcall.Request{MeetingID: "m001", Users: users})
		if err != nil {
			panic(err)
		}
		for _, id := range report.UserIDs() {
			fmt.Printf("%s: %.2f%%\n", id, report.Users[id].FinalPercent)
		}
	}
*/
package rollcall
