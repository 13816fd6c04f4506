package rollcall

import (
	"sort"
	"time"

	"github.com/classtrack/rollcall/utils"
	"github.com/google/uuid"
)

// semiPositiveCredit is the share of attendance credited for each counted semi-positive frame.
const semiPositiveCredit = 0.5

// UserReport is the final attendance record of one participant.
type UserReport struct {
	Positive        int     `json:"positive"`
	Negative        int     `json:"negative"`
	SemiPositive    int     `json:"semipositive"`
	PreviousLabel   Label   `json:"previousLabel"`
	FramesProcessed int     `json:"framesProcessed"`
	FramesSkipped   int     `json:"framesSkipped"`
	FinalPercent    float64 `json:"finalPercent"`
}

// AttendanceReport collects the records of every participant of a meeting.
type AttendanceReport struct {
	ID          uuid.UUID             `json:"id"`
	MeetingID   string                `json:"meetingId"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Users       map[string]UserReport `json:"users"`
}

// NewUserReport converts the accumulated metrics into a report record.
func NewUserReport(m UserMetrics) UserReport {
	return UserReport{
		Positive:        m.Positive,
		Negative:        m.Negative,
		SemiPositive:    m.SemiPositive,
		PreviousLabel:   m.PreviousLabel,
		FramesProcessed: m.FramesProcessed,
		FramesSkipped:   m.FramesSkipped,
		FinalPercent:    FinalPercent(m.Positive, m.Negative, m.SemiPositive),
	}
}

// BuildReport snapshots the final state of every user's aggregator.
func BuildReport(meetingID string, metrics map[string]*Aggregator) *AttendanceReport {
	report := &AttendanceReport{
		ID:          uuid.New(),
		MeetingID:   meetingID,
		GeneratedAt: time.Now().UTC(),
		Users:       make(map[string]UserReport, len(metrics)),
	}
	for userID, agg := range metrics {
		if agg == nil {
			agg = NewAggregator(0)
		}
		report.Users[userID] = NewUserReport(agg.Snapshot())
	}
	return report
}

// UserIDs returns the participants of the report in lexical order.
func (r *AttendanceReport) UserIDs() []string {
	ids := make([]string, 0, len(r.Users))
	for id := range r.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FinalPercent turns the counters into an attendance percentage. Semi-positive
// frames count for half, the result is capped at 100 and rounded to two decimals.
func FinalPercent(positive, negative, semiPositive int) float64 {
	total := positive + negative + semiPositive
	if total == 0 {
		return 0
	}
	percent := (float64(positive) + float64(semiPositive)*semiPositiveCredit) / float64(total) * 100
	return utils.Min(100, utils.Round(percent, 2))
}
