package rollcall

import (
	"context"
	"errors"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// UserFrames is the ordered capture sequence of one participant.
type UserFrames struct {
	UserID string
	Frames [][]byte
}

// Request is a single attendance computation for a meeting.
type Request struct {
	MeetingID string
	Users     []UserFrames
}

// Processor classifies the frames of every participant and aggregates
// them into an attendance report.
type Processor struct {
	Detector Detector
	Logger   *logrus.Logger

	PromotionThreshold int
	FailurePolicy      FailurePolicy
	Workers            int

	// Progress, when set, is called once for every frame consumed.
	// It may be invoked from several goroutines.
	Progress func(userID string)
}

// NewProcessor returns a processor using d and the aggregation settings of o.
func NewProcessor(d Detector, o Options, logger *logrus.Logger) *Processor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Processor{
		Detector:           d,
		Logger:             logger,
		PromotionThreshold: o.PromotionThreshold,
		FailurePolicy:      o.FailurePolicy,
		Workers:            o.Workers,
	}
}

// Process builds the attendance report of the request. Users are handled in
// parallel, the frames of each user strictly in order. Only a missing model
// or a cancelled context fails the request; broken frames are handled
// according to the failure policy.
func (p *Processor) Process(ctx context.Context, req Request) (*AttendanceReport, error) {
	if p.Detector == nil {
		return nil, ErrModelNotLoaded
	}

	users, order := groupUsers(req.Users)
	metrics := make(map[string]*Aggregator, len(users))
	for _, id := range order {
		metrics[id] = NewAggregator(p.PromotionThreshold)
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, id := range order {
		id := id
		g.Go(func() error {
			return p.processUser(gctx, req.MeetingID, id, users[id], metrics[id])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return BuildReport(req.MeetingID, metrics), nil
}

// ProcessUser aggregates a single participant's frames.
func (p *Processor) ProcessUser(ctx context.Context, meetingID string, uf UserFrames) (UserReport, error) {
	if p.Detector == nil {
		return UserReport{}, ErrModelNotLoaded
	}
	agg := NewAggregator(p.PromotionThreshold)
	if err := p.processUser(ctx, meetingID, uf.UserID, uf.Frames, agg); err != nil {
		return UserReport{}, err
	}
	return NewUserReport(agg.Snapshot()), nil
}

func (p *Processor) processUser(ctx context.Context, meetingID, userID string, frames [][]byte, agg *Aggregator) error {
	log := p.logger().WithFields(logrus.Fields{
		"meeting":  meetingID,
		"user":     userID,
		"strategy": p.Detector.Name(),
	})

	var failed int
	for i, data := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}

		label, err := p.classify(data)
		switch {
		case errors.Is(err, ErrModelNotLoaded):
			return err
		case err != nil:
			failed++
			log.WithField("frame", i).WithError(err).Debug("frame could not be classified")
			if p.FailurePolicy == FailedAsNegative {
				agg.Observe(Negative)
			} else {
				agg.Skip()
			}
		default:
			agg.Observe(label)
		}

		if p.Progress != nil {
			p.Progress(userID)
		}
	}

	if failed > 0 {
		log.WithFields(logrus.Fields{
			"failed": failed,
			"total":  len(frames),
			"policy": p.FailurePolicy,
		}).Warn("some frames could not be classified")
	}
	m := agg.Snapshot()
	log.WithFields(logrus.Fields{
		"positive":     m.Positive,
		"negative":     m.Negative,
		"semipositive": m.SemiPositive,
	}).Debug("user processed")
	return nil
}

func (p *Processor) classify(data []byte) (Label, error) {
	f, err := DecodeFrame(data)
	if err != nil {
		return NoLabel, err
	}
	return p.Detector.Detect(f)
}

func (p *Processor) logger() *logrus.Logger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}

// groupUsers merges repeated user entries, keeping the frame order and the
// order in which users first appear.
func groupUsers(in []UserFrames) (map[string][][]byte, []string) {
	users := make(map[string][][]byte, len(in))
	order := make([]string, 0, len(in))
	for _, uf := range in {
		if _, ok := users[uf.UserID]; !ok {
			order = append(order, uf.UserID)
			users[uf.UserID] = nil
		}
		users[uf.UserID] = append(users[uf.UserID], uf.Frames...)
	}
	return users, order
}
