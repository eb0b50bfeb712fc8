package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/and161185/stremur/internal/model"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// ErrUnknownSession is returned for ids that were never started, were stopped
// or have already finished.
var ErrUnknownSession = errors.New("unknown playback session")

// Writer stores progress. WatchStateService and the API client implement it.
type Writer interface {
	UpsertProgress(ctx context.Context, s model.Session, in model.ProgressUpdate) (uuid.UUID, error)
}

// Playback describes the title being watched.
type Playback struct {
	Session    model.Session
	Media      model.MediaKey
	Title      string
	PosterPath *string
	Duration   float64
	Season     *int
	Episode    *int
}

// Reporter writes progress for every open playback session on a timer.
type Reporter struct {
	w        Writer
	policy   Policy
	interval time.Duration
	log      *zap.Logger

	mu   sync.Mutex
	runs map[uuid.UUID]*run
}

type run struct {
	pb     Playback
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex // serializes writes with Stop
	stopped bool
}

// NewReporter creates a reporter ticking every interval.
func NewReporter(w Writer, policy Policy, interval time.Duration, log *zap.Logger) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{w: w, policy: policy, interval: interval, log: log, runs: make(map[uuid.UUID]*run)}
}

// Start writes the starting value immediately, then one update per interval
// until the policy is final, ctx ends or Stop is called.
func (r *Reporter) Start(ctx context.Context, pb Playback) (uuid.UUID, error) {
	if pb.Session.ProfileID == uuid.Nil {
		return uuid.Nil, errors.New("progress: playback without active profile")
	}
	if r.interval <= 0 {
		return uuid.Nil, errors.New("progress: interval must be positive")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	rn := &run{pb: pb, cancel: cancel, done: make(chan struct{})}

	r.mu.Lock()
	r.runs[id] = rn
	r.mu.Unlock()

	_ = r.write(runCtx, id, rn, 0)
	if r.isFinal(0) {
		r.finish(id, rn)
		close(rn.done)
		return id, nil
	}
	go r.loop(runCtx, id, rn)
	return id, nil
}

func (r *Reporter) loop(ctx context.Context, id uuid.UUID, rn *run) {
	defer close(rn.done)
	defer r.finish(id, rn)
	t := time.NewTicker(r.interval)
	defer t.Stop()

	var ticks int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ticks++
			elapsed := time.Duration(ticks) * r.interval
			_ = r.write(ctx, id, rn, elapsed)
			if r.isFinal(elapsed) {
				r.log.Debug("progress: cap reached", zap.String("session", id.String()))
				return
			}
		}
	}
}

// finish drops a session whose loop ended on its own.
func (r *Reporter) finish(id uuid.UUID, rn *run) {
	r.mu.Lock()
	if r.runs[id] == rn {
		delete(r.runs, id)
	}
	r.mu.Unlock()
	rn.cancel()

	rn.mu.Lock()
	rn.stopped = true
	rn.mu.Unlock()
}

// Report records progress for elapsed playback time. It is the entry point
// for callers with real player telemetry.
func (r *Reporter) Report(ctx context.Context, sessionID uuid.UUID, elapsed time.Duration) error {
	r.mu.Lock()
	rn, ok := r.runs[sessionID]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	return r.write(ctx, sessionID, rn, elapsed)
}

// write performs one upsert. Failures are logged and not retried.
func (r *Reporter) write(ctx context.Context, id uuid.UUID, rn *run, elapsed time.Duration) error {
	value, _ := r.policy.Progress(elapsed)

	rn.mu.Lock()
	defer rn.mu.Unlock()
	if rn.stopped {
		return ErrUnknownSession
	}
	_, err := r.w.UpsertProgress(ctx, rn.pb.Session, model.ProgressUpdate{
		Media:      rn.pb.Media,
		Title:      rn.pb.Title,
		PosterPath: rn.pb.PosterPath,
		Progress:   value,
		Duration:   rn.pb.Duration,
		Season:     rn.pb.Season,
		Episode:    rn.pb.Episode,
	})
	if err != nil {
		r.log.Warn("progress: write dropped",
			zap.String("session", id.String()),
			zap.String("media", rn.pb.Media.String()),
			zap.Float64("progress", value),
			zap.Error(err),
		)
	}
	return err
}

func (r *Reporter) isFinal(elapsed time.Duration) bool {
	_, final := r.policy.Progress(elapsed)
	return final
}

// Stop ends a playback session. No write for it happens after Stop returns.
func (r *Reporter) Stop(sessionID uuid.UUID) error {
	r.mu.Lock()
	rn, ok := r.runs[sessionID]
	delete(r.runs, sessionID)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	rn.cancel()
	<-rn.done

	rn.mu.Lock()
	rn.stopped = true
	rn.mu.Unlock()
	return nil
}

// Close stops every open session.
func (r *Reporter) Close() {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		_ = r.Stop(id)
	}
}

// Active returns the number of open sessions.
func (r *Reporter) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// Done returns a channel closed once the session has no more timed writes.
// A session that already finished returns ErrUnknownSession.
func (r *Reporter) Done(sessionID uuid.UUID) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rn, ok := r.runs[sessionID]
	if !ok {
		return nil, ErrUnknownSession
	}
	return rn.done, nil
}
