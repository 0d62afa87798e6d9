package usecase

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/voicerelay/domain"
	"github.com/satriahrh/voicerelay/internal/metrics"
)

// State is a stage of one pipeline run.
type State int

const (
	StateIdle State = iota
	StateNormalizing
	StateTranscribing
	StateGenerating
	StateSynthesizing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNormalizing:
		return "normalizing"
	case StateTranscribing:
		return "transcribing"
	case StateGenerating:
		return "generating"
	case StateSynthesizing:
		return "synthesizing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further output may follow.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:         {StateNormalizing, StateGenerating},
	StateNormalizing:  {StateTranscribing, StateFailed},
	StateTranscribing: {StateGenerating, StateFailed},
	StateGenerating:   {StateSynthesizing, StateFailed},
	StateSynthesizing: {StateDone, StateFailed},
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// run tracks one submission through the state machine and gates its output.
type run struct {
	state      State
	path       string
	sessionID  string
	deliver    func(domain.OutboundMessage)
	logger     *zap.Logger
	started    time.Time
	stageStart time.Time
}

func newRun(path, sessionID string, deliver func(domain.OutboundMessage), logger *zap.Logger) *run {
	now := time.Now()
	return &run{
		state:      StateIdle,
		path:       path,
		sessionID:  sessionID,
		deliver:    deliver,
		logger:     logger.With(zap.String("sessionID", sessionID), zap.String("path", path)),
		started:    now,
		stageStart: now,
	}
}

// advance moves to the next state, recording the time spent in the current one.
func (r *run) advance(to State) error {
	if !CanTransition(r.state, to) {
		r.logger.Error("Illegal pipeline transition",
			zap.Stringer("from", r.state),
			zap.Stringer("to", to))
		return errIllegalTransition
	}
	if r.state != StateIdle {
		metrics.ObserveStage(r.state.String(), r.stageStart)
	}
	r.logger.Debug("Pipeline transition",
		zap.Stringer("from", r.state),
		zap.Stringer("to", to))
	r.state = to
	r.stageStart = time.Now()
	return nil
}

// emit sends msg unless the run already finished.
func (r *run) emit(msg domain.OutboundMessage) {
	if r.state.Terminal() {
		r.logger.Warn("Dropping output of finished run", zap.String("type", string(msg.Kind)))
		metrics.DroppedDeliveries.WithLabelValues("finished_run").Inc()
		return
	}
	r.deliver(msg)
}

// fail reports err to the client as the run's final message.
func (r *run) fail(err error) {
	if r.state.Terminal() {
		return
	}
	stage := r.state
	kind := failureKind(err)
	r.logger.Warn("Pipeline run failed",
		zap.Stringer("stage", stage),
		zap.String("kind", kind),
		zap.Error(err))
	metrics.StageFailures.WithLabelValues(stage.String(), kind).Inc()
	metrics.PipelineRuns.WithLabelValues(r.path, "failed").Inc()

	r.emit(domain.NewErrorNotice(domain.UserMessage(err)))
	_ = r.advance(StateFailed)
}

// complete sends the final result and closes the run.
func (r *run) complete(msg domain.OutboundMessage) {
	r.emit(msg)
	if err := r.advance(StateDone); err != nil {
		return
	}
	metrics.PipelineRuns.WithLabelValues(r.path, "done").Inc()
	r.logger.Info("Pipeline run completed", zap.Duration("elapsed", time.Since(r.started)))
}

var errIllegalTransition = errors.New("illegal pipeline transition")

func failureKind(err error) string {
	var nf *domain.NormalizationFailure
	var rf *domain.RemoteFailure
	var lc *domain.LowConfidenceError
	switch {
	case errors.As(err, &nf):
		return string(nf.Kind)
	case errors.As(err, &rf):
		return string(rf.Kind)
	case errors.As(err, &lc):
		return "low_confidence"
	case errors.Is(err, domain.ErrNoSpeech):
		return "no_speech"
	}
	return "internal"
}
