package challenge

import (
	"context"
	"errors"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/cpunion/molt-bot/pkg/metrics"
	"github.com/cpunion/molt-bot/pkg/types"
)

// Stage is the lifecycle position of a challenge. There is no way back to
// StageDetected.
type Stage string

const (
	StageDetected  Stage = "detected"
	StageParsed    Stage = "parsed"
	StageAnswered  Stage = "answered"
	StageAbandoned Stage = "abandoned"
	StageFailed    Stage = "failed"
)

// Sink submits an answer. Implementations own transport retries; the error is
// only non-nil once those are exhausted.
type Sink interface {
	SubmitAnswer(ctx context.Context, code, answer string) (types.VerifyOutcome, error)
}

// Result is the final state of one challenge.
type Result struct {
	Stage   Stage
	Answer  string
	Outcome types.VerifyOutcome
	Err     error
}

// Verifier drives challenges from detection to a terminal stage.
type Verifier struct {
	sink     Sink
	logger   *slog.Logger
	resolved *lru.Cache[string, Result]
}

// NewVerifier creates a verifier that remembers the last 256 resolved codes.
func NewVerifier(sink Sink, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := lru.New[string, Result](256)
	if err != nil {
		panic(err)
	}
	return &Verifier{
		sink:     sink,
		logger:   logger.With("component", "challenge"),
		resolved: cache,
	}
}

// Resolve solves ch and submits the answer. It never returns an error: failures
// end in StageAbandoned or StageFailed and are logged.
func (v *Verifier) Resolve(ctx context.Context, ch types.Challenge) Result {
	if prev, ok := v.resolved.Get(ch.Code); ok && ch.Code != "" {
		v.logger.Debug("challenge already resolved", "code", ch.Code, "stage", prev.Stage)
		return prev
	}

	res := v.resolve(ctx, ch)
	metrics.Challenges.WithLabelValues(string(res.Stage)).Inc()
	if ch.Code != "" && res.Stage != StageFailed {
		v.resolved.Add(ch.Code, res)
	}
	return res
}

func (v *Verifier) resolve(ctx context.Context, ch types.Challenge) Result {
	log := v.logger.With("code", ch.Code)
	log.Info("challenge detected", "text", ch.Text)

	answer, err := Solve(ch.Text)
	if err != nil {
		if errors.Is(err, ErrInsufficientOperands) {
			log.Warn("challenge abandoned", "err", err)
		} else {
			log.Warn("challenge unparseable, abandoned", "err", err)
		}
		return Result{Stage: StageAbandoned, Err: err}
	}
	log.Debug("challenge parsed", "answer", answer)

	outcome, err := v.sink.SubmitAnswer(ctx, ch.Code, answer)
	if err != nil {
		log.Warn("challenge answer not delivered", "answer", answer, "err", err)
		return Result{Stage: StageFailed, Answer: answer, Outcome: types.VerifyError, Err: err}
	}

	switch outcome {
	case types.VerifyAccepted:
		log.Info("challenge answered", "answer", answer)
	case types.VerifyExpired:
		log.Info("challenge expired or already answered", "answer", answer)
	default:
		log.Warn("challenge answer rejected", "answer", answer, "outcome", outcome)
		return Result{Stage: StageFailed, Answer: answer, Outcome: outcome}
	}
	return Result{Stage: StageAnswered, Answer: answer, Outcome: outcome}
}
