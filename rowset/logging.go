package rowset

import (
	"time"

	"github.com/rs/zerolog"
)

// EvaluatorLogEvent describes one predicate filter run.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	Rows     int
	Matched  int
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// ZerologEvaluatorLogger writes evaluator events to logger: failures at
// warn, everything else at debug.
func ZerologEvaluatorLogger(logger zerolog.Logger) EvaluatorLogger {
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		entry := logger.Debug()
		if event.Err != nil {
			entry = logger.Warn().Err(event.Err)
		}
		entry.
			Str("engine", event.Engine).
			Str("expr", event.Expr).
			Int("rows", event.Rows).
			Int("matched", event.Matched).
			Dur("duration", event.Duration).
			Msg("row predicate evaluated")
	})
}
