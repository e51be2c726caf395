package experiment

import (
	"go.uber.org/zap"

	"github.com/san-kum/invlab/internal/invert"
	"github.com/san-kum/invlab/internal/logging"
)

// LogObserver writes one structured log line per accepted iteration.
type LogObserver struct {
	log *logging.Logger
}

func NewLogObserver(log *logging.Logger) *LogObserver {
	if log == nil {
		log = logging.NewNop()
	}
	return &LogObserver{log: log}
}

func (o *LogObserver) OnIteration(it invert.Iteration) {
	o.log.Info("iteration",
		zap.Int("iter", it.Index),
		zap.Float64("chi2", it.ChiSq),
		zap.Float64("lambda", it.Lambda),
		zap.Float64("step", it.StepNorm),
		zap.Float64("scale", it.StepScale),
	)
}
