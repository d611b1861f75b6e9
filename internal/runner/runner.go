package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voipcheck/internal/logger"
	"voipcheck/internal/models"
	"voipcheck/internal/probe"
	"voipcheck/internal/report"
	"voipcheck/internal/storage"
)

// Exit codes returned by a run.
const (
	ExitOK     = 0
	ExitFailed = 1
)

// Runner executes the control probe and then the voice probe, prints the
// summary and derives the exit code.
type Runner struct {
	control probe.Prober
	voice   probe.Prober
	console *report.Console
	storage *storage.HistoryStorage

	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// New creates a runner. store may be nil to skip recording history.
func New(control, voice probe.Prober, console *report.Console, store *storage.HistoryStorage) *Runner {
	return &Runner{
		control: control,
		voice:   voice,
		console: console,
		storage: store,
		now:     time.Now,
		newID:   uuid.NewString,
		log:     logger.WithComponent("runner"),
	}
}

// RunOnce executes both probes sequentially and returns the run report.
// Probe failures never surface as errors; they only affect ExitCode.
func (r *Runner) RunOnce(ctx context.Context) models.RunReport {
	run := models.RunReport{
		RunID:     r.newID(),
		StartedAt: r.now().UTC(),
		Results:   make([]models.ProbeResult, 0, 2),
	}
	log := r.log.With().Str("run_id", run.RunID).Logger()
	log.Debug().Msg("run started")

	r.console.Banner("VoIP Server Connection Test")
	r.console.Blank()

	run.Results = append(run.Results, r.control.Run(ctx, r.console))
	r.console.Blank()
	run.Results = append(run.Results, r.voice.Run(ctx, r.console))

	run.ExitCode = ExitCode(run.Results)
	run.FinishedAt = r.now().UTC()
	r.console.Summary(run)

	for _, res := range run.Results {
		log.Info().
			Str("channel", res.Channel).
			Str("target", res.Target).
			Str("outcome", string(res.Outcome)).
			Int64("latency_ms", res.LatencyMs).
			Msg("probe finished")
	}

	if r.storage != nil {
		if err := r.storage.Append(run); err != nil {
			log.Error().Err(err).Msg("record run history")
		}
	}
	return run
}

// ExitCode is ExitOK only when every result passed.
func ExitCode(results []models.ProbeResult) int {
	if len(results) == 0 {
		return ExitFailed
	}
	for _, res := range results {
		if !res.OK {
			return ExitFailed
		}
	}
	return ExitOK
}
