package report

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/PraWek/BusinessTelemetry/internal/events"
)

// Sink receives a finished report
type Sink interface {
	Name() string
	Write(ctx context.Context, r *Report) error
}

// Processor builds reports and hands them to every configured sink
type Processor struct {
	opts  Options
	sinks []Sink
}

// NewProcessor creates a new report processor
func NewProcessor(opts Options, sinks ...Sink) *Processor {
	return &Processor{
		opts:  opts,
		sinks: sinks,
	}
}

// Run computes the report for table and writes it to all sinks. Sinks run
// concurrently; the first sink error is returned after all have finished.
func (p *Processor) Run(ctx context.Context, table *events.Table) (*Report, error) {
	start := time.Now()

	r, err := Build(ctx, table, p.opts)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("run_id", r.RunID.String()).
		Int("events", table.Len()).
		Int("sessions", len(r.Sessions)).
		Int("funnel_steps", len(r.Funnel.Rows)).
		Int("transitions", len(r.Transitions.Rows)).
		Int("cohort_dates", len(r.Conversion.Rows)).
		Dur("duration", time.Since(start)).
		Msg("Report computed")

	var g errgroup.Group
	for _, sink := range p.sinks {
		sink := sink
		g.Go(func() error {
			sinkStart := time.Now()
			if err := sink.Write(ctx, r); err != nil {
				log.Error().Err(err).Str("sink", sink.Name()).Msg("Failed to write report")
				return fmt.Errorf("%s sink: %w", sink.Name(), err)
			}
			log.Info().
				Str("sink", sink.Name()).
				Dur("duration", time.Since(sinkStart)).
				Msg("Report written")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r, err
	}
	return r, nil
}

// Close closes every sink that holds resources
func (p *Processor) Close() error {
	var firstErr error
	for _, sink := range p.sinks {
		sink := sink
		c, ok := sink.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			log.Error().Err(err).Str("sink", sink.Name()).Msg("Failed to close sink")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
