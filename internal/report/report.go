package report

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/PraWek/BusinessTelemetry/internal/cohorts"
	"github.com/PraWek/BusinessTelemetry/internal/events"
	"github.com/PraWek/BusinessTelemetry/internal/features"
	"github.com/PraWek/BusinessTelemetry/internal/metrics"
	"github.com/PraWek/BusinessTelemetry/internal/session"
)

// Options configures one analytics run
type Options struct {
	Fields              events.Fields
	Steps               metrics.Steps
	RequireStepIncrease bool
	OrdersAction        string
	Activity            cohorts.ActivityOptions
}

// Report holds every table produced by one run
type Report struct {
	RunID       uuid.UUID
	GeneratedAt time.Time
	Steps       metrics.Steps

	Sessions      []session.Summary
	Features      []features.Row
	ProductToCart []features.Row
	Funnel        metrics.FunnelTable
	Transitions   metrics.TransitionTable
	Conversion    metrics.ConversionTable
	KPIs          []metrics.KPIRow
	Activity      []cohorts.ActivityRow
	Retention     []cohorts.RetentionRow
}

// Build runs every analytics pass over the table. The passes share nothing
// but the read-only table and run concurrently; the first error is returned.
func Build(_ context.Context, table *events.Table, opts Options) (*Report, error) {
	if len(opts.Steps) == 0 {
		return nil, metrics.ErrEmptySteps
	}
	fields := opts.Fields.WithDefaults()

	r := &Report{
		RunID:       uuid.New(),
		GeneratedAt: time.Now().UTC(),
		Steps:       opts.Steps,
	}

	var g errgroup.Group

	g.Go(func() (err error) {
		r.Sessions, err = session.Aggregate(table, fields)
		return err
	})
	g.Go(func() error {
		rows, err := features.Build(table, fields)
		if err != nil {
			return err
		}
		r.Features = rows
		r.ProductToCart = features.ProductToCartTransitions(rows)
		return nil
	})
	g.Go(func() (err error) {
		r.Funnel, err = metrics.ComputeFunnel(table, opts.Steps, fields)
		return err
	})
	g.Go(func() (err error) {
		r.Transitions, err = metrics.ComputeTransitions(table, opts.Steps.Ranks(), fields, opts.RequireStepIncrease)
		return err
	})
	g.Go(func() (err error) {
		r.Conversion, err = metrics.ComputeConversionDaily(table, opts.Steps, fields)
		return err
	})
	g.Go(func() (err error) {
		r.KPIs, err = metrics.ComputeKPIsByDate(table, fields, opts.OrdersAction)
		return err
	})
	g.Go(func() (err error) {
		r.Activity, err = cohorts.LabelActivity(table, fields, opts.Activity)
		return err
	})
	g.Go(func() (err error) {
		r.Retention, err = cohorts.MonthRetention(table, fields)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return r, nil
}
