// Package digest runs the breeding forecast for a set of farms on a cron
// schedule and reports the resulting alert.
package digest

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"goatfarm-breeding-forecast/internal/breeding"
	"goatfarm-breeding-forecast/internal/metrics"
	"goatfarm-breeding-forecast/internal/records"
)

// DefaultSchedule runs the digest once a day at midnight.
const DefaultSchedule = "@daily"

// Recorder stores a finished forecast run.
type Recorder interface {
	Record(ctx context.Context, owner string, fc breeding.Forecast, tag string) (string, error)
}

type Options struct {
	Store    records.Store
	Policy   breeding.Policy
	Owners   []string
	Schedule string
	Metrics  *metrics.Metrics
	History  Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

// Result is the outcome of one owner's digest.
type Result struct {
	Owner    string
	Forecast breeding.Forecast
	Insight  breeding.Insight
	RunID    string
	Err      error
}

// Digest owns the cron scheduler.
type Digest struct {
	opts Options
	cron *cron.Cron
	log  *zap.Logger
}

// New validates the schedule and prepares a stopped scheduler.
func New(opts Options) (*Digest, error) {
	if opts.Store == nil {
		return nil, eris.New("digest: store is required")
	}
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(opts.Schedule); err != nil {
		return nil, eris.Wrapf(err, "digest: parse schedule %q", opts.Schedule)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Digest{opts: opts, cron: cron.New(), log: log.Named("digest")}, nil
}

// Start registers the job and starts the scheduler. Runs use ctx, so
// cancelling it aborts in-flight store calls.
func (d *Digest) Start(ctx context.Context) error {
	if _, err := d.cron.AddFunc(d.opts.Schedule, func() { d.RunOnce(ctx) }); err != nil {
		return eris.Wrap(err, "digest: add job")
	}
	d.cron.Start()
	d.log.Info("digest scheduled", zap.String("schedule", d.opts.Schedule), zap.Strings("owners", d.opts.Owners))
	return nil
}

// Stop halts the scheduler. The returned context is done once running jobs
// finish.
func (d *Digest) Stop() context.Context {
	return d.cron.Stop()
}

// RunOnce forecasts every configured owner now.
func (d *Digest) RunOnce(ctx context.Context) []Result {
	today := breeding.DateOnly(d.opts.Now())
	results := make([]Result, 0, len(d.opts.Owners))
	for _, owner := range d.opts.Owners {
		res := d.runOwner(ctx, owner, today)
		if d.opts.Metrics != nil {
			d.opts.Metrics.DigestRun(res.Err == nil)
		}
		results = append(results, res)
	}
	return results
}

func (d *Digest) runOwner(ctx context.Context, owner string, today time.Time) Result {
	log := d.log.With(zap.String("owner", owner))
	res := Result{Owner: owner}

	raw, err := d.opts.Store.List(ctx, owner, records.CollectionBreeding)
	if err != nil {
		res.Err = err
		log.Error("digest failed", zap.Error(err))
		return res
	}
	normalized := d.opts.Policy.Normalize(raw)
	res.Forecast = d.opts.Policy.Summarize(normalized, today)
	res.Insight = res.Forecast.Insight()
	if skipped := len(raw) - len(normalized); skipped > 0 {
		log.Debug("skipped malformed breeding records", zap.Int("skipped", skipped))
	}

	if d.opts.Metrics != nil {
		d.opts.Metrics.ObserveForecast(owner, res.Forecast)
	}
	if d.opts.History != nil {
		res.RunID, err = d.opts.History.Record(ctx, owner, res.Forecast, "digest")
		if err != nil {
			res.Err = err
			log.Error("record digest run", zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.String("as_of", breeding.FormatDate(today)),
		zap.Int("total", res.Forecast.TotalCount),
		zap.Int("due_soon", res.Forecast.DueSoonCount),
		zap.Int("overdue", res.Forecast.OverdueCount),
		zap.String("insight", res.Insight.Message),
	}
	switch res.Insight.Level {
	case breeding.InsightWarning:
		log.Warn("breeding digest", fields...)
	default:
		log.Info("breeding digest", fields...)
	}
	return res
}
