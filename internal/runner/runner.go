// Package runner drives one posting run: pick an extract, load the service
// configuration and hand the extract to every targeted publisher in turn.
package runner

import (
	"context"
	"fmt"
	"net/http"

	"emperror.dev/errors"
	"github.com/rs/zerolog"

	"github.com/mikequentel/extractposter/internal/bluesky"
	"github.com/mikequentel/extractposter/internal/config"
	"github.com/mikequentel/extractposter/internal/fault"
	"github.com/mikequentel/extractposter/internal/mastodon"
	"github.com/mikequentel/extractposter/internal/model"
	"github.com/mikequentel/extractposter/internal/publish"
	"github.com/mikequentel/extractposter/internal/twitter"
)

// Services is the dispatch order.
var Services = []string{config.Bluesky, config.Mastodon, config.Twitter}

type Selector interface {
	Select(root string) (model.Extract, error)
}

// Factory builds the publisher of one service from a configuration whose
// section for that service passed ValidateFor.
type Factory func(cfg *config.Config, client *http.Client, logger zerolog.Logger) publish.Publisher

type Options struct {
	Root       string
	ConfigPath string

	// Enabled holds the per-service CLI switches. A service missing from the
	// map is enabled.
	Enabled map[string]bool

	// DryRun stops after target resolution; nothing is sent.
	DryRun bool
}

func (o Options) enabled(service string) bool {
	on, ok := o.Enabled[service]
	return !ok || on
}

// Report is what a run did.
type Report struct {
	Extract  model.Extract
	Targets  []string
	Handles  []*model.PostHandle
	Failures map[string]error
}

type Runner struct {
	opts      Options
	selector  Selector
	client    *http.Client
	logger    zerolog.Logger
	factories map[string]Factory
}

type Option func(*Runner)

// WithFactory replaces the publisher constructor of service.
func WithFactory(service string, f Factory) Option {
	return func(r *Runner) { r.factories[service] = f }
}

func New(opts Options, selector Selector, client *http.Client, logger zerolog.Logger, options ...Option) *Runner {
	r := &Runner{
		opts:     opts,
		selector: selector,
		client:   client,
		logger:   logger,
		factories: map[string]Factory{
			config.Bluesky: func(cfg *config.Config, c *http.Client, l zerolog.Logger) publish.Publisher {
				return bluesky.New(*cfg.Bluesky, c, l)
			},
			config.Mastodon: func(cfg *config.Config, c *http.Client, l zerolog.Logger) publish.Publisher {
				return mastodon.New(*cfg.Mastodon, c, l)
			},
			config.Twitter: func(cfg *config.Config, c *http.Client, l zerolog.Logger) publish.Publisher {
				return twitter.New(*cfg.Twitter, c, l)
			},
		},
	}
	for _, o := range options {
		o(r)
	}
	return r
}

// Run performs one posting run. Selection errors and configuration errors of a
// targeted service abort before any network call. Publisher errors do not stop later publishers;
// they are returned combined, and the report lists what was posted.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ex, err := r.selector.Select(r.opts.Root)
	if err != nil {
		return nil, err
	}
	if ex.Empty() {
		return nil, fault.Newf(fault.ErrEmptyExtract, "select", "chosen folder in %s contains no files", r.opts.Root)
	}
	r.logger.Info().Strs("extract", ex.Paths()).Msg("extract selected")

	cfg, err := config.Load(r.opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if unknown := cfg.Unknown(); len(unknown) > 0 {
		r.logger.Debug().Strs("keys", unknown).Msg("ignoring unknown configuration keys")
	}

	rep := &Report{Extract: ex, Failures: map[string]error{}}
	for _, svc := range Services {
		switch {
		case !r.opts.enabled(svc):
			r.logger.Debug().Str("service", svc).Msg("disabled on the command line")
		case !cfg.Has(svc):
			r.logger.Debug().Str("service", svc).Msg("not configured")
		default:
			rep.Targets = append(rep.Targets, svc)
		}
	}
	r.logger.Debug().Strs("targets", rep.Targets).Msg("services targeted")
	if len(rep.Targets) == 0 {
		r.logger.Warn().Msg("no service is both enabled and configured, nothing to post")
	}

	var invalid []error
	for _, svc := range rep.Targets {
		invalid = append(invalid, cfg.ValidateFor(svc))
	}
	if err := errors.Combine(invalid...); err != nil {
		return nil, errors.WithMessagef(err, "config %s", r.opts.ConfigPath)
	}

	if r.opts.DryRun {
		r.logger.Info().Strs("extract", ex.Paths()).Strs("targets", rep.Targets).Msg("dry run, nothing sent")
		return rep, nil
	}

	var errs []error
	for _, svc := range rep.Targets {
		h, err := r.factories[svc](cfg, r.client, r.logger).Publish(ctx, ex)
		if err != nil {
			r.logger.Error().Stack().Err(err).
				Str("service", svc).
				Str("kind", fmt.Sprint(fault.KindOf(err))).
				Strs("extract", ex.Paths()).
				Msg("publish failed")
			rep.Failures[svc] = err
			errs = append(errs, errors.WithMessage(err, svc))
			continue
		}
		rep.Handles = append(rep.Handles, h)
	}

	r.logger.Info().Int("posted", len(rep.Handles)).Int("failed", len(rep.Failures)).Msg("run finished")
	return rep, errors.Combine(errs...)
}
