package crawler

import (
	"time"

	"focused-crawler/internal/config"
	"focused-crawler/internal/eventlog"
	"focused-crawler/internal/hostman"
	"focused-crawler/internal/parser"
	"focused-crawler/internal/storage"

	"github.com/sirupsen/logrus"
)

type Options struct {
	PageCap         int
	Cutoff          float64
	Keywords        []string
	Rules           parser.Rules
	AcceptLanguages []string
	AcceptBlacklist []string
	UserAgent       string
	FetchTimeout    time.Duration
	MaxBodyBytes    int64
	Politeness      hostman.Options
}

// FromConfig maps the loaded configuration onto controller options.
func FromConfig(cfg *config.Config) Options {
	return Options{
		PageCap:         cfg.PageCap,
		Cutoff:          cfg.RelevanceCutoff,
		Keywords:        cfg.Keywords,
		Rules:           cfg.CanonRules(),
		AcceptLanguages: cfg.AcceptLanguages,
		AcceptBlacklist: cfg.AcceptBlacklist,
		UserAgent:       cfg.UserAgent,
		FetchTimeout:    cfg.FetchTimeout,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		Politeness: hostman.Options{
			UserAgent:    cfg.UserAgent,
			DefaultDelay: cfg.DefaultDelay,
			MaxDelay:     cfg.MaxDelay,
			Timeout:      cfg.FetchTimeout,
			Retry:        hostman.Backoff{Attempts: cfg.RobotsAttempts, Base: cfg.RobotsBackoff},
		},
	}
}

// Deps are the controller's collaborators. Nil fields get no-op defaults and
// a nil Client gets NewHTTPClient(FetchTimeout).
type Deps struct {
	Client hostman.Doer
	Sink   storage.Sink
	Events eventlog.Log
	Log    logrus.FieldLogger
}

func (d Deps) withDefaults(opts Options) Deps {
	if d.Client == nil {
		d.Client = NewHTTPClient(opts.FetchTimeout)
	}
	if d.Sink == nil {
		d.Sink = storage.Discard
	}
	if d.Events == nil {
		d.Events = eventlog.Discard
	}
	if d.Log == nil {
		d.Log = logrus.StandardLogger()
	}
	return d
}
