package main

import (
	"context"
	"os"
	"regexp"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/poddl/poddl/pkg/archive"
	"github.com/poddl/poddl/pkg/download"
	"github.com/poddl/poddl/pkg/feed"
	"github.com/poddl/poddl/pkg/ffmpeg"
	"github.com/poddl/poddl/pkg/filter"
	"github.com/poddl/poddl/pkg/hook"
	"github.com/poddl/poddl/pkg/media"
	"github.com/poddl/poddl/pkg/meta"
	"github.com/poddl/poddl/pkg/model"
)

type Opts struct {
	ConfigPath string `long:"config" short:"c" env:"PODDL_CONFIG_PATH" description:"optional TOML configuration file"`
	URL        string `long:"url" description:"feed URL to download from"`
	OutDir     string `long:"out-dir" description:"directory to write episode files to"`
	Archive    string `long:"archive" description:"path of the dedup archive file"`

	Offset     int    `long:"offset" description:"skip the N most recent episodes"`
	Limit      int    `long:"limit" description:"download at most N matching episodes"`
	Reverse    bool   `long:"reverse" description:"scan the feed oldest first"`
	After      string `long:"after" description:"only episodes published on or after this day (YYYY-MM-DD)"`
	Before     string `long:"before" description:"only episodes published on or before this day (YYYY-MM-DD)"`
	MatchTitle string `long:"match-title" description:"regex the episode title must match"`

	Threads          int     `long:"threads" short:"t" description:"number of concurrent downloads (1-32)"`
	Override         bool    `long:"override" description:"re-download files that already exist on disk"`
	IncludeImages    bool    `long:"include-images" description:"also download episode images"`
	ResolveRedirects bool    `long:"resolve-redirects" description:"probe tracking URLs for the real media URL"`
	RateLimit        float64 `long:"rate-limit" description:"max download requests per second"`

	Template    string   `long:"episode-template" description:"episode filename template"`
	EpisodeMeta string   `long:"episode-meta" choice:"json" choice:"xml" description:"write a metadata sidecar per episode"`
	FeedMeta    bool     `long:"feed-meta" description:"write a metadata file for the feed"`
	MetaFields  []string `long:"meta-field" description:"metadata field rule, repeatable; prefix with ! to exclude"`

	Bitrate   string `long:"mp3-bitrate" description:"re-encode mp3 files at this bitrate, e.g. 128k"`
	Mono      bool   `long:"mono" description:"downmix mp3 files to mono"`
	EmbedTags bool   `long:"embed-tags" description:"embed episode tags into mp3 files"`
	Exec      string `long:"exec" description:"command to run after each episode; {path} and {base} are substituted"`

	Debug bool `long:"debug" description:"verbose logging"`
}

// Exit codes let calling scripts branch on the run outcome.
const (
	exitOK = 0
	// exitErrors: fatal error, or some episodes downloaded with failures
	exitErrors = 1
	// exitNothing: failures and not a single episode downloaded
	exitNothing = 2
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	})

	opts := Opts{}
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(exitOK)
		}
		os.Exit(exitErrors)
	}

	if opts.Debug {
		log.SetLevel(log.DebugLevel)
	}

	cfg := &Config{}
	if opts.ConfigPath != "" {
		log.Debugf("loading configuration %q", opts.ConfigPath)
		loaded, err := LoadConfig(opts.ConfigPath)
		if err != nil {
			log.WithError(err).Fatal("failed to load configuration file")
		}
		cfg = loaded
	}

	cfg.mergeOpts(opts)
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	summary, err := run(context.Background(), cfg)
	if err != nil {
		log.WithError(err).Fatal("run failed")
	}

	os.Exit(report(summary))
}

func run(ctx context.Context, cfg *Config) (download.Summary, error) {
	var none download.Summary

	log.Infof("-> fetching %s", cfg.URL)
	f, err := feed.Fetch(ctx, cfg.URL, feed.Options{
		DiscoverImage: cfg.Download.IncludeImages,
	})
	if err != nil {
		return none, err
	}

	log.Debugf("received %d episode(s) for %q", len(f.Episodes), f.Title)

	criteria, err := buildCriteria(cfg)
	if err != nil {
		return none, err
	}

	episodes, err := filter.Select(ctx, f, criteria)
	if err != nil {
		return none, errors.Wrap(err, "selection failed")
	}

	log.Infof("selected %d episode(s)", len(episodes))

	rules, err := meta.CompileRules(cfg.Meta.Fields)
	if err != nil {
		return none, err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return none, errors.Wrapf(err, "failed to create output directory %q", cfg.OutputDir)
	}

	metaFormat := model.MetaFormat(cfg.Meta.Episode)

	if cfg.Meta.Feed {
		path := download.FeedMetaPath(cfg.OutputDir, criteria.Identity, feedMetaFormat(metaFormat))
		if err := download.WriteMeta(path, download.FeedMeta(f), rules, feedMetaFormat(metaFormat)); err != nil {
			return none, err
		}
		log.Debugf("wrote feed metadata to %q", path)
	}

	var transcoder *ffmpeg.FFmpeg
	if cfg.Postprocess.MP3Bitrate != "" || cfg.Postprocess.Mono || cfg.Postprocess.EmbedTags {
		transcoder, err = ffmpeg.New(ctx, ffmpeg.Options{
			Bitrate:   cfg.Postprocess.MP3Bitrate,
			Mono:      cfg.Postprocess.Mono,
			EmbedTags: cfg.Postprocess.EmbedTags,
		})
		if err != nil {
			return none, err
		}
	}

	pipeline := download.NewPipeline(
		f,
		download.NewClient(0, cfg.RateLimit),
		criteria.Archive,
		transcoder,
		hook.New(cfg.Postprocess.Exec),
		rules,
		download.Options{
			OutputDir:  cfg.OutputDir,
			Template:   cfg.EpisodeTemplate,
			Identity:   criteria.Identity,
			Override:   cfg.Download.Override,
			MetaFormat: metaFormat,
		},
	)

	return pipeline.RunAll(ctx, episodes, cfg.Threads), nil
}

func buildCriteria(cfg *Config) (filter.Criteria, error) {
	criteria := filter.Criteria{
		Offset:        cfg.Filters.Offset,
		Limit:         cfg.Filters.Limit,
		Reverse:       cfg.Filters.Reverse,
		IncludeImages: cfg.Download.IncludeImages,
		Template:      cfg.EpisodeTemplate,
		Identity:      feed.Identity(cfg.URL),
		Archive:       archive.New(cfg.Archive),
	}

	if cfg.Filters.Title != "" {
		re, err := regexp.Compile(cfg.Filters.Title)
		if err != nil {
			return criteria, errors.Wrap(err, "invalid title regex")
		}
		criteria.Title = re
	}

	// Dates were validated with the config
	criteria.Before, _ = parseDay(cfg.Filters.Before)
	criteria.After, _ = parseDay(cfg.Filters.After)

	if cfg.Download.ResolveRedirects {
		criteria.Prober = media.NewProber()
	}

	return criteria, nil
}

// feedMetaFormat picks the feed sidecar format, defaulting to JSON when
// episode sidecars are off.
func feedMetaFormat(episodeFormat model.MetaFormat) model.MetaFormat {
	if episodeFormat == "" {
		return model.MetaJSON
	}
	return episodeFormat
}

// report prints the run summary and picks the process exit code.
func report(summary download.Summary) int {
	switch {
	case !summary.HadErrors:
		log.Infof("successfully downloaded %d episode(s), skipped %d", summary.Downloaded, summary.Skipped)
		return exitOK
	case summary.Downloaded == 0 && summary.Failed > 0:
		log.Error("nothing downloaded")
		return exitNothing
	default:
		log.Warnf("completed with errors: %d of %d downloaded", summary.Downloaded, summary.Selected)
		return exitErrors
	}
}
