package main

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/poddl/poddl/pkg/download"
)

// Filters mirror the selection criteria
type Filters struct {
	// Title is a regex the episode title must match
	Title string `toml:"title"`
	// Before/After are inclusive day bounds in YYYY-MM-DD form
	Before string `toml:"before"`
	After  string `toml:"after"`
	// Offset skips the N most recent episodes
	Offset int `toml:"offset"`
	// Limit bounds the number of matching episodes
	Limit int `toml:"limit"`
	// Reverse scans the feed oldest first
	Reverse bool `toml:"reverse"`
}

type Download struct {
	Override         bool `toml:"override"`
	IncludeImages    bool `toml:"include_images"`
	ResolveRedirects bool `toml:"resolve_redirects"`
}

type Meta struct {
	// Episode selects the per-episode sidecar format: "json" or "xml",
	// empty disables sidecars
	Episode string `toml:"episode"`
	// Feed writes a single per-feed metadata file
	Feed bool `toml:"feed"`
	// Fields are projection rules; later rules override earlier ones
	Fields []string `toml:"fields"`
}

type Postprocess struct {
	MP3Bitrate string `toml:"mp3_bitrate"`
	Mono       bool   `toml:"mono"`
	EmbedTags  bool   `toml:"embed_tags"`
	// Exec runs after each successful episode; {path} and {base} are
	// substituted
	Exec string `toml:"exec"`
}

// Config is the fully merged run configuration: TOML file values
// overridden by command line flags.
type Config struct {
	// URL is the feed to download from
	URL string `toml:"url"`
	// OutputDir is where episode files are written
	OutputDir string `toml:"output_dir"`
	// Archive is the dedup ledger path
	Archive string `toml:"archive"`
	// Threads is the number of concurrent downloads (1-32)
	Threads int `toml:"threads"`
	// EpisodeTemplate names downloaded files
	EpisodeTemplate string `toml:"episode_template"`
	// RateLimit throttles downloads, in requests per second (0 = off)
	RateLimit float64 `toml:"rate_limit"`

	Filters     Filters     `toml:"filters"`
	Download    Download    `toml:"download"`
	Meta        Meta        `toml:"meta"`
	Postprocess Postprocess `toml:"postprocess"`
}

// LoadConfig reads a TOML configuration file.
func LoadConfig(path string) (*Config, error) {
	config := Config{}
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, errors.Wrap(err, "failed to load config file")
	}

	return &config, nil
}

// mergeOpts lays command line flags over the file configuration. Flags
// win whenever they are set.
func (c *Config) mergeOpts(opts Opts) {
	if opts.URL != "" {
		c.URL = opts.URL
	}
	if opts.OutDir != "" {
		c.OutputDir = opts.OutDir
	}
	if opts.Archive != "" {
		c.Archive = opts.Archive
	}
	if opts.Threads != 0 {
		c.Threads = opts.Threads
	}
	if opts.Template != "" {
		c.EpisodeTemplate = opts.Template
	}
	if opts.RateLimit != 0 {
		c.RateLimit = opts.RateLimit
	}

	if opts.MatchTitle != "" {
		c.Filters.Title = opts.MatchTitle
	}
	if opts.Before != "" {
		c.Filters.Before = opts.Before
	}
	if opts.After != "" {
		c.Filters.After = opts.After
	}
	if opts.Offset != 0 {
		c.Filters.Offset = opts.Offset
	}
	if opts.Limit != 0 {
		c.Filters.Limit = opts.Limit
	}
	if opts.Reverse {
		c.Filters.Reverse = true
	}

	if opts.Override {
		c.Download.Override = true
	}
	if opts.IncludeImages {
		c.Download.IncludeImages = true
	}
	if opts.ResolveRedirects {
		c.Download.ResolveRedirects = true
	}

	if opts.EpisodeMeta != "" {
		c.Meta.Episode = opts.EpisodeMeta
	}
	if opts.FeedMeta {
		c.Meta.Feed = true
	}
	if len(opts.MetaFields) > 0 {
		c.Meta.Fields = opts.MetaFields
	}

	if opts.Bitrate != "" {
		c.Postprocess.MP3Bitrate = opts.Bitrate
	}
	if opts.Mono {
		c.Postprocess.Mono = true
	}
	if opts.EmbedTags {
		c.Postprocess.EmbedTags = true
	}
	if opts.Exec != "" {
		c.Postprocess.Exec = opts.Exec
	}
}

func (c *Config) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Archive == "" {
		c.Archive = "poddl.archive.json"
	}
	if c.Threads == 0 {
		c.Threads = 1
	}
	if len(c.Meta.Fields) == 0 {
		c.Meta.Fields = []string{"**"}
	}
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.URL == "" {
		result = multierror.Append(result, errors.New("feed URL is required"))
	}
	if c.Threads < download.MinConcurrency || c.Threads > download.MaxConcurrency {
		result = multierror.Append(result, errors.Errorf(
			"threads must be between %d and %d (got %d)",
			download.MinConcurrency, download.MaxConcurrency, c.Threads,
		))
	}
	if c.Filters.Offset < 0 {
		result = multierror.Append(result, errors.New("offset can't be negative"))
	}
	if c.Filters.Limit < 0 {
		result = multierror.Append(result, errors.New("limit can't be negative"))
	}
	if c.Meta.Episode != "" && c.Meta.Episode != "json" && c.Meta.Episode != "xml" {
		result = multierror.Append(result, errors.Errorf("unsupported metadata format %q", c.Meta.Episode))
	}
	if _, err := parseDay(c.Filters.Before); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "invalid before date"))
	}
	if _, err := parseDay(c.Filters.After); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "invalid after date"))
	}

	return result.ErrorOrNil()
}

// parseDay parses a YYYY-MM-DD day bound; empty input means unset and
// yields a zero time.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse("2006-01-02", s)
}
