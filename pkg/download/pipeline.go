package download

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/poddl/poddl/pkg/archive"
	"github.com/poddl/poddl/pkg/feed"
	"github.com/poddl/poddl/pkg/ffmpeg"
	"github.com/poddl/poddl/pkg/hook"
	"github.com/poddl/poddl/pkg/media"
	"github.com/poddl/poddl/pkg/meta"
	"github.com/poddl/poddl/pkg/model"
)

// Options configure the per-episode pipeline.
type Options struct {
	// OutputDir is the directory episode files are written to
	OutputDir string
	// Template is the episode filename template
	Template string
	// Identity is the feed identity used in archive keys
	Identity string
	// Override re-downloads files that already exist on disk
	Override bool
	// MetaFormat enables per-episode metadata sidecars when non-empty
	MetaFormat model.MetaFormat
}

// Pipeline runs the fetch-and-postprocess steps for one episode at a
// time. Safe for concurrent use; the only shared mutable resource is the
// ledger, which serializes its own writes.
type Pipeline struct {
	feed       *model.Feed
	client     *Client
	ledger     *archive.Archive
	transcoder *ffmpeg.FFmpeg
	execHook   *hook.Hook
	rules      []meta.Rule
	opts       Options
}

func NewPipeline(
	f *model.Feed,
	client *Client,
	ledger *archive.Archive,
	transcoder *ffmpeg.FFmpeg,
	execHook *hook.Hook,
	rules []meta.Rule,
	opts Options,
) *Pipeline {
	return &Pipeline{
		feed:       f,
		client:     client,
		ledger:     ledger,
		transcoder: transcoder,
		execHook:   execHook,
		rules:      rules,
		opts:       opts,
	}
}

// Process runs the pipeline for one episode. Every step failure is
// caught here and folded into the outcome; nothing propagates to abort
// sibling episodes.
func (p *Pipeline) Process(ctx context.Context, episode *model.Episode) Outcome {
	logger := log.WithFields(log.Fields{
		"guid":  episode.GUID,
		"index": episode.OriginalIndex,
	})

	fail := func(err error) Outcome {
		logger.WithError(err).Error("episode failed")
		return Outcome{Episode: episode, Status: StatusFailed, Err: err}
	}

	mediaURL, ext := media.Resolve(episode)
	if mediaURL == "" {
		return fail(errors.Errorf("no media URL for episode %q", episode.GUID))
	}

	var (
		name = feed.EpisodeName(p.opts.Template, episode, ext)
		key  = feed.ArchiveKey(p.opts.Identity, name)
	)

	// Selection already filtered archived episodes, but a concurrent
	// sibling may have inserted keys since then; re-check before doing
	// any work.
	recorded, err := p.ledger.Contains(key)
	if err != nil {
		return fail(err)
	}
	if recorded {
		logger.Debug("skipping, already in archive")
		return Outcome{Episode: episode, Status: StatusArchived}
	}

	var (
		outputPath = filepath.Join(p.opts.OutputDir, name)
		status     = StatusDownloaded
	)

	if _, err := os.Stat(outputPath); err == nil && !p.opts.Override {
		logger.Infof("episode already exists on disk: %s", name)
		status = StatusExists
	} else {
		logger.Infof("! downloading %s", mediaURL)
		if err := p.client.Download(ctx, mediaURL, outputPath); err != nil {
			return fail(err)
		}
	}

	keys := []string{key}
	soft := false

	for _, extra := range episode.Extras {
		extraPath := filepath.Join(p.opts.OutputDir, extra.OutputPath)
		if err := p.client.Download(ctx, extra.URL, extraPath); err != nil {
			logger.WithError(err).Warnf("failed to download %q", extra.URL)
			soft = true
			continue
		}
		keys = append(keys, extra.ArchiveKey)
	}

	if p.opts.MetaFormat != "" {
		metaPath := MetaPath(outputPath, ext, p.opts.MetaFormat)
		if err := WriteMeta(metaPath, EpisodeMeta(episode), p.rules, p.opts.MetaFormat); err != nil {
			return fail(err)
		}
		logger.Debugf("wrote metadata to %q", metaPath)
	}

	if p.transcoder != nil && p.transcoder.Supports(ext) {
		if err := p.transcoder.Transcode(ctx, outputPath, p.tags(episode)); err != nil {
			return fail(errors.Wrap(err, "post-processing failed"))
		}
	}

	if err := p.execHook.Run(ctx, outputPath); err != nil {
		return fail(err)
	}

	if err := p.ledger.Insert(keys...); err != nil {
		return fail(err)
	}

	logger.Infof("episode done: %s", status)
	return Outcome{Episode: episode, Status: status, SoftErrors: soft}
}

func (p *Pipeline) tags(episode *model.Episode) ffmpeg.Tags {
	artist := episode.Author
	if artist == "" {
		artist = p.feed.Author
	}

	tags := ffmpeg.Tags{
		Title:  episode.Title,
		Album:  p.feed.Title,
		Artist: artist,
	}

	if !episode.PubDate.IsZero() {
		tags.Date = strconv.Itoa(episode.PubDate.UTC().Year())
	}

	return tags
}
