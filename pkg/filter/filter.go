// Package filter selects the subset of feed entries to act on, by
// chronological, textual and dedup criteria.
package filter

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/poddl/poddl/pkg/archive"
	"github.com/poddl/poddl/pkg/feed"
	"github.com/poddl/poddl/pkg/media"
	"github.com/poddl/poddl/pkg/model"
)

// Criteria is the immutable description of which entries to select.
type Criteria struct {
	// Offset skips the N most recent entries, regardless of direction
	Offset int
	// Limit bounds the number of matching entries (0 means unlimited).
	// Applied after filtering, so it bounds matches, not scanned entries.
	Limit int
	// Reverse scans oldest-first and reverses the output order
	Reverse bool
	// Title must match for an entry to be included, when set
	Title *regexp.Regexp
	// Before/After are inclusive day-granularity publish date bounds;
	// zero values mean unset
	Before time.Time
	After  time.Time
	// IncludeImages attaches secondary image download descriptors to
	// selected entries
	IncludeImages bool
	// Template is the episode filename template used for archive keys
	Template string
	// Identity is the feed identity prefix of archive keys
	Identity string
	// Archive is the dedup ledger; nil disables dedup filtering
	Archive *archive.Archive
	// Prober resolves tracking redirects on selected entries; nil
	// disables probing
	Prober *media.Prober
}

// Select walks the feed entries in the direction given by the criteria
// and returns the entries passing every predicate, in visitation order,
// annotated with their original index and secondary downloads.
func Select(ctx context.Context, f *model.Feed, c Criteria) ([]*model.Episode, error) {
	items := f.Episodes
	if len(items) == 0 {
		return nil, model.ErrEmptyFeed
	}

	if c.Offset >= len(items) {
		return nil, errors.Wrapf(model.ErrOffsetOutOfRange, "offset %d with %d episode(s)", c.Offset, len(items))
	}

	var archived map[string]struct{}
	if c.Archive != nil {
		set, err := c.Archive.Load()
		if err != nil {
			return nil, err
		}
		archived = set
	}

	var selected []*model.Episode

	for _, idx := range visitOrder(len(items), c.Offset, c.Reverse) {
		episode := items[idx]

		_, ext := media.Resolve(episode)
		name := feed.EpisodeName(c.Template, episode, ext)

		if !matches(episode, name, archived, c) {
			continue
		}

		episode.OriginalIndex = idx
		episode.Extras = nil

		if c.IncludeImages {
			attachImage(episode, name, ext, c)
		}

		selected = append(selected, episode)
	}

	if len(selected) == 0 {
		return nil, model.ErrNothingMatched
	}

	if c.Limit > 0 && len(selected) > c.Limit {
		selected = selected[:c.Limit]
	}

	if c.Prober != nil {
		resolveRedirects(ctx, selected, c.Prober)
	}

	return selected, nil
}

// visitOrder returns the indices to scan. Forward runs from offset to the
// end; reverse runs from (length-1-offset) down to zero, so offset always
// means "skip the N most recent entries".
func visitOrder(length, offset int, reverse bool) []int {
	order := make([]int, 0, length-offset)

	if reverse {
		for i := length - 1 - offset; i >= 0; i-- {
			order = append(order, i)
		}
	} else {
		for i := offset; i < length; i++ {
			order = append(order, i)
		}
	}

	return order
}

func matches(episode *model.Episode, name string, archived map[string]struct{}, c Criteria) bool {
	logger := log.WithField("guid", episode.GUID)

	if c.Title != nil {
		if episode.Title == "" || !c.Title.MatchString(episode.Title) {
			logger.Debug("skipping due to title mismatch")
			return false
		}
	}

	if !c.Before.IsZero() && day(episode.PubDate).After(day(c.Before)) {
		logger.Debug("skipping due to publish date after bound")
		return false
	}

	if !c.After.IsZero() && day(episode.PubDate).Before(day(c.After)) {
		logger.Debug("skipping due to publish date before bound")
		return false
	}

	if archived != nil {
		key := feed.ArchiveKey(c.Identity, name)
		if _, ok := archived[key]; ok {
			logger.Debugf("skipping, already in archive: %s", key)
			return false
		}
	}

	return true
}

// day truncates a timestamp to its UTC calendar day, so date bounds are
// same-day inclusive rather than instant comparisons.
func day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func attachImage(episode *model.Episode, name, mediaExt string, c Criteria) {
	imageURL := episode.ImageURL
	if imageURL == "" {
		imageURL = episode.ITunesImage
	}
	if imageURL == "" {
		return
	}

	imageExt := media.URLExtension(imageURL)
	if imageExt == "" {
		imageExt = "jpg"
	}

	imageName := feed.ExtraName(name, mediaExt, imageExt)

	episode.Extras = append(episode.Extras, &model.Extra{
		URL:        imageURL,
		OutputPath: imageName,
		ArchiveKey: feed.ArchiveKey(c.Identity, imageName),
	})
}

// resolveRedirects rewrites enclosure URLs that hide the real media URL
// behind a tracking wrapper. Best effort; entries keep their original URL
// when no embedded candidate responds.
func resolveRedirects(ctx context.Context, episodes []*model.Episode, prober *media.Prober) {
	for _, episode := range episodes {
		url, _ := media.Resolve(episode)
		if episode.Enclosure == nil || url != episode.Enclosure.URL {
			continue
		}

		episode.Enclosure.URL = prober.Resolve(ctx, url)
	}
}
