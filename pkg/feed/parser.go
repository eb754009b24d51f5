// Package feed fetches a syndication feed and adapts it to the model
// types, keeping a reference to the raw extension fields of the original
// document for metadata export.
package feed

import (
	"context"
	"strconv"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/poddl/poddl/pkg/meta"
	"github.com/poddl/poddl/pkg/model"
)

// Options alter how the fetched document is adapted
type Options struct {
	// DiscoverImage scans the feed's website for a cover image when the
	// feed itself declares none. Performs an extra network call.
	DiscoverImage bool
}

// Fetch retrieves and parses the feed at url. A failure here is fatal to
// the run; the caller gets a wrapped error and no partial document.
func Fetch(ctx context.Context, url string, opts Options) (*model.Feed, error) {
	parser := gofeed.NewParser()

	parsed, err := parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch feed %q", url)
	}

	return fromParsed(parsed, url, opts), nil
}

// Parse adapts an already parsed document. Split out from Fetch so tests
// can feed documents from strings.
func Parse(data string, url string, opts Options) (*model.Feed, error) {
	parsed, err := gofeed.NewParser().ParseString(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse feed")
	}

	return fromParsed(parsed, url, opts), nil
}

func fromParsed(parsed *gofeed.Feed, url string, opts Options) *model.Feed {
	feed := &model.Feed{
		SourceURL:   url,
		Title:       parsed.Title,
		Description: parsed.Description,
		Language:    parsed.Language,
		ItemURL:     parsed.Link,
		Raw:         rawExtensions(parsed.Extensions),
	}

	if parsed.PublishedParsed != nil {
		feed.PubDate = *parsed.PublishedParsed
	}
	if len(parsed.Authors) > 0 && parsed.Authors[0] != nil {
		feed.Author = parsed.Authors[0].Name
	}
	if parsed.Image != nil {
		feed.ImageURL = parsed.Image.URL
	}

	if feed.ImageURL == "" && opts.DiscoverImage && parsed.Link != "" {
		if icon, err := DiscoverImage(parsed.Link); err == nil {
			feed.ImageURL = icon
		} else {
			log.WithError(err).Debugf("no cover image found at %q", parsed.Link)
		}
	}

	for _, item := range parsed.Items {
		feed.Episodes = append(feed.Episodes, fromItem(item))
	}

	return feed
}

func fromItem(item *gofeed.Item) *model.Episode {
	episode := &model.Episode{
		GUID:        item.GUID,
		Title:       item.Title,
		Description: item.Description,
		Link:        item.Link,
		Raw:         rawExtensions(item.Extensions),
	}

	if item.PublishedParsed != nil {
		episode.PubDate = *item.PublishedParsed
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		episode.Author = item.Authors[0].Name
	}
	if item.Image != nil {
		episode.ImageURL = item.Image.URL
	}
	if item.ITunesExt != nil {
		episode.ITunesImage = item.ITunesExt.Image
		episode.Duration = item.ITunesExt.Duration
	}

	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		length, _ := strconv.ParseInt(enclosure.Length, 10, 64)
		episode.Enclosure = &model.Enclosure{
			URL:    enclosure.URL,
			Type:   enclosure.Type,
			Length: length,
		}
	}

	return episode
}

// rawExtensions converts the parser's extension tree into a plain object
// graph suitable for field projection. Single elements collapse to one
// node, repeated elements become lists.
func rawExtensions(extensions ext.Extensions) map[string]interface{} {
	if len(extensions) == 0 {
		return nil
	}

	out := make(map[string]interface{}, len(extensions))
	for ns, names := range extensions {
		nsNode := make(map[string]interface{}, len(names))
		for name, list := range names {
			nsNode[name] = collapse(list)
		}
		out[ns] = nsNode
	}

	return out
}

func collapse(list []ext.Extension) interface{} {
	nodes := make([]interface{}, 0, len(list))
	for _, e := range list {
		nodes = append(nodes, rawExtension(e))
	}

	if len(nodes) == 1 {
		return nodes[0]
	}
	return nodes
}

func rawExtension(e ext.Extension) map[string]interface{} {
	node := make(map[string]interface{})

	if len(e.Attrs) > 0 {
		attrs := make(map[string]interface{}, len(e.Attrs))
		for k, v := range e.Attrs {
			attrs[k] = v
		}
		node[meta.KeyAttrs] = attrs
	}

	if e.Value != "" {
		node[meta.KeyValue] = e.Value
	}

	for name, children := range e.Children {
		node[name] = collapse(children)
	}

	return node
}
