package model

import (
	"time"
)

// MetaFormat selects the serialization format for metadata sidecar files
type MetaFormat string

const (
	MetaJSON = MetaFormat("json")
	MetaXML  = MetaFormat("xml")
)

// Enclosure is the media attachment declared by a feed entry
type Enclosure struct {
	URL    string
	Type   string // declared MIME type
	Length int64
}

// Extra describes a secondary download attached to an episode during
// selection (e.g. the episode cover image)
type Extra struct {
	URL        string
	OutputPath string
	ArchiveKey string
}

type Episode struct {
	// GUID of the episode as declared by the feed
	GUID        string
	Title       string
	Description string
	Link        string
	Author      string
	Duration    string
	PubDate     time.Time
	Enclosure   *Enclosure
	// ImageURL is the entry-level image, ITunesImage the itunes namespace fallback
	ImageURL    string
	ITunesImage string
	// Raw holds extension fields extracted from the original document,
	// keyed by namespace and element name. Leaf nodes use the reserved
	// "attrs" and "value" keys.
	Raw map[string]interface{}

	// Selection-time annotations, not part of the feed document.

	// OriginalIndex is the position in the untouched feed item sequence
	OriginalIndex int
	// Extras are secondary downloads resolved during selection
	Extras []*Extra
}

type Feed struct {
	// SourceURL is the URL the feed document was fetched from
	SourceURL   string
	Title       string
	Description string
	Language    string
	ItemURL     string // website link declared by the feed
	ImageURL    string
	Author      string
	PubDate     time.Time
	Episodes    []*Episode
	// Raw holds feed-level extension fields, same shape as Episode.Raw
	Raw map[string]interface{}
}
