package feed

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/poddl/poddl/pkg/model"
)

// DefaultTemplate is the episode filename template used when the caller
// doesn't supply one.
const DefaultTemplate = "{{release_date}}-{{title}}.{{ext}}"

var (
	identitySanitizer = regexp.MustCompile(`[^a-zA-Z0-9.-]+`)
	nameSanitizer     = regexp.MustCompile(`[\x00-\x1f/\\?%*|:"<>]`)
	spaceCollapser    = regexp.MustCompile(`\s+`)
)

// Identity derives a stable feed identifier from the feed's source URL
// (host plus path). Two runs against the same URL always produce the same
// identity, which keeps archive keys deterministic.
func Identity(sourceURL string) string {
	raw := sourceURL
	if !strings.HasPrefix(raw, "http") {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return identitySanitizer.ReplaceAllString(sourceURL, "-")
	}

	identity := parsed.Host + parsed.Path
	identity = identitySanitizer.ReplaceAllString(identity, "-")

	return strings.Trim(identity, "-")
}

// ArchiveKey ties a feed identity to an artifact filename.
func ArchiveKey(identity, filename string) string {
	return identity + "-" + filename
}

// EpisodeName renders the filename for an episode's media artifact from a
// template. Supported tokens: {{release_date}}, {{title}}, {{guid}},
// {{ext}}. The result is deterministic for a given episode and extension.
func EpisodeName(template string, episode *model.Episode, ext string) string {
	if template == "" {
		template = DefaultTemplate
	}

	date := ""
	if !episode.PubDate.IsZero() {
		date = episode.PubDate.UTC().Format("20060102")
	}

	replacer := strings.NewReplacer(
		"{{release_date}}", date,
		"{{title}}", sanitizeName(episode.Title),
		"{{guid}}", sanitizeName(episode.GUID),
		"{{ext}}", ext,
	)

	name := replacer.Replace(template)

	// A missing extension or empty token can leave stray separators
	name = strings.Trim(name, "-. ")

	return name
}

// ExtraName renders the filename for a secondary artifact (e.g. episode
// image) by swapping the media extension of an already rendered episode
// name.
func ExtraName(episodeName, mediaExt, extraExt string) string {
	base := strings.TrimSuffix(episodeName, "."+mediaExt)
	return base + "." + extraExt
}

func sanitizeName(name string) string {
	name = nameSanitizer.ReplaceAllString(name, "_")
	name = spaceCollapser.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
