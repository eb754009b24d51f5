// Package media resolves the downloadable audio URL of a feed entry.
package media

import (
	"net/url"
	"path"
	"strings"

	"github.com/poddl/poddl/pkg/model"
)

// audioExtensions are the URL path extensions recognized as audio.
var audioExtensions = map[string]struct{}{
	"aac":  {},
	"flac": {},
	"m4a":  {},
	"m4b":  {},
	"mp3":  {},
	"oga":  {},
	"ogg":  {},
	"opus": {},
	"wav":  {},
	"wma":  {},
}

// mimeExtensions maps declared enclosure MIME types to file extensions,
// for feeds whose URLs carry no recognizable extension.
var mimeExtensions = map[string]string{
	"audio/aac":    "aac",
	"audio/flac":   "flac",
	"audio/mp3":    "mp3",
	"audio/mp4":    "m4a",
	"audio/mpeg":   "mp3",
	"audio/ogg":    "ogg",
	"audio/opus":   "opus",
	"audio/wav":    "wav",
	"audio/x-m4a":  "m4a",
	"audio/x-wav":  "wav",
	"audio/x-flac": "flac",
}

// Resolve picks the media URL and extension for an episode. The entry
// link wins over the enclosure when it points straight at an audio file,
// since some feeds wrap the enclosure in a tracking URL but keep a clean
// direct URL in the link. Returns empty strings when nothing resolves.
func Resolve(episode *model.Episode) (string, string) {
	if ext := URLExtension(episode.Link); isAudioExtension(ext) {
		return episode.Link, ext
	}

	if episode.Enclosure == nil {
		return "", ""
	}

	if ext := URLExtension(episode.Enclosure.URL); isAudioExtension(ext) {
		return episode.Enclosure.URL, ext
	}

	if ext, ok := mimeExtensions[normalizeMIME(episode.Enclosure.Type)]; ok {
		return episode.Enclosure.URL, ext
	}

	return "", ""
}

// URLExtension extracts the lowercased path extension of a URL, without
// the leading dot. Query strings and fragments are ignored.
func URLExtension(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	ext := path.Ext(parsed.Path)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func isAudioExtension(ext string) bool {
	_, ok := audioExtensions[ext]
	return ok
}

func normalizeMIME(mime string) string {
	// Strip parameters like "; charset=binary"
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mime))
}
