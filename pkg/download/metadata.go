package download

import (
	"encoding/json"
	"encoding/xml"
	"io/ioutil"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/poddl/poddl/pkg/meta"
	"github.com/poddl/poddl/pkg/model"
)

// EpisodeMeta flattens an episode into a plain object graph for field
// projection. Raw extension fields are merged in under their namespaces.
func EpisodeMeta(episode *model.Episode) map[string]interface{} {
	m := map[string]interface{}{
		"guid":        episode.GUID,
		"title":       episode.Title,
		"description": episode.Description,
		"link":        episode.Link,
		"author":      episode.Author,
		"duration":    episode.Duration,
		"image":       episode.ImageURL,
	}

	if !episode.PubDate.IsZero() {
		m["pubDate"] = episode.PubDate.UTC().Format(time.RFC3339)
	}

	if episode.Enclosure != nil {
		m["enclosure"] = map[string]interface{}{
			"url":    episode.Enclosure.URL,
			"type":   episode.Enclosure.Type,
			"length": episode.Enclosure.Length,
		}
	}

	for ns, node := range episode.Raw {
		m[ns] = node
	}

	return trimEmpty(m)
}

// FeedMeta flattens feed level metadata the same way.
func FeedMeta(feed *model.Feed) map[string]interface{} {
	m := map[string]interface{}{
		"title":       feed.Title,
		"description": feed.Description,
		"link":        feed.ItemURL,
		"language":    feed.Language,
		"author":      feed.Author,
		"image":       feed.ImageURL,
	}

	if !feed.PubDate.IsZero() {
		m["pubDate"] = feed.PubDate.UTC().Format(time.RFC3339)
	}

	for ns, node := range feed.Raw {
		m[ns] = node
	}

	return trimEmpty(m)
}

// WriteMeta projects the object through the rules and persists it as a
// sidecar file in the requested format.
func WriteMeta(path string, obj map[string]interface{}, rules []meta.Rule, format model.MetaFormat) error {
	projected := meta.Project(obj, rules)

	var (
		data []byte
		err  error
	)

	switch format {
	case model.MetaJSON:
		data, err = json.MarshalIndent(projected, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to serialize metadata")
		}
	case model.MetaXML:
		data = encodeXML("meta", projected)
	default:
		return errors.Errorf("unsupported metadata format %q", format)
	}

	if err := ioutil.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write metadata file %q", path)
	}

	return nil
}

// MetaPath derives the sidecar path next to an episode file.
func MetaPath(outputPath, mediaExt string, format model.MetaFormat) string {
	base := strings.TrimSuffix(outputPath, "."+mediaExt)
	return base + ".meta." + string(format)
}

// FeedMetaPath derives the per-feed sidecar path inside the output dir.
func FeedMetaPath(outputDir, identity string, format model.MetaFormat) string {
	return filepath.Join(outputDir, identity+".meta."+string(format))
}

// encodeXML writes a generic object graph as nested elements. The
// reserved attrs node becomes element attributes, the reserved value node
// becomes character data. Keys are emitted in sorted order so the output
// is deterministic.
func encodeXML(name string, value interface{}) []byte {
	var b strings.Builder
	b.WriteString(xml.Header)
	encodeXMLValue(&b, name, value, "")
	return []byte(b.String())
}

func encodeXMLValue(b *strings.Builder, name string, value interface{}, indent string) {
	switch v := value.(type) {
	case map[string]interface{}:
		encodeXMLMap(b, name, v, indent)
	case []interface{}:
		for _, elem := range v {
			encodeXMLValue(b, name, elem, indent)
		}
	default:
		b.WriteString(indent)
		b.WriteString("<" + elementName(name) + ">")
		xml.EscapeText(b, []byte(scalarString(v)))
		b.WriteString("</" + elementName(name) + ">\n")
	}
}

func encodeXMLMap(b *strings.Builder, name string, m map[string]interface{}, indent string) {
	b.WriteString(indent)
	b.WriteString("<" + elementName(name))

	if attrs, ok := m[meta.KeyAttrs].(map[string]interface{}); ok {
		for _, k := range sortedKeys(attrs) {
			b.WriteString(" " + elementName(k) + `="`)
			xml.EscapeText(b, []byte(scalarString(attrs[k])))
			b.WriteString(`"`)
		}
	}

	b.WriteString(">")

	if value, ok := m[meta.KeyValue]; ok {
		xml.EscapeText(b, []byte(scalarString(value)))
	}

	children := make(map[string]interface{})
	for k, v := range m {
		if k == meta.KeyAttrs || k == meta.KeyValue {
			continue
		}
		children[k] = v
	}

	if len(children) > 0 {
		b.WriteString("\n")
		for _, k := range sortedKeys(children) {
			encodeXMLValue(b, k, children[k], indent+"  ")
		}
		b.WriteString(indent)
	}

	b.WriteString("</" + elementName(name) + ">\n")
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scalarString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

var elementSanitizer = strings.NewReplacer(" ", "_", "<", "", ">", "", "&", "", "\"", "", "'", "")

func elementName(name string) string {
	return elementSanitizer.Replace(name)
}

func trimEmpty(m map[string]interface{}) map[string]interface{} {
	for k, v := range m {
		if s, ok := v.(string); ok && s == "" {
			delete(m, k)
		}
	}
	return m
}
