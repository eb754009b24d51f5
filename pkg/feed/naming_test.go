package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/poddl/poddl/pkg/model"
)

func TestIdentity(t *testing.T) {
	tests := []struct {
		url    string
		expect string
	}{
		{"https://example.com/feeds/show.xml", "example.com-feeds-show.xml"},
		{"http://example.com/feeds/show.xml", "example.com-feeds-show.xml"},
		{"example.com/feeds/show.xml", "example.com-feeds-show.xml"},
		{"https://example.com/feed?format=rss", "example.com-feed"},
		{"https://example.com/", "example.com"},
	}

	for _, tst := range tests {
		assert.Equal(t, tst.expect, Identity(tst.url), tst.url)
	}
}

func TestIdentityDeterministic(t *testing.T) {
	a := Identity("https://example.com/feeds/show.xml")
	b := Identity("https://example.com/feeds/show.xml")
	assert.Equal(t, a, b)
}

func TestArchiveKey(t *testing.T) {
	key := ArchiveKey("example.com-feed", "20200110-Episode One.mp3")
	assert.Equal(t, "example.com-feed-20200110-Episode One.mp3", key)
}

func TestEpisodeName(t *testing.T) {
	episode := &model.Episode{
		GUID:    "ep-1",
		Title:   "Episode: One?",
		PubDate: time.Date(2020, 1, 10, 23, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name     string
		template string
		ext      string
		expect   string
	}{
		{
			name:   "default template",
			ext:    "mp3",
			expect: "20200110-Episode_ One_.mp3",
		},
		{
			name:     "guid template",
			template: "{{guid}}.{{ext}}",
			ext:      "mp3",
			expect:   "ep-1.mp3",
		},
		{
			name:   "missing extension degenerates cleanly",
			expect: "20200110-Episode_ One_",
		},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			assert.Equal(t, tst.expect, EpisodeName(tst.template, episode, tst.ext))
		})
	}
}

func TestEpisodeNameDeterministic(t *testing.T) {
	episode := &model.Episode{Title: "Same", PubDate: time.Date(2020, 1, 10, 1, 0, 0, 0, time.UTC)}

	a := EpisodeName("", episode, "mp3")
	b := EpisodeName("", episode, "mp3")
	assert.Equal(t, a, b)
}

func TestExtraName(t *testing.T) {
	assert.Equal(t, "20200110-ep.jpg", ExtraName("20200110-ep.mp3", "mp3", "jpg"))
	assert.Equal(t, "no-media-ext.jpg", ExtraName("no-media-ext", "", "jpg"))
}
