package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidates(t *testing.T) {
	list := candidates("https://chtbl.example.com/track/ABC123/cdn.example.com/audio/episode.mp3")
	assert.Equal(t, []string{
		"https://ABC123/cdn.example.com/audio/episode.mp3",
		"https://cdn.example.com/audio/episode.mp3",
		"https://audio/episode.mp3",
		"https://episode.mp3",
	}, list)
}

func TestCandidatesDecodesEmbeddedURL(t *testing.T) {
	list := candidates("https://t.example.com/r/https%3A%2F%2Fcdn.example.com%2Fep.mp3")
	require.Len(t, list, 1)
	assert.Equal(t, "https://cdn.example.com/ep.mp3", list[0])
}

func TestCandidatesCapped(t *testing.T) {
	list := candidates("https://t.example.com/a/b/c/d/e/f/g/h.mp3")
	assert.Len(t, list, maxCandidates)
}

func TestCandidatesBadURL(t *testing.T) {
	assert.Empty(t, candidates("://not a url"))
}

func TestProberResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/audio/episode.mp3" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	// srv.URL is "http://127.0.0.1:port"; wrap it in a tracking style URL
	hostAndPath := srv.URL[len("http://"):] + "/audio/episode.mp3"
	tracking := "http://t.example.invalid/track/" + hostAndPath

	p := NewProber()

	// The tracking host itself is unreachable, the embedded candidate
	// resolves.
	resolved := p.Resolve(context.Background(), tracking)
	assert.Equal(t, "http://"+hostAndPath, resolved)
}

func TestProberKeepsOriginalWhenNothingResponds(t *testing.T) {
	p := NewProber()

	original := "https://t.example.invalid/track/host.invalid/e.mp3"
	assert.Equal(t, original, p.Resolve(context.Background(), original))
}
