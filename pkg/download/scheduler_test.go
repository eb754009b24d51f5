package download

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/poddl/poddl/pkg/archive"
	"github.com/poddl/poddl/pkg/model"
)

func TestClampConcurrency(t *testing.T) {
	assert.Equal(t, 1, ClampConcurrency(0))
	assert.Equal(t, 1, ClampConcurrency(-5))
	assert.Equal(t, 1, ClampConcurrency(1))
	assert.Equal(t, 8, ClampConcurrency(8))
	assert.Equal(t, 32, ClampConcurrency(32))
	assert.Equal(t, 32, ClampConcurrency(100))
}

func schedulerEpisodes(srvURL string, count int) []*model.Episode {
	var episodes []*model.Episode
	for i := 0; i < count; i++ {
		episodes = append(episodes, &model.Episode{
			GUID:          fmt.Sprintf("ep-%d", i),
			Title:         fmt.Sprintf("Episode %d", i),
			PubDate:       time.Date(2020, 1, 1+i, 0, 0, 0, 0, time.UTC),
			OriginalIndex: i,
			Enclosure: &model.Enclosure{
				URL:  fmt.Sprintf("%s/ep-%d.mp3", srvURL, i),
				Type: "audio/mpeg",
			},
		})
	}
	return episodes
}

func TestRunAllCountsOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// ep-3 always fails
		if r.URL.Path == "/ep-3.mp3" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	ledger := archive.New(filepath.Join(dir, "archive.json"))

	p := NewPipeline(
		&model.Feed{Title: "Test Cast"},
		NewClient(time.Minute, 0),
		ledger, nil, nil, nil,
		Options{OutputDir: dir, Identity: "feed"},
	)

	summary := p.RunAll(context.Background(), schedulerEpisodes(srv.URL, 6), 3)

	assert.Equal(t, 6, summary.Selected)
	assert.Equal(t, 5, summary.Downloaded)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Skipped)
	assert.True(t, summary.HadErrors)
}

func TestRunAllBoundsConcurrency(t *testing.T) {
	var (
		inFlight int32
		peak     int32
		mu       sync.Mutex
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)

		mu.Lock()
		if current > peak {
			peak = current
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	p := NewPipeline(
		&model.Feed{},
		NewClient(time.Minute, 0),
		archive.New(filepath.Join(dir, "archive.json")),
		nil, nil, nil,
		Options{OutputDir: dir, Identity: "feed"},
	)

	summary := p.RunAll(context.Background(), schedulerEpisodes(srv.URL, 8), 2)

	assert.Equal(t, 8, summary.Downloaded)
	assert.LessOrEqual(t, peak, int32(2))
}

func TestRunAllSecondRunIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	ledger := archive.New(filepath.Join(dir, "archive.json"))

	newRun := func() *Pipeline {
		return NewPipeline(
			&model.Feed{},
			NewClient(time.Minute, 0),
			ledger, nil, nil, nil,
			Options{OutputDir: dir, Identity: "feed"},
		)
	}

	first := newRun().RunAll(context.Background(), schedulerEpisodes(srv.URL, 4), 2)
	assert.Equal(t, 4, first.Downloaded)
	assert.False(t, first.HadErrors)

	second := newRun().RunAll(context.Background(), schedulerEpisodes(srv.URL, 4), 2)
	assert.Equal(t, 0, second.Downloaded)
	assert.Equal(t, 4, second.Skipped)
	assert.False(t, second.HadErrors)
}
