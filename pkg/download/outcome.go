package download

import (
	"github.com/poddl/poddl/pkg/model"
)

// Status classifies what happened to a single episode.
type Status int

const (
	// StatusDownloaded means the media file was fetched during this run
	StatusDownloaded Status = iota
	// StatusArchived means the archive already recorded the episode
	StatusArchived
	// StatusExists means the file was already on disk and override is off
	StatusExists
	// StatusFailed means a required pipeline step failed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusArchived:
		return "archived"
	case StatusExists:
		return "exists"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-episode pipeline result.
type Outcome struct {
	Episode *model.Episode
	Status  Status
	// Err is set only when Status is StatusFailed
	Err error
	// SoftErrors marks non-fatal step failures (e.g. a secondary image
	// download), which don't fail the episode but taint the run summary
	SoftErrors bool
}

// Summary aggregates outcomes across the whole run.
type Summary struct {
	// Selected is the number of episodes handed to the scheduler
	Selected int
	// Downloaded counts episodes whose media was fetched this run
	Downloaded int
	// Skipped counts archive and exists-on-disk skips
	Skipped int
	// Failed counts episodes with a failed required step
	Failed int
	// HadErrors is sticky: set by any failure, including soft ones
	HadErrors bool
}
