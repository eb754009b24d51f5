package model

import (
	"errors"
)

var (
	// ErrEmptyFeed means the feed document contains no entries at all
	ErrEmptyFeed = errors.New("feed contains no episodes")
	// ErrOffsetOutOfRange means the requested offset skips past every entry
	ErrOffsetOutOfRange = errors.New("offset is larger than the number of episodes")
	// ErrNothingMatched means entries exist but none passed the selection criteria
	ErrNothingMatched = errors.New("no episodes matched the selection criteria")
)
