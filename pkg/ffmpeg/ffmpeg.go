// Package ffmpeg drives the external ffmpeg binary for audio
// post-processing of downloaded episodes.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const TranscodeTimeout = 10 * time.Minute

// Tags are embedded into the output file via ffmpeg metadata flags
type Tags struct {
	Title  string
	Album  string
	Artist string
	Date   string
}

// Options select the post-processing steps to apply
type Options struct {
	// Bitrate re-encodes the audio stream, e.g. "128k"; empty keeps the
	// source bitrate
	Bitrate string
	// Mono downmixes to a single channel
	Mono bool
	// EmbedTags writes episode tags into the file metadata
	EmbedTags bool
}

type FFmpeg struct {
	path string
	opts Options
}

// New locates the ffmpeg binary and verifies it runs.
func New(ctx context.Context, opts Options) (*FFmpeg, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, errors.Wrap(err, "ffmpeg binary not found")
	}

	log.Debugf("found ffmpeg binary at %q", path)

	output, err := exec.CommandContext(ctx, path, "-version").CombinedOutput()
	if err != nil {
		return nil, errors.Wrap(err, "could not run ffmpeg")
	}

	log.Debugf("using %s", firstLine(string(output)))

	return &FFmpeg{path: path, opts: opts}, nil
}

// Supports reports whether post-processing applies to the given file
// extension. Bitrate and channel options only operate on mp3 files.
func (f *FFmpeg) Supports(ext string) bool {
	return ext == "mp3"
}

// Transcode rewrites the file at path with the configured options. The
// output goes to a temporary path first and atomically replaces the
// original on success; on failure the temporary file is removed and the
// original is left untouched.
func (f *FFmpeg) Transcode(ctx context.Context, path string, tags Tags) error {
	ctx, cancel := context.WithTimeout(ctx, TranscodeTimeout)
	defer cancel()

	tmpPath := path + ".tmp.mp3"
	args := buildArgs(f.opts, tags, path, tmpPath)

	log.Debugf("running ffmpeg %s", strings.Join(args, " "))
	output, err := exec.CommandContext(ctx, f.path, args...).CombinedOutput()
	if err != nil {
		if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.WithError(removeErr).Errorf("could not remove temp file %q", tmpPath)
		}

		return errors.Wrapf(err, "ffmpeg failed: %s", string(output))
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, "failed to replace original file")
	}

	return nil
}

func buildArgs(opts Options, tags Tags, inputPath, outputPath string) []string {
	args := []string{"-y", "-i", inputPath}

	if opts.Bitrate != "" {
		args = append(args, "-b:a", opts.Bitrate)
	}

	if opts.Mono {
		args = append(args, "-ac", "1")
	}

	if opts.EmbedTags {
		if tags.Title != "" {
			args = append(args, "-metadata", fmt.Sprintf("title=%s", tags.Title))
		}
		if tags.Album != "" {
			args = append(args, "-metadata", fmt.Sprintf("album=%s", tags.Album))
		}
		if tags.Artist != "" {
			args = append(args, "-metadata", fmt.Sprintf("artist=%s", tags.Artist))
		}
		if tags.Date != "" {
			args = append(args, "-metadata", fmt.Sprintf("date=%s", tags.Date))
		}
	}

	args = append(args, outputPath)
	return args
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
