// Package download contains the fetch-and-postprocess pipeline and the
// bounded-concurrency scheduler that drives it.
package download

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Minute

// Client downloads assets over HTTP to local files. Downloads go to a
// temporary ".part" path first and are renamed into place, so a crashed
// run never leaves a truncated file at the final path.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient builds an asset downloader. A positive rps throttles request
// starts to that many per second across all workers.
func NewClient(timeout time.Duration, rps float64) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		http: &http.Client{Timeout: timeout},
	}

	if rps > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	return client
}

// Download fetches url into path, creating parent directories as needed.
func (c *Client) Download(ctx context.Context, url, path string) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter interrupted")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "invalid download URL %q", url)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to download %q", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("download of %q returned status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %q", path)
	}

	partPath := path + ".part"

	written, err := c.copyFile(resp.Body, partPath)
	if err != nil {
		if removeErr := os.Remove(partPath); removeErr != nil {
			log.WithError(removeErr).Errorf("could not remove partial file %q", partPath)
		}
		return err
	}

	if err := os.Rename(partPath, path); err != nil {
		return errors.Wrap(err, "failed to move downloaded file into place")
	}

	log.Debugf("downloaded %d bytes to %q", written, path)
	return nil
}

func (c *Client) copyFile(source io.Reader, destinationPath string) (int64, error) {
	dest, err := os.Create(destinationPath)
	if err != nil {
		return 0, errors.Wrap(err, "failed to create destination file")
	}
	defer dest.Close()

	written, err := io.Copy(dest, source)
	if err != nil {
		return 0, errors.Wrap(err, "failed to copy data")
	}

	return written, nil
}
