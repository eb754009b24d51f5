package media

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// probeTimeout bounds each existence check; probe failures are
	// non-fatal
	probeTimeout = 5 * time.Second

	// maxCandidates caps how many embedded URLs are derived from the
	// tracking URL's path
	maxCandidates = 5
)

// Prober attempts to unwrap tracking-redirect URLs by probing URLs
// embedded in the path. Opt-in, since it performs network calls during
// selection.
type Prober struct {
	client *http.Client
}

func NewProber() *Prober {
	return &Prober{
		client: &http.Client{Timeout: probeTimeout},
	}
}

// Resolve returns the first embedded candidate URL that responds to a
// lightweight existence check, or rawURL unchanged when none does. Any
// probe failure is swallowed and the next candidate is tried.
func (p *Prober) Resolve(ctx context.Context, rawURL string) string {
	for _, candidate := range candidates(rawURL) {
		if p.probe(ctx, candidate) {
			log.WithFields(log.Fields{
				"original": rawURL,
				"resolved": candidate,
			}).Debug("resolved tracking redirect")
			return candidate
		}
	}

	return rawURL
}

func (p *Prober) probe(ctx context.Context, rawURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode < http.StatusBadRequest
}

// candidates generates up to maxCandidates URLs embedded in the path of a
// tracking URL, by taking successive suffixes of the slash separated
// segments. Each suffix is percent decoded and prefixed with a scheme if
// it lacks one. Most specific candidates come first.
func candidates(rawURL string) []string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	scheme := parsed.Scheme
	if scheme == "" {
		scheme = "https"
	}

	segments := strings.Split(strings.TrimPrefix(parsed.EscapedPath(), "/"), "/")

	var out []string
	for i := 1; i < len(segments) && len(out) < maxCandidates; i++ {
		suffix := strings.Join(segments[i:], "/")
		if suffix == "" {
			continue
		}

		decoded, err := url.PathUnescape(suffix)
		if err != nil {
			decoded = suffix
		}

		if !strings.HasPrefix(decoded, "http://") && !strings.HasPrefix(decoded, "https://") {
			decoded = scheme + "://" + decoded
		}

		out = append(out, decoded)
	}

	return out
}
