package feed

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// DiscoverImage scans the HTML page at pageURL for a usable cover image.
// Checked in order: schema.org itemprop image markers, the og:image meta
// property, then an apple-touch-icon link. Used as a fallback when the
// feed document declares no image of its own.
func DiscoverImage(pageURL string) (string, error) {
	resp, err := http.Get(pageURL)
	if err != nil {
		return "", errors.Wrapf(err, "failed to fetch page %q", pageURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("page %q returned status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to parse page")
	}

	image := imageFromMeta(doc)
	if image == "" {
		image = imageFromIconLink(doc, pageURL)
	}

	if image == "" {
		return "", errors.New("no image found")
	}

	return image, nil
}

func imageFromMeta(doc *goquery.Document) string {
	var (
		itemProps  = []string{"image", "thumbnailUrl"}
		properties = []string{"og:image"}
		image      string
	)

	doc.Find("head meta").EachWithBreak(func(i int, s *goquery.Selection) bool {
		content, ok := s.Attr("content")
		if !ok || !strings.HasPrefix(content, "http") {
			return true
		}

		if prop, ok := s.Attr("itemprop"); ok && contains(itemProps, prop) {
			image = content
			return false
		}
		if prop, ok := s.Attr("property"); ok && contains(properties, prop) {
			image = content
			return false
		}

		return true
	})

	return image
}

func imageFromIconLink(doc *goquery.Document, pageURL string) string {
	var image string

	doc.Find("head link").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if rel, ok := s.Attr("rel"); ok && rel == "apple-touch-icon" {
			if href, ok := s.Attr("href"); ok {
				image = href
				return false
			}
		}
		return true
	})

	// Protocol relative icon links inherit the page's scheme
	if strings.HasPrefix(image, "//") {
		if parsed, err := url.Parse(pageURL); err == nil {
			image = parsed.Scheme + ":" + image
		}
	}

	return image
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
