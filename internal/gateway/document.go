package gateway

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"emojidb/internal/common/errors"
	"emojidb/internal/models"
)

// nextDataSelector locates the Next.js hydration payload
const nextDataSelector = "script#__NEXT_DATA__"

var shortcodePattern = regexp.MustCompile(`:[^:\s]+:`)

// NextData holds the top-level fields of a __NEXT_DATA__ payload that the
// pipeline reads directly. The full payload stays available as raw JSON.
type NextData struct {
	BuildID string                 `json:"buildId"`
	Page    string                 `json:"page"`
	Query   map[string]interface{} `json:"query"`
}

// QueryParam returns a route query value as a string, or "" if absent
func (n NextData) QueryParam(key string) string {
	v, ok := n.Query[key].(string)
	if !ok {
		return ""
	}
	return v
}

// ExtractNextData returns the JSON body of the #__NEXT_DATA__ script node
func ExtractNextData(html []byte) (json.RawMessage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, errors.MalformedError("failed to parse HTML document", err)
	}

	node := doc.Find(nextDataSelector).First()
	if node.Length() == 0 {
		return nil, errors.NotFoundError("__NEXT_DATA__ script")
	}

	text := strings.TrimSpace(node.Text())
	if text == "" {
		return nil, errors.NotFoundError("__NEXT_DATA__ content")
	}
	if !json.Valid([]byte(text)) {
		return nil, errors.MalformedError("__NEXT_DATA__ is not valid JSON", nil)
	}

	return json.RawMessage(text), nil
}

// ParseNextData decodes the fields of NextData from a raw payload
func ParseNextData(raw json.RawMessage) (NextData, error) {
	var data NextData
	if len(raw) == 0 {
		return data, errors.NotFoundError("__NEXT_DATA__ payload")
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, errors.MalformedError("failed to decode __NEXT_DATA__", err)
	}
	return data, nil
}

// ScrapeShortcodes reads shortcodes from the rendered shortcode list of a
// detail page. Each innermost div whose text holds a :code: token contributes
// that token once per linked platform. Codes are deduplicated per source.
func ScrapeShortcodes(html []byte) []models.Shortcode {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}

	var out []models.Shortcode
	seen := make(map[models.Shortcode]bool)

	doc.Find("div").Each(func(_ int, div *goquery.Selection) {
		// Outer containers repeat their children's text and links
		if div.Find("div").Length() > 0 {
			return
		}
		code := shortcodePattern.FindString(strings.TrimSpace(div.Text()))
		if code == "" {
			return
		}

		div.Find("a").Each(func(_ int, link *goquery.Selection) {
			href, _ := link.Attr("href")
			source := linkSource(href, strings.ToLower(strings.TrimSpace(link.Text())))
			if source == "" {
				return
			}
			sc := models.Shortcode{Code: code, Source: source}
			if seen[sc] {
				return
			}
			seen[sc] = true
			out = append(out, sc)
		})
	})

	return out
}

func linkSource(href, text string) string {
	switch {
	case href == "/shortcodes" || text == "emojipedia":
		return models.SourceCLDR
	case href == "/github" || text == "github":
		return models.SourceGitHub
	case href == "/slack" || text == "slack":
		return models.SourceSlack
	case href == "/discord" || text == "discord":
		return models.SourceDiscord
	default:
		return ""
	}
}
