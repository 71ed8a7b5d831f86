package enrichers

import (
	"encoding/json"
	"strings"

	"emojidb/internal/common/errors"
	"emojidb/internal/models"
)

// detailQueryIndex is the position of the emoji detail query in the
// dehydrated react-query state of a detail page
const detailQueryIndex = 3

// EmojiData is the normalized detail document, independent of which upstream
// shape it was read from
type EmojiData struct {
	Title           string             `json:"title"`
	Glyph           string             `json:"code"`
	Slug            string             `json:"slug"`
	CurrentCldrName string             `json:"currentCldrName"`
	AppleName       string             `json:"appleName"`
	Description     string             `json:"description"`
	AlsoKnownAs     []string           `json:"alsoKnownAs"`
	CodepointsHex   []string           `json:"codepointsHex"`
	Shortcodes      []models.Shortcode `json:"shortcodes"`
	Vendors         []Vendor           `json:"vendorsAndPlatforms"`
}

// Vendor is a platform family rendering the emoji
type Vendor struct {
	Slug  string       `json:"slug"`
	Title string       `json:"title"`
	Items []VendorItem `json:"items"`
}

// VendorItem is one rendering of the emoji by a vendor
type VendorItem struct {
	Title       string `json:"title"`
	ImageSource string `json:"imageSource"`
}

// Validate checks that the data carries what Apply needs to rewrite a record
func (d EmojiData) Validate() error {
	if strings.TrimSpace(d.Glyph) == "" {
		return errors.ValidationError("emoji data has no glyph")
	}
	if len(d.CodepointsHex) == 0 {
		return errors.ValidationError("emoji data has no codepoints")
	}
	return nil
}

// upstreamEmoji mirrors the emoji object published by the site, both inside
// the dehydrated page state and in the query API response
type upstreamEmoji struct {
	Title               string             `json:"title"`
	Code                string             `json:"code"`
	Slug                string             `json:"slug"`
	CurrentCldrName     string             `json:"currentCldrName"`
	AppleName           string             `json:"appleName"`
	Description         string             `json:"description"`
	AlsoKnownAs         []string           `json:"alsoKnownAs"`
	CodepointsHex       []string           `json:"codepointsHex"`
	Shortcodes          []models.Shortcode `json:"shortcodes"`
	VendorsAndPlatforms []struct {
		Slug  string `json:"slug"`
		Title string `json:"title"`
		Items []struct {
			Title string `json:"title"`
			Image struct {
				Source string `json:"source"`
			} `json:"image"`
		} `json:"items"`
	} `json:"vendorsAndPlatforms"`
}

func (u upstreamEmoji) normalize() EmojiData {
	data := EmojiData{
		Title:           u.Title,
		Glyph:           u.Code,
		Slug:            u.Slug,
		CurrentCldrName: u.CurrentCldrName,
		AppleName:       u.AppleName,
		Description:     u.Description,
		AlsoKnownAs:     u.AlsoKnownAs,
		CodepointsHex:   u.CodepointsHex,
		Shortcodes:      u.Shortcodes,
	}
	for _, v := range u.VendorsAndPlatforms {
		vendor := Vendor{Slug: v.Slug, Title: v.Title}
		for _, item := range v.Items {
			vendor.Items = append(vendor.Items, VendorItem{
				Title:       item.Title,
				ImageSource: item.Image.Source,
			})
		}
		data.Vendors = append(data.Vendors, vendor)
	}
	return data
}

// decodeEmoji decodes a single upstream emoji object; null or absent input
// yields false
func decodeEmoji(raw json.RawMessage) (EmojiData, bool) {
	if isNull(raw) {
		return EmojiData{}, false
	}
	var u upstreamEmoji
	if err := json.Unmarshal(raw, &u); err != nil {
		return EmojiData{}, false
	}
	return u.normalize(), true
}

// fromDehydratedState reads the detail query result out of a pageProps object,
// as found at props.pageProps in __NEXT_DATA__ or at pageProps in the data
// route response
func fromDehydratedState(pageProps json.RawMessage) (EmojiData, bool) {
	if isNull(pageProps) {
		return EmojiData{}, false
	}

	var props struct {
		DehydratedState struct {
			Queries []struct {
				State struct {
					Data json.RawMessage `json:"data"`
				} `json:"state"`
			} `json:"queries"`
		} `json:"dehydratedState"`
	}
	if err := json.Unmarshal(pageProps, &props); err != nil {
		return EmojiData{}, false
	}

	queries := props.DehydratedState.Queries
	if len(queries) <= detailQueryIndex {
		return EmojiData{}, false
	}
	return decodeEmoji(queries[detailQueryIndex].State.Data)
}

// fromQueryResponse reads data.emoji_v1 out of a query API response
func fromQueryResponse(body json.RawMessage) (EmojiData, bool) {
	var resp struct {
		Data struct {
			Emoji json.RawMessage `json:"emoji_v1"`
		} `json:"data"`
	}
	if isNull(body) {
		return EmojiData{}, false
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return EmojiData{}, false
	}
	return decodeEmoji(resp.Data.Emoji)
}

// embeddedPageProps returns props.pageProps of a __NEXT_DATA__ payload
func embeddedPageProps(nextData json.RawMessage) json.RawMessage {
	var doc struct {
		Props struct {
			PageProps json.RawMessage `json:"pageProps"`
		} `json:"props"`
	}
	if isNull(nextData) {
		return nil
	}
	if err := json.Unmarshal(nextData, &doc); err != nil {
		return nil
	}
	return doc.Props.PageProps
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
