package enrichers

import (
	"emojidb/internal/models"
)

// Apply merges detail data into a record. Every field it touches is
// overwritten rather than appended to, so applying the same data twice gives
// the same record as applying it once. The input record is not modified.
func Apply(rec models.Record, data EmojiData) models.Record {
	out := rec.Clone()

	aliases := append([]string{}, data.AlsoKnownAs...)
	if data.CurrentCldrName != "" && data.AppleName != "" && data.CurrentCldrName != data.AppleName {
		aliases = append(aliases, data.AppleName)
	}
	out.Aliases = aliases

	out.Shortcodes = models.GroupShortcodes(data.Shortcodes)

	if len(data.Vendors) > 0 && len(data.Vendors[0].Items) > 0 {
		vendor := data.Vendors[0]
		item := vendor.Items[0]
		out.Image = models.Image{
			Brand:    vendor.Slug,
			Platform: []string{item.Title, vendor.Title},
			Source:   item.ImageSource,
		}
	}

	// code and codepoints are rewritten together from the same list
	if len(data.CodepointsHex) > 0 {
		out.Code = models.CodeFromCodepoints(data.CodepointsHex)
		out.Codepoints = models.CodepointsFromCode(out.Code)
	}

	if data.Glyph != "" {
		out.Glyph = data.Glyph
	}

	return out
}
