package enrichers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emojidb/internal/models"
)

func baseRecord() models.Record {
	return models.NewRecord("Emoji & People", "Face Smiling", "1F600", "😀", "grinning face")
}

func TestApply(t *testing.T) {
	rec := baseRecord()
	out := Apply(rec, sampleData())

	assert.Equal(t, "Emoji & People", out.Category)
	assert.Equal(t, "Face Smiling", out.SubCategory)
	assert.Equal(t, "grinning face", out.Title)
	assert.Equal(t, "😀", out.Glyph)
	assert.Equal(t, "1f600", out.Code)
	assert.Equal(t, []string{"U+1F600"}, out.Codepoints)

	// appleName differs from currentCldrName, so it is appended
	assert.Equal(t, []string{"Happy Face", "Smiley Face", "Grinning Face"}, out.Aliases)

	assert.Equal(t, []string{":grinning_face:"}, out.Shortcodes[models.SourceCLDR])
	assert.Equal(t, []string{":grinning:"}, out.Shortcodes[models.SourceGitHub])
	assert.Equal(t, []string{":grinning:"}, out.Shortcodes[models.SourceSlack])
	assert.Equal(t, []string{}, out.Shortcodes[models.SourceDiscord])

	assert.Equal(t, models.Image{
		Brand:    "apple",
		Platform: []string{"iOS 17.4", "Apple"},
		Source:   "https://em-content.zobj.net/apple/grinning-face.png",
	}, out.Image)

	// The input record is untouched
	assert.Equal(t, baseRecord(), rec)
}

func TestApply_Idempotent(t *testing.T) {
	data := sampleData()
	once := Apply(baseRecord(), data)
	twice := Apply(once, data)

	assert.Equal(t, once, twice)

	a, err := json.Marshal(once)
	require.NoError(t, err)
	b, err := json.Marshal(twice)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestApply_Aliases(t *testing.T) {
	tests := []struct {
		name  string
		cldr  string
		apple string
		known []string
		want  []string
	}{
		{"same names", "grinning face", "grinning face", []string{"Happy"}, []string{"Happy"}},
		{"no apple name", "grinning face", "", []string{"Happy"}, []string{"Happy"}},
		{"no cldr name", "", "Grinning", nil, []string{}},
		{"nil aliases", "a", "b", nil, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := sampleData()
			data.CurrentCldrName = tt.cldr
			data.AppleName = tt.apple
			data.AlsoKnownAs = tt.known

			out := Apply(baseRecord(), data)
			assert.Equal(t, tt.want, out.Aliases)
		})
	}
}

func TestApply_AliasesDoNotAlias(t *testing.T) {
	data := sampleData()
	out := Apply(baseRecord(), data)
	out.Aliases[0] = "mutated"
	assert.Equal(t, "Happy Face", data.AlsoKnownAs[0])
}

func TestApply_UnknownShortcodeSource(t *testing.T) {
	data := sampleData()
	data.Shortcodes = append(data.Shortcodes, models.Shortcode{Code: ":grin:", Source: "teams"})

	out := Apply(baseRecord(), data)
	assert.Equal(t, []string{":grin:"}, out.Shortcodes["teams"])

	encoded, err := json.Marshal(out.Shortcodes)
	require.NoError(t, err)
	assert.Equal(t,
		`{"cldr":[":grinning_face:"],"github":[":grinning:"],"slack":[":grinning:"],"discord":[],"teams":[":grin:"]}`,
		string(encoded))
}

func TestApply_NoVendors(t *testing.T) {
	data := sampleData()
	data.Vendors = []Vendor{{Slug: "apple", Title: "Apple"}}

	out := Apply(baseRecord(), data)
	assert.True(t, out.Image.IsEmpty())
}

func TestApply_MultiCodepoint(t *testing.T) {
	data := sampleData()
	data.Glyph = "❤️"
	data.CodepointsHex = []string{"U+2764", "U+FE0F"}

	rec := models.NewRecord("Smileys & Emotion", "Heart", "2764", "❤", "red heart")
	out := Apply(rec, data)

	assert.Equal(t, "2764-fe0f", out.Code)
	assert.Equal(t, []string{"U+2764", "U+FE0F"}, out.Codepoints)
	assert.Equal(t, "❤️", out.Glyph)
}
