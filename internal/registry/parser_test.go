package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emojidb/internal/models"
)

const sampleRegistry = `# emoji-test.txt
# Date: 2023-06-05
# Version: 15.1

# group: Smileys & Emotion

# subgroup: face-smiling
1F600                                                  ; fully-qualified     # 😀 E1.0 grinning face
1F603                                                  ; fully-qualified     # 😃 E0.6 grinning face with big eyes

# subgroup: face-affection
263A FE0F                                              ; fully-qualified     # ☺️ E0.6 smiling face
263A                                                   ; unqualified         # ☺ E0.6 smiling face

# group: Symbols

# subgroup: keycap
0023 FE0F 20E3                                         ; fully-qualified     # #️⃣ E0.6 keycap: #
0023 20E3                                              ; unqualified         # #⃣ E0.6 keycap: #

# subgroup: other-symbol
1F441 FE0F 200D 1F5E8 FE0F                             ; fully-qualified     # 👁️‍🗨️ E2.0 eye in speech bubble
1F441 200D 1F5E8 FE0F                                  ; minimally-qualified # 👁‍🗨️ E2.0 eye in speech bubble
1F9D1 1F3FB                                            ; component           # 🧑🏻 E5.0 person: light skin tone
this line has no separator

#EOF
`

func TestParse(t *testing.T) {
	records := Parse(sampleRegistry)
	require.Len(t, records, 5)

	first := records[0]
	assert.Equal(t, "Emoji & People", first.Category)
	assert.Equal(t, "Face Smiling", first.SubCategory)
	assert.Equal(t, "1f600", first.Code)
	assert.Equal(t, "😀", first.Glyph)
	assert.Equal(t, "grinning face", first.Title)
	assert.Equal(t, []string{"U+1F600"}, first.Codepoints)
	assert.Empty(t, first.Aliases)
	assert.True(t, first.Image.IsEmpty())
	assert.True(t, first.Shortcodes.IsEmpty())

	smiling := records[2]
	assert.Equal(t, "Face Affection", smiling.SubCategory)
	assert.Equal(t, "263a-fe0f", smiling.Code)
	assert.Equal(t, []string{"U+263A", "U+FE0F"}, smiling.Codepoints)
	assert.Equal(t, "smiling face", smiling.Title)

	keycap := records[3]
	assert.Equal(t, "Symbols", keycap.Category)
	assert.Equal(t, "Keycap", keycap.SubCategory)
	assert.Equal(t, "#️⃣", keycap.Glyph)
	assert.Equal(t, "keycap: #", keycap.Title)

	eye := records[4]
	assert.Equal(t, "Other Symbol", eye.SubCategory)
	assert.Equal(t, "1f441-fe0f-200d-1f5e8-fe0f", eye.Code)
	assert.Len(t, eye.Codepoints, 5)
}

func TestParse_OnlyFullyQualified(t *testing.T) {
	statuses := []string{"fully-qualified", "minimally-qualified", "unqualified", "component", "something-new", "Fully-Qualified"}

	var b strings.Builder
	b.WriteString("# group: Test\n# subgroup: test-sub\n")
	for _, s := range statuses {
		b.WriteString("1F600 ; " + s + " # 😀 E1.0 grinning face\n")
	}

	records, stats := ParseWithStats(b.String())
	assert.Len(t, records, 1)
	assert.Equal(t, 1, stats.Records)
	assert.Equal(t, len(statuses)-1, stats.Dropped)
}

func TestParse_GroupAttributionCarriesForward(t *testing.T) {
	text := strings.Join([]string{
		"# group: Animals & Nature",
		"# subgroup: animal-mammal",
		"1F436 ; fully-qualified # 🐶 E0.6 dog face",
		"# some unrelated comment",
		"",
		"1F431 ; fully-qualified # 🐱 E0.6 cat face",
		"# subgroup: animal-bird",
		"1F426 ; fully-qualified # 🐦 E0.6 bird",
	}, "\n")

	records := Parse(text)
	require.Len(t, records, 3)
	assert.Equal(t, "Animal Mammal", records[1].SubCategory)
	assert.Equal(t, "Animals & Nature", records[2].Category)
	assert.Equal(t, "Animal Bird", records[2].SubCategory)
}

func TestParse_EdgeCases(t *testing.T) {
	t.Run("line without separator is skipped", func(t *testing.T) {
		records, stats := ParseWithStats("1F600 fully-qualified # 😀 grinning face")
		assert.Empty(t, records)
		assert.Equal(t, 1, stats.Malformed)
	})

	t.Run("missing comment keeps the record", func(t *testing.T) {
		for _, line := range []string{"1F600 ; fully-qualified", "1F600 ; fully-qualified #", "1F600 ; fully-qualified #   "} {
			records, stats := ParseWithStats(line)
			require.Len(t, records, 1, line)
			assert.Equal(t, "1f600", records[0].Code)
			assert.Equal(t, []string{"U+1F600"}, records[0].Codepoints)
			assert.Equal(t, "", records[0].Glyph)
			assert.Equal(t, "", records[0].Title)
			assert.Equal(t, 0, stats.Dropped)
		}
	})

	t.Run("comment without space has empty title", func(t *testing.T) {
		records := Parse("1F600 ; fully-qualified # 😀")
		require.Len(t, records, 1)
		assert.Equal(t, "😀", records[0].Glyph)
		assert.Equal(t, "", records[0].Title)
	})

	t.Run("CRLF line endings", func(t *testing.T) {
		records := Parse("# group: Flags\r\n# subgroup: flag\r\n1F3C1 ; fully-qualified # 🏁 E0.6 chequered flag\r\n")
		require.Len(t, records, 1)
		assert.Equal(t, "Flags", records[0].Category)
		assert.Equal(t, "Flag", records[0].SubCategory)
		assert.Equal(t, "chequered flag", records[0].Title)
	})

	t.Run("empty input", func(t *testing.T) {
		records := Parse("")
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})
}

func TestParseReader_MatchesParse(t *testing.T) {
	fromString := Parse(sampleRegistry)

	fromReader, stats, err := ParseReader(strings.NewReader(sampleRegistry))
	require.NoError(t, err)
	assert.Equal(t, fromString, fromReader)
	assert.Equal(t, 2, stats.Groups)
	assert.Equal(t, 4, stats.Subgroups)
	assert.Equal(t, 5, stats.Records)
	assert.Equal(t, 4, stats.Dropped)
	assert.Equal(t, 1, stats.Malformed)
}

func TestParse_CodeAndCodepointsAgree(t *testing.T) {
	for _, rec := range Parse(sampleRegistry) {
		assert.Equal(t, rec.Code, models.CodeFromCodepoints(rec.Codepoints), rec.Title)
	}
}
