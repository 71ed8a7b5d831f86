package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emojidb/internal/models"
)

func sampleRecords(n int) []models.Record {
	codes := []string{"1F600", "1F603", "1F604", "1F601"}
	titles := []string{"grinning face", "grinning face with big eyes", "grinning face with smiling eyes", "beaming face with smiling eyes"}
	glyphs := []string{"😀", "😃", "😄", "😁"}

	records := make([]models.Record, 0, n)
	for i := 0; i < n; i++ {
		j := i % len(codes)
		records = append(records, models.NewRecord("Smileys & Emotion", "Face Smiling", codes[j], glyphs[j], titles[j]))
	}
	return records
}

func writeAll(t *testing.T, records []models.Record) string {
	t.Helper()
	var buf strings.Builder
	sink, err := NewJSONArraySink(&buf)
	require.NoError(t, err)
	for _, rec := range records {
		require.NoError(t, sink.Write(context.Background(), rec))
	}
	require.NoError(t, sink.Close())
	return buf.String()
}

func TestJSONArraySink_Framing(t *testing.T) {
	t.Run("empty run", func(t *testing.T) {
		out := writeAll(t, nil)
		assert.Equal(t, "[\n\n]", out)

		var decoded []models.Record
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Empty(t, decoded)
	})

	t.Run("one record", func(t *testing.T) {
		out := writeAll(t, sampleRecords(1))
		assert.True(t, strings.HasPrefix(out, "[\n{\n  \"category\": \"Smileys & Emotion\","), out)
		assert.True(t, strings.HasSuffix(out, "}\n]"), out)
		assert.NotContains(t, out, "},\n{")

		var decoded []models.Record
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, sampleRecords(1), decoded)
	})

	t.Run("many records", func(t *testing.T) {
		records := sampleRecords(4)
		out := writeAll(t, records)
		assert.Equal(t, 3, strings.Count(out, "},\n{"))

		var decoded []models.Record
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, records, decoded)
	})
}

func TestJSONArraySink_LiteralGlyphs(t *testing.T) {
	out := writeAll(t, sampleRecords(1))
	assert.Contains(t, out, `"emoji": "😀"`)
	assert.Contains(t, out, "Smileys & Emotion")
	assert.NotContains(t, out, `\u0026`)
}

func TestJSONArraySink_Close(t *testing.T) {
	var buf strings.Builder
	sink, err := NewJSONArraySink(&buf)
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
	assert.Equal(t, "[\n\n]", buf.String())

	err = sink.Write(context.Background(), sampleRecords(1)[0])
	assert.Error(t, err)
	assert.Equal(t, 0, sink.Count())
}

func TestCreateJSONFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	sink, err := CreateJSONFileSink(path)
	require.NoError(t, err)

	// The header is on disk before any record arrives
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n", string(data))

	require.NoError(t, sink.Write(context.Background(), sampleRecords(1)[0]))
	require.NoError(t, sink.Close())

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	var decoded []models.Record
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 1)

	_, err = CreateJSONFileSink(filepath.Join(t.TempDir(), "missing", "out.json"))
	assert.Error(t, err)
}

// recordingSink remembers what it was given
type recordingSink struct {
	name     string
	log      *[]string
	failOn   string
	closeErr error
}

func (s *recordingSink) Write(_ context.Context, rec models.Record) error {
	if rec.Code == s.failOn {
		return errors.New(s.name + " failed")
	}
	*s.log = append(*s.log, s.name+":"+rec.Code)
	return nil
}

func (s *recordingSink) Close() error {
	*s.log = append(*s.log, s.name+":close")
	return s.closeErr
}

func TestMultiSink(t *testing.T) {
	var log []string
	first := &recordingSink{name: "a", log: &log}
	second := &recordingSink{name: "b", log: &log, failOn: "1f603", closeErr: errors.New("b close")}
	multi := MultiSink{first, second}

	records := sampleRecords(2)
	require.NoError(t, multi.Write(context.Background(), records[0]))

	err := multi.Write(context.Background(), records[1])
	require.Error(t, err)
	assert.Equal(t, "b failed", err.Error())

	err = multi.Close()
	require.Error(t, err)
	assert.Equal(t, "b close", err.Error())

	assert.Equal(t, []string{"a:1f600", "b:1f600", "a:1f603", "a:close", "b:close"}, log)
}
