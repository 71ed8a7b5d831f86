package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emojidb/internal/models"
)

const testRegistry = `# group: Smileys & Emotion
# subgroup: face-smiling
1F600                                                  ; fully-qualified     # 😀 E1.0 grinning face
1F603                                                  ; fully-qualified     # 😃 E0.6 grinning face with big mouth
`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"EMOJIDB_CONFIG", "EMOJIDB_OUTPUT", "EMOJIDB_REGISTRY_PATH", "EMOJIDB_LIMIT", "DATABASE_TYPE", "REDIS_ADDRESS", "LOG_FILE"} {
		t.Setenv(key, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "emojidb version 0.1.0 (build: dev)\n", out)
}

func TestParseCommand(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "emoji-test.txt")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0644))

	out, err := execute(t, "parse", "--registry-file", path, "--output", "-", "--limit", "1",
		"--log-file", filepath.Join(t.TempDir(), "emojidb.log"))
	require.NoError(t, err)

	var records []models.Record
	require.NoError(t, json.Unmarshal([]byte(out), &records), out)
	require.Len(t, records, 1)
	assert.Equal(t, "1f600", records[0].Code)
	assert.Equal(t, "grinning face", records[0].Title)
}

func TestParseCommandToFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	registryPath := filepath.Join(dir, "emoji-test.txt")
	require.NoError(t, os.WriteFile(registryPath, []byte(testRegistry), 0644))

	configPath := filepath.Join(dir, "emojidb.yaml")
	output := filepath.Join(dir, "base.json")
	require.NoError(t, os.WriteFile(configPath, []byte("registry_path: "+registryPath+"\noutput: "+output+"\n"), 0644))

	_, err := execute(t, "parse", "--config", configPath, "--log-file", filepath.Join(dir, "emojidb.log"))
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "[\n"))
	assert.True(t, strings.HasSuffix(string(data), "\n]"))
}

func TestInvalidConfiguration(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_TYPE", "mysql")

	_, err := execute(t, "run", "--output", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
