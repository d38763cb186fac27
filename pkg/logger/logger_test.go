package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liscraper/pkg/config"
)

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]string{
		"debug":    "debug",
		"info":     "info",
		"":         "info",
		"warn":     "warn",
		"warning":  "warn",
		"error":    "error",
		"disabled": "disabled",
	} {
		level, err := parseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, level.String(), input)
	}

	_, err := parseLevel("shout")
	assert.Error(t, err)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "nope"})
	assert.Error(t, err)
}

func TestFieldsAppearInOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.WithFields(map[string]interface{}{"profile": "someone"}).Info("session opened")
	l.InfoWithFields("scroll complete", map[string]interface{}{
		"scroll":    3,
		"new_posts": 2,
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "someone", first["profile"])
	assert.Equal(t, "session opened", first["message"])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, float64(3), second["scroll"])
	assert.Equal(t, float64(2), second["new_posts"])
}

func TestWithErrorAttachesError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf)

	l.WithError(assert.AnError).Error("scroll failed")

	assert.Contains(t, buf.String(), assert.AnError.Error())
}
