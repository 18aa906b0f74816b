package log_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madlib/archived-madlib-sub001/pkg/log"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var records []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		records = append(records, rec)
	}
	return records
}

func TestProviderWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	provider := log.NewZerologProviderWithWriter(&buf, log.DebugLevel)

	logger := provider.GetLoggerWithName("trainer").With(log.ModelNameKey, "DecisionTreeClassifier")
	logger.Info("Round completed", log.RoundKey, 3, log.LeavesKey, 8)

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, "trainer", rec[log.ComponentKey])
	assert.Equal(t, "DecisionTreeClassifier", rec[log.ModelNameKey])
	assert.Equal(t, "Round completed", rec["message"])
	assert.EqualValues(t, 3, rec[log.RoundKey])
	assert.EqualValues(t, 8, rec[log.LeavesKey])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	provider := log.NewZerologProviderWithWriter(&buf, log.WarnLevel)
	logger := provider.GetLogger()

	logger.Debug("hidden")
	logger.Info("hidden")
	logger.Warn("shown")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "shown", records[0]["message"])

	provider.SetLevel(log.DebugLevel)
	provider.GetLogger().Debug("now shown")
	assert.Len(t, decodeLines(t, &buf), 2)
}

func TestOddFieldsArePadded(t *testing.T) {
	var buf bytes.Buffer
	log.NewZerologProviderWithWriter(&buf, log.InfoLevel).GetLogger().Info("odd", "dangling")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "(missing)", records[0]["dangling"])
}

func TestLogErrorUsesGlobalProvider(t *testing.T) {
	previous := log.GetProvider()
	defer log.SetProvider(previous)

	var buf bytes.Buffer
	log.SetOutput(&buf, log.InfoLevel)
	log.LogError(errors.New("boom"), "Training failed", log.RoundKey, 1)
	log.LogError(nil, "ignored")

	records := decodeLines(t, &buf)
	require.Len(t, records, 1)
	assert.Equal(t, "boom", records[0][log.ErrorKey])
	assert.Equal(t, "error", records[0]["level"])
}

func TestToLogLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, log.ToLogLevel("DEBUG"))
	assert.Equal(t, log.WarnLevel, log.ToLogLevel("warning"))
	assert.Equal(t, log.ErrorLevel, log.ToLogLevel("error"))
	assert.Equal(t, log.Disabled, log.ToLogLevel("off"))
	assert.Equal(t, log.InfoLevel, log.ToLogLevel("verbose"))
}
