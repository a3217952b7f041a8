package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZerologLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, DEBUG)

	l.Log(WARNING, "player timed out", KV{Key: "player_id", Value: int64(3)}, KV{Key: "address", Value: "127.0.0.1:9000"})

	var line map[string]interface{}
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "player timed out", line["message"])
	assert.EqualValues(t, 3, line["player_id"])
	assert.Equal(t, "127.0.0.1:9000", line["address"])
}

func TestZerologLoggerRespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, WARNING)

	l.Log(DEBUG, "should be filtered")
	assert.Empty(t, buf.String())

	l.Log(WARNING, "should appear")
	assert.NotEmpty(t, buf.String())
}

func TestWithAttachesPersistentFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(&buf, DEBUG)
	scoped := base.With(KV{Key: "player_id", Value: int64(7)})

	scoped.Log(INFO, "connected")

	var line map[string]interface{}
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.EqualValues(t, 7, line["player_id"])
}

func TestNopDiscardsSilently(t *testing.T) {
	var n Nop
	assert.NotPanics(t, func() { n.Log(EXCEPTION, "ignored") })
}
