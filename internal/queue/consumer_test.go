package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleMessageAppendsLines(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	ev := NewEvent(BlockCreated, 42)
	ev.PageID = "p1"
	ev.BlockType = "heading"
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	require.NoError(t, handleMessage(dir, body))
	require.NoError(t, handleMessage(dir, body))

	raw, err := os.ReadFile(filepath.Join(dir, ActivityLogFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "block.created")
	assert.Contains(t, lines[0], "user_id=42")
	assert.Contains(t, lines[0], "page_id=p1")
	assert.Contains(t, lines[0], "block_type=heading")
	assert.NotContains(t, lines[0], "block_id=")
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, handleMessage(dir, []byte("{not json")))
	assert.Error(t, handleMessage(dir, []byte(`{"user_id":1}`)))

	_, err := os.Stat(filepath.Join(dir, ActivityLogFile))
	assert.True(t, os.IsNotExist(err))
}

func TestNewEventStampsIDAndTime(t *testing.T) {
	a := NewEvent(PageCreated, 1)
	b := NewEvent(PageCreated, 1)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEmpty(t, a.OccurredAt)
}
