package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/page-builder/internal/config"
)

func TestObjectKey(t *testing.T) {
	a := ObjectKey(7, "audio", "Song.MP3")
	b := ObjectKey(7, "audio", "Song.MP3")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "7/audio/"))
	assert.True(t, strings.HasSuffix(a, ".mp3"))
}

func TestPublicBase(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com",
		publicBase(config.MediaConfig{PublicURL: "https://cdn.example.com/", Endpoint: "minio:9000", Bucket: "b"}))
	assert.Equal(t, "http://minio:9000/b",
		publicBase(config.MediaConfig{Endpoint: "minio:9000", Bucket: "b"}))
	assert.Equal(t, "https://minio:9000/b",
		publicBase(config.MediaConfig{Endpoint: "minio:9000", Bucket: "b", UseSSL: true}))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore("http://media/")
	url, err := s.Put(context.Background(), "1/image/x.png", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Equal(t, "http://media/1/image/x.png", url)

	body, ct, ok := s.Object("1/image/x.png")
	require.True(t, ok)
	assert.Equal(t, "png", string(body))
	assert.Equal(t, "image/png", ct)
}
