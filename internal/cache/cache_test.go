package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"chatsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "chatsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleMessages(base time.Time) []models.Message {
	content := "cached"
	return []models.Message{
		{
			ID: "m1", ChannelID: "c1", SenderID: "u1", Type: models.MessageTypeText,
			Content: &content, CreatedAt: base,
			Sender:    models.Sender{ID: "u1", DisplayName: "Alice"},
			Reactions: []models.ReactionAggregate{{ReactionType: "❤️", Count: 2}},
		},
		{
			ID: "m2", ChannelID: "c1", SenderID: "u2", Type: models.MessageTypeVoice,
			CreatedAt: base.Add(time.Second),
			Sender:    models.Sender{ID: "u2", DisplayName: "Bob"},
		},
	}
}

func TestSnapshotRoundtrip(t *testing.T) {
	c := newTestCache(t)
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, c.SaveSnapshot(context.Background(), "c1", sampleMessages(base)))

	loaded, err := c.LoadSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)

	assert.Equal(t, "m1", loaded[0].ID)
	assert.Equal(t, "m2", loaded[1].ID)
	assert.Equal(t, "Alice", loaded[0].Sender.DisplayName)
	require.Len(t, loaded[0].Reactions, 1)
	assert.Equal(t, 2, loaded[0].Reactions[0].Count)
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	c := newTestCache(t)
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, c.SaveSnapshot(context.Background(), "c1", sampleMessages(base)))
	require.NoError(t, c.SaveSnapshot(context.Background(), "c1", sampleMessages(base)[:1]))

	loaded, err := c.LoadSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "m1", loaded[0].ID)
}

func TestSnapshotsAreIsolatedPerChannel(t *testing.T) {
	c := newTestCache(t)
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, c.SaveSnapshot(context.Background(), "c1", sampleMessages(base)))

	loaded, err := c.LoadSnapshot(context.Background(), "c2")
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestCleanupKeepsFreshSnapshots(t *testing.T) {
	c := newTestCache(t)
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, c.SaveSnapshot(context.Background(), "c1", sampleMessages(base)))
	require.NoError(t, c.CleanupOldChannels(context.Background(), 7))

	loaded, err := c.LoadSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestCleanupRejectsInvalidRetention(t *testing.T) {
	c := newTestCache(t)
	assert.Error(t, c.CleanupOldChannels(context.Background(), 0))
	assert.Error(t, c.CleanupOldChannels(context.Background(), -1))
}

func TestNewRejectsInvalidPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestEncryptedSnapshotRoundtrip(t *testing.T) {
	t.Setenv(encryptionSecretEnv, "test-secret")

	c := newTestCache(t)
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, c.SaveSnapshot(context.Background(), "c1", sampleMessages(base)))

	loaded, err := c.LoadSnapshot(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "m1", loaded[0].ID)
}

func TestEncryptorPassthroughWhenDisabled(t *testing.T) {
	t.Setenv(encryptionSecretEnv, "")

	enc, err := newEncryptor()
	require.NoError(t, err)
	assert.False(t, enc.enabled())

	out, err := enc.EncryptIfEnabled("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", out)
}

func TestEncryptorRoundtripAndTamperDetection(t *testing.T) {
	t.Setenv(encryptionSecretEnv, "another-secret")

	enc, err := newEncryptor()
	require.NoError(t, err)
	require.True(t, enc.enabled())

	sealed, err := enc.EncryptIfEnabled(`{"id":"m1"}`)
	require.NoError(t, err)
	assert.NotEqual(t, `{"id":"m1"}`, sealed)

	plain, err := enc.DecryptIfEnabled(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"m1"}`, plain)

	_, err = enc.DecryptIfEnabled("bm90IHZhbGlk")
	assert.Error(t, err)
}
