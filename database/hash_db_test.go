package database

import (
	"path/filepath"
	"testing"

	"repost-bot/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *HashDB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "dhash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewHashDB(db)
}

func TestInsertAndQueryImageHash(t *testing.T) {
	store := newTestDB(t)

	// High bit set to cover the int64 round trip through sqlite.
	hash := uint64(0xF00DFACECAFEBEEF)

	inserted, err := store.InsertImageHash(models.ImageHash{
		GuildID:   1,
		ChannelID: 2,
		MessageID: 3,
		Hash:      hash,
	})
	require.NoError(t, err)
	assert.NotZero(t, inserted.ID)

	images, err := store.ImagesByExactHash(1, 2, hash)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, hash, images[0].Hash)
	assert.Equal(t, int64(3), images[0].MessageID)

	images, err = store.ImagesByExactHash(1, 2, hash^1)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestInsertImageHashAttachmentIdempotent(t *testing.T) {
	store := newTestDB(t)

	img := models.ImageHash{GuildID: 1, ChannelID: 2, MessageID: 3, AttachmentID: 77, Hash: 0xABCD}

	first, err := store.InsertImageHash(img)
	require.NoError(t, err)

	second, err := store.InsertImageHash(img)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	images, err := store.ImagesByChannel(1, 2)
	require.NoError(t, err)
	assert.Len(t, images, 1)
}

func TestImagesByChannelIsolation(t *testing.T) {
	store := newTestDB(t)

	_, err := store.InsertImageHash(models.ImageHash{GuildID: 1, ChannelID: 2, MessageID: 3, Hash: 0xABCD})
	require.NoError(t, err)
	_, err = store.InsertImageHash(models.ImageHash{GuildID: 1, ChannelID: 9, MessageID: 4, Hash: 0xABCD})
	require.NoError(t, err)

	images, err := store.ImagesByChannel(1, 2)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, int64(3), images[0].MessageID)

	images, err = store.ImagesByExactHash(1, 9, 0xABCD)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, int64(4), images[0].MessageID)
}

func TestImagesByMessageAndDelete(t *testing.T) {
	store := newTestDB(t)

	for _, hash := range []uint64{0x1111, 0x2222} {
		_, err := store.InsertImageHash(models.ImageHash{GuildID: 1, ChannelID: 2, MessageID: 3, Hash: hash})
		require.NoError(t, err)
	}
	_, err := store.InsertImageHash(models.ImageHash{GuildID: 1, ChannelID: 2, MessageID: 4, Hash: 0x3333})
	require.NoError(t, err)

	images, err := store.ImagesByMessage(1, 3)
	require.NoError(t, err)
	assert.Len(t, images, 2)

	deleted, err := store.DeleteImagesByMessage(1, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	images, err = store.ImagesByChannel(1, 2)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, int64(4), images[0].MessageID)
}

func TestAddHashChannelIdempotent(t *testing.T) {
	store := newTestDB(t)

	first, created, err := store.AddHashChannel(1, 2, 5)
	require.NoError(t, err)
	assert.True(t, created)

	// A second registration returns the existing row unchanged.
	second, created, err := store.AddHashChannel(1, 2, 9)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.ReactionLimit)

	channels, err := store.HashChannels(1)
	require.NoError(t, err)
	assert.Len(t, channels, 1)
}

func TestSetReactionLimit(t *testing.T) {
	store := newTestDB(t)

	updated, err := store.SetReactionLimit(1, 2, 7)
	require.NoError(t, err)
	assert.False(t, updated)

	_, _, err = store.AddHashChannel(1, 2, 5)
	require.NoError(t, err)

	updated, err = store.SetReactionLimit(1, 2, 7)
	require.NoError(t, err)
	assert.True(t, updated)

	channel, err := store.HashChannel(1, 2)
	require.NoError(t, err)
	require.NotNil(t, channel)
	assert.Equal(t, 7, channel.ReactionLimit)
}

func TestRemoveHashChannel(t *testing.T) {
	store := newTestDB(t)

	removed, err := store.RemoveHashChannel(1, 2)
	require.NoError(t, err)
	assert.False(t, removed)

	_, _, err = store.AddHashChannel(1, 2, 5)
	require.NoError(t, err)

	removed, err = store.RemoveHashChannel(1, 2)
	require.NoError(t, err)
	assert.True(t, removed)

	channel, err := store.HashChannel(1, 2)
	require.NoError(t, err)
	assert.Nil(t, channel)
}

func TestConfigValues(t *testing.T) {
	store := newTestDB(t)

	_, ok, err := store.ConfigValue("allowed_urls")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SetConfigValue("allowed_urls", `^https://imgur\.com/`))
	value, ok, err := store.ConfigValue("allowed_urls")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `^https://imgur\.com/`, value)

	require.NoError(t, store.SetConfigValue("allowed_urls", `^https://example\.com/`))
	value, _, err = store.ConfigValue("allowed_urls")
	require.NoError(t, err)
	assert.Equal(t, `^https://example\.com/`, value)

	require.NoError(t, store.DeleteConfigValue("allowed_urls"))
	_, ok, err = store.ConfigValue("allowed_urls")
	require.NoError(t, err)
	assert.False(t, ok)
}
