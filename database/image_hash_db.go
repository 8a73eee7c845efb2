package database

import (
	"database/sql"
	"fmt"

	"repost-bot/models"
)

// HashDB wraps the hash store's database handle.
type HashDB struct {
	db *sql.DB
}

// NewHashDB creates a hash store on top of an initialized database.
func NewHashDB(db *sql.DB) *HashDB {
	return &HashDB{db: db}
}

// Close closes the underlying database connection.
func (h *HashDB) Close() error {
	return h.db.Close()
}

// InsertImageHash stores a computed image hash. Inserting the same attachment
// twice returns the existing row instead of creating a second one.
func (h *HashDB) InsertImageHash(img models.ImageHash) (models.ImageHash, error) {
	if img.AttachmentID != 0 {
		existing, err := h.imageByAttachment(img.GuildID, img.AttachmentID)
		if err != nil {
			return models.ImageHash{}, err
		}
		if existing != nil {
			return *existing, nil
		}
	}

	query := `INSERT INTO image_hashes (guild_id, channel_id, message_id, attachment_id, hash)
              VALUES (?, ?, ?, ?, ?)`

	res, err := h.db.Exec(query, img.GuildID, img.ChannelID, img.MessageID, img.AttachmentID, int64(img.Hash))
	if err != nil {
		return models.ImageHash{}, fmt.Errorf("failed to insert image hash for message %d: %w", img.MessageID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.ImageHash{}, fmt.Errorf("failed to read inserted image hash id: %w", err)
	}
	img.ID = id

	return img, nil
}

// ImagesByExactHash returns all rows in the channel with exactly this hash,
// oldest first.
func (h *HashDB) ImagesByExactHash(guildID, channelID int64, hash uint64) ([]models.ImageHash, error) {
	query := `SELECT id, guild_id, channel_id, message_id, attachment_id, hash
              FROM image_hashes
              WHERE guild_id = ? AND channel_id = ? AND hash = ?
              ORDER BY id`

	return h.queryImages(query, guildID, channelID, int64(hash))
}

// ImagesByChannel returns the channel's full hash history, oldest first.
func (h *HashDB) ImagesByChannel(guildID, channelID int64) ([]models.ImageHash, error) {
	query := `SELECT id, guild_id, channel_id, message_id, attachment_id, hash
              FROM image_hashes
              WHERE guild_id = ? AND channel_id = ?
              ORDER BY id`

	return h.queryImages(query, guildID, channelID)
}

// ImagesByMessage returns all hashes stored for one message.
func (h *HashDB) ImagesByMessage(guildID, messageID int64) ([]models.ImageHash, error) {
	query := `SELECT id, guild_id, channel_id, message_id, attachment_id, hash
              FROM image_hashes
              WHERE guild_id = ? AND message_id = ?
              ORDER BY id`

	return h.queryImages(query, guildID, messageID)
}

// DeleteImagesByMessage removes all hashes belonging to a deleted message and
// returns how many rows were removed.
func (h *HashDB) DeleteImagesByMessage(guildID, messageID int64) (int64, error) {
	res, err := h.db.Exec("DELETE FROM image_hashes WHERE guild_id = ? AND message_id = ?", guildID, messageID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete image hashes for message %d: %w", messageID, err)
	}

	return res.RowsAffected()
}

func (h *HashDB) imageByAttachment(guildID, attachmentID int64) (*models.ImageHash, error) {
	query := `SELECT id, guild_id, channel_id, message_id, attachment_id, hash
              FROM image_hashes
              WHERE guild_id = ? AND attachment_id = ?`

	images, err := h.queryImages(query, guildID, attachmentID)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, nil
	}
	return &images[0], nil
}

func (h *HashDB) queryImages(query string, args ...interface{}) ([]models.ImageHash, error) {
	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query image hashes: %w", err)
	}
	defer rows.Close()

	var images []models.ImageHash
	for rows.Next() {
		var img models.ImageHash
		var rawHash int64
		if err := rows.Scan(&img.ID, &img.GuildID, &img.ChannelID, &img.MessageID, &img.AttachmentID, &rawHash); err != nil {
			return nil, fmt.Errorf("failed to scan image hash: %w", err)
		}
		img.Hash = uint64(rawHash)
		images = append(images, img)
	}

	return images, rows.Err()
}
