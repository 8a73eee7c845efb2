package database

import (
	"database/sql"
	"errors"
	"fmt"

	"repost-bot/models"
)

// AddHashChannel registers a channel for duplicate detection. If the channel
// is already registered the existing row is returned unchanged and the second
// return value is false.
func (h *HashDB) AddHashChannel(guildID, channelID int64, reactionLimit int) (models.HashChannel, bool, error) {
	existing, err := h.HashChannel(guildID, channelID)
	if err != nil {
		return models.HashChannel{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	res, err := h.db.Exec(
		"INSERT INTO hash_channels (guild_id, channel_id, reaction_limit) VALUES (?, ?, ?)",
		guildID, channelID, reactionLimit,
	)
	if err != nil {
		return models.HashChannel{}, false, fmt.Errorf("failed to add hash channel %d: %w", channelID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.HashChannel{}, false, fmt.Errorf("failed to read inserted hash channel id: %w", err)
	}

	channel := models.HashChannel{
		ID:            id,
		GuildID:       guildID,
		ChannelID:     channelID,
		ReactionLimit: reactionLimit,
	}
	return channel, true, nil
}

// SetReactionLimit updates the contest-reaction threshold of a registered
// channel. It reports whether a row was actually updated.
func (h *HashDB) SetReactionLimit(guildID, channelID int64, reactionLimit int) (bool, error) {
	res, err := h.db.Exec(
		"UPDATE hash_channels SET reaction_limit = ? WHERE guild_id = ? AND channel_id = ?",
		reactionLimit, guildID, channelID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update reaction limit for channel %d: %w", channelID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// HashChannel returns the channel's registration row, or nil when the channel
// is not registered.
func (h *HashDB) HashChannel(guildID, channelID int64) (*models.HashChannel, error) {
	query := `SELECT id, guild_id, channel_id, reaction_limit
              FROM hash_channels
              WHERE guild_id = ? AND channel_id = ?`

	var channel models.HashChannel
	err := h.db.QueryRow(query, guildID, channelID).Scan(
		&channel.ID, &channel.GuildID, &channel.ChannelID, &channel.ReactionLimit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query hash channel %d: %w", channelID, err)
	}

	return &channel, nil
}

// HashChannels returns all registered channels of a guild.
func (h *HashDB) HashChannels(guildID int64) ([]models.HashChannel, error) {
	query := `SELECT id, guild_id, channel_id, reaction_limit
              FROM hash_channels
              WHERE guild_id = ?
              ORDER BY id`

	rows, err := h.db.Query(query, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hash channels for guild %d: %w", guildID, err)
	}
	defer rows.Close()

	var channels []models.HashChannel
	for rows.Next() {
		var channel models.HashChannel
		if err := rows.Scan(&channel.ID, &channel.GuildID, &channel.ChannelID, &channel.ReactionLimit); err != nil {
			return nil, fmt.Errorf("failed to scan hash channel: %w", err)
		}
		channels = append(channels, channel)
	}

	return channels, rows.Err()
}

// RemoveHashChannel unregisters a channel and reports whether it was
// registered in the first place.
func (h *HashDB) RemoveHashChannel(guildID, channelID int64) (bool, error) {
	res, err := h.db.Exec("DELETE FROM hash_channels WHERE guild_id = ? AND channel_id = ?", guildID, channelID)
	if err != nil {
		return false, fmt.Errorf("failed to remove hash channel %d: %w", channelID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ConfigValue reads a runtime configuration value. The second return value is
// false when the key is not set.
func (h *HashDB) ConfigValue(key string) (string, bool, error) {
	var value string
	err := h.db.QueryRow("SELECT value FROM hash_config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query config key %s: %w", key, err)
	}
	return value, true, nil
}

// SetConfigValue stores a runtime configuration value.
func (h *HashDB) SetConfigValue(key, value string) error {
	_, err := h.db.Exec("INSERT OR REPLACE INTO hash_config (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to set config key %s: %w", key, err)
	}
	return nil
}

// DeleteConfigValue removes a runtime configuration value.
func (h *HashDB) DeleteConfigValue(key string) error {
	_, err := h.db.Exec("DELETE FROM hash_config WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete config key %s: %w", key, err)
	}
	return nil
}
