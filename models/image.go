package models

// ImageHash is a stored perceptual hash of one image posted to a hash channel.
// Rows are immutable after creation and are only removed in bulk when the
// owning message is deleted.
type ImageHash struct {
	ID           int64  `json:"id"`
	GuildID      int64  `json:"guild_id"`
	ChannelID    int64  `json:"channel_id"`
	MessageID    int64  `json:"message_id"`
	AttachmentID int64  `json:"attachment_id"` // 0 for URL-sourced images
	Hash         uint64 `json:"hash"`
}

// HashChannel marks a channel as participating in duplicate detection.
// Its presence is the sole gate; no row means the feature is off there.
type HashChannel struct {
	ID            int64 `json:"id"`
	GuildID       int64 `json:"guild_id"`
	ChannelID     int64 `json:"channel_id"`
	ReactionLimit int   `json:"reaction_limit"`
}

// Duplicate pairs a historical image with its Hamming distance from a newly
// posted one.
type Duplicate struct {
	Original ImageHash
	Distance int
}
