// Package dhash detects near-duplicate image reposts by comparing perceptual
// hashes of posted images against a channel's stored hash history.
package dhash

import "repost-bot/models"

// ConfigKeyAllowedURLs is the hash_config key holding the operator-set regex
// for URLs the downloader may fetch from outside the Discord CDN.
const ConfigKeyAllowedURLs = "allowed_urls"

// Store is the persistence contract the detection code runs against.
// database.HashDB is the sqlite implementation.
type Store interface {
	InsertImageHash(img models.ImageHash) (models.ImageHash, error)
	ImagesByExactHash(guildID, channelID int64, hash uint64) ([]models.ImageHash, error)
	ImagesByChannel(guildID, channelID int64) ([]models.ImageHash, error)
	ImagesByMessage(guildID, messageID int64) ([]models.ImageHash, error)
	DeleteImagesByMessage(guildID, messageID int64) (int64, error)
	HashChannel(guildID, channelID int64) (*models.HashChannel, error)
}
