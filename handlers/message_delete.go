package handlers

import (
	"log"
	"strconv"

	"repost-bot/bot"

	"github.com/bwmarrin/discordgo"
)

// MessageDeleteHandler handles Discord message delete events: the deleted
// message's hashes are purged and its repost report, if any, is deleted too.
func MessageDeleteHandler(b *bot.Bot) func(s *discordgo.Session, m *discordgo.MessageDelete) {
	return func(s *discordgo.Session, m *discordgo.MessageDelete) {
		if m.GuildID == "" {
			return
		}

		guildID, channelID, err := parseSnowflakes(m.GuildID, m.ChannelID)
		if err != nil {
			log.Printf("%v", err)
			return
		}

		channel, err := b.Store.HashChannel(guildID, channelID)
		if err != nil {
			log.Printf("Error looking up hash channel %s: %v", m.ChannelID, err)
			return
		}
		if channel == nil {
			return
		}

		messageID, err := strconv.ParseInt(m.ID, 10, 64)
		if err != nil {
			log.Printf("Error parsing message ID %s: %v", m.ID, err)
			return
		}

		if _, err := b.Store.DeleteImagesByMessage(guildID, messageID); err != nil {
			log.Printf("Error deleting image hashes for message %s: %v", m.ID, err)
		}

		go b.Reporter.HandleMessageDelete(s, m)
	}
}
