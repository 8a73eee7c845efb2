package handlers

import (
	"log"
	"strconv"

	"repost-bot/bot"
	"repost-bot/dhash"

	"github.com/bwmarrin/discordgo"
)

// MessageCreateHandler handles Discord message create events. Messages posted
// to a registered channel are hashed and checked against the channel history.
func MessageCreateHandler(b *bot.Bot) func(s *discordgo.Session, m *discordgo.MessageCreate) {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		// Skip bot messages and DMs
		if m.Author == nil || m.Author.Bot || m.GuildID == "" {
			return
		}
		if !dhash.HasCandidates(m.Message) {
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

		// Hash, detect and report in one task per message.
		go checkMessage(b, s, m.Message, guildID, channelID)
	}
}

// checkMessage runs the hash -> detect -> report pipeline for one message.
func checkMessage(b *bot.Bot, s *discordgo.Session, m *discordgo.Message, guildID, channelID int64) {
	messageID, err := strconv.ParseInt(m.ID, 10, 64)
	if err != nil {
		log.Printf("Error parsing message ID %s: %v", m.ID, err)
		return
	}

	hashes := b.Hasher.HashMessage(guildID, channelID, m)
	if len(hashes) == 0 {
		return
	}

	duplicates, err := b.Detector.FindDuplicates(guildID, channelID, messageID, hashes)
	if err != nil {
		log.Printf("Error scanning for duplicates of message %s: %v", m.ID, err)
		return
	}

	// Several hashes of one message may resolve to the same original; report
	// each original once.
	reported := make(map[int64]bool)
	for _, dup := range duplicates {
		if reported[dup.Original.ID] {
			continue
		}
		reported[dup.Original.ID] = true
		b.Reporter.Report(s, m, dup)
	}
}

// parseSnowflakes converts guild and channel IDs to int64.
func parseSnowflakes(guildID, channelID string) (int64, int64, error) {
	gID, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	cID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return gID, cID, nil
}
