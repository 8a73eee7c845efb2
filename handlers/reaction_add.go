package handlers

import (
	"repost-bot/bot"

	"github.com/bwmarrin/discordgo"
)

// ReactionAddHandler handles reaction add events, which drive the
// community-contest side of the report lifecycle.
func ReactionAddHandler(b *bot.Bot) func(s *discordgo.Session, e *discordgo.MessageReactionAdd) {
	return func(s *discordgo.Session, e *discordgo.MessageReactionAdd) {
		go b.Reporter.HandleReactionAdd(s, e)
	}
}
