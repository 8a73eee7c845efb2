package handlers

import (
	"log"

	"repost-bot/bot"
	"repost-bot/utils"

	"github.com/bwmarrin/discordgo"
)

// CommandDispatcher is the central handler for all application command
// interactions. It performs permission checks and then dispatches the
// interaction to the appropriate handler.
func CommandDispatcher(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	auth, err := utils.NewAuth()
	if err != nil {
		log.Printf("Failed to create auth instance: %v", err)
		return
	}

	data := i.ApplicationCommandData()
	if data.Name != "dhash" {
		respond(s, i, "🚫 Internal error: unknown command.", true)
		return
	}

	sub, options := subcommand(data)

	requiredLevel := "admin"
	switch sub {
	case "list", "compare":
		requiredLevel = "guest"
	}

	if !auth.CheckPermission(s, i, requiredLevel) {
		respond(s, i, "🚫 You don't have permission to use this command.", true)
		return
	}

	switch sub {
	case "add":
		HandleDhashAdd(b, s, i, options)
	case "limit":
		HandleDhashLimit(b, s, i, options)
	case "list":
		HandleDhashList(b, s, i)
	case "remove":
		HandleDhashRemove(b, s, i, options)
	case "history":
		HandleDhashHistory(b, s, i, options)
	case "compare":
		HandleDhashCompare(b, s, i, options)
	case "regex get":
		HandleDhashRegexGet(b, s, i)
	case "regex set":
		HandleDhashRegexSet(b, s, i, options)
	case "regex unset":
		HandleDhashRegexUnset(b, s, i)
	default:
		respond(s, i, "🚫 Internal error: unknown subcommand.", true)
	}
}

// subcommand flattens the invoked subcommand (or group subcommand) path and
// returns its options.
func subcommand(data discordgo.ApplicationCommandInteractionData) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(data.Options) == 0 {
		return "", nil
	}

	opt := data.Options[0]
	if opt.Type == discordgo.ApplicationCommandOptionSubCommandGroup {
		if len(opt.Options) == 0 {
			return opt.Name, nil
		}
		return opt.Name + " " + opt.Options[0].Name, opt.Options[0].Options
	}
	return opt.Name, opt.Options
}

// respond sends a simple text response to an interaction.
func respond(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
	if err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}
