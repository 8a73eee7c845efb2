package handlers

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"repost-bot/bot"
	"repost-bot/dhash"
	"repost-bot/utils"

	"github.com/bwmarrin/discordgo"
)

const defaultReactionLimit = 5

// optionMap indexes interaction options by name.
func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// HandleDhashAdd handles the logic for the /dhash add command.
func HandleDhashAdd(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)

	channel := opts["channel"].ChannelValue(s)
	reactionLimit := defaultReactionLimit
	if opt, ok := opts["reaction_limit"]; ok {
		reactionLimit = int(opt.IntValue())
	}
	if reactionLimit < 1 {
		respond(s, i, "Reaction limit must be higher than 0.", true)
		return
	}

	guildID, channelID, err := parseSnowflakes(i.GuildID, channel.ID)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	existing, err := b.Store.HashChannel(guildID, channelID)
	if err != nil {
		log.Printf("Error looking up hash channel %s: %v", channel.ID, err)
		respond(s, i, "🚫 Internal error: could not read channel configuration.", true)
		return
	}
	if existing != nil {
		respond(s, i, fmt.Sprintf("<#%s> is already a hash channel.", channel.ID), false)
		return
	}

	if _, _, err := b.Store.AddHashChannel(guildID, channelID, reactionLimit); err != nil {
		log.Printf("Error adding hash channel %s: %v", channel.ID, err)
		respond(s, i, "🚫 Internal error: could not register the channel.", true)
		return
	}

	respond(s, i, fmt.Sprintf("Channel <#%s> added as hash channel with reaction limit **%d**.", channel.ID, reactionLimit), false)
	utils.Info("dhash", "add", fmt.Sprintf("Channel #%s set as hash channel with reaction limit %d.", channel.Name, reactionLimit))
}

// HandleDhashLimit handles the logic for the /dhash limit command.
func HandleDhashLimit(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)

	channel := opts["channel"].ChannelValue(s)
	reactionLimit := int(opts["reaction_limit"].IntValue())
	if reactionLimit < 1 {
		respond(s, i, "Reaction limit must be higher than 0.", true)
		return
	}

	guildID, channelID, err := parseSnowflakes(i.GuildID, channel.ID)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	updated, err := b.Store.SetReactionLimit(guildID, channelID, reactionLimit)
	if err != nil {
		log.Printf("Error updating reaction limit for channel %s: %v", channel.ID, err)
		respond(s, i, "🚫 Internal error: could not update the channel.", true)
		return
	}
	if !updated {
		respond(s, i, fmt.Sprintf("<#%s> is not a hash channel.", channel.ID), false)
		return
	}

	respond(s, i, fmt.Sprintf("Changed reaction limit for <#%s> to **%d**.", channel.ID, reactionLimit), false)
	utils.Info("dhash", "limit", fmt.Sprintf("Changed reaction limit for channel #%s to %d.", channel.Name, reactionLimit))
}

// HandleDhashList handles the logic for the /dhash list command.
func HandleDhashList(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	guildID, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		log.Printf("Error parsing guild ID %s: %v", i.GuildID, err)
		return
	}

	channels, err := b.Store.HashChannels(guildID)
	if err != nil {
		log.Printf("Error listing hash channels for guild %s: %v", i.GuildID, err)
		respond(s, i, "🚫 Internal error: could not list the channels.", true)
		return
	}
	if len(channels) == 0 {
		respond(s, i, "This server has no hash channels.", false)
		return
	}

	names := make([]string, len(channels))
	nameWidth := 0
	for idx, channel := range channels {
		names[idx] = "???"
		if ch, err := s.Channel(strconv.FormatInt(channel.ChannelID, 10)); err == nil {
			names[idx] = ch.Name
		}
		if len(names[idx]) > nameWidth {
			nameWidth = len(names[idx])
		}
	}

	var lines []string
	for idx, channel := range channels {
		lines = append(lines, fmt.Sprintf("#%-*s %d %d", nameWidth, names[idx], channel.ChannelID, channel.ReactionLimit))
	}

	respond(s, i, "```"+strings.Join(lines, "\n")+"```", false)
}

// HandleDhashRemove handles the logic for the /dhash remove command.
func HandleDhashRemove(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	channel := opts["channel"].ChannelValue(s)

	guildID, channelID, err := parseSnowflakes(i.GuildID, channel.ID)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	removed, err := b.Store.RemoveHashChannel(guildID, channelID)
	if err != nil {
		log.Printf("Error removing hash channel %s: %v", channel.ID, err)
		respond(s, i, "🚫 Internal error: could not unregister the channel.", true)
		return
	}
	if !removed {
		respond(s, i, fmt.Sprintf("<#%s> is not a hash channel.", channel.ID), false)
		return
	}

	respond(s, i, fmt.Sprintf("Hash channel <#%s> removed.", channel.ID), false)
	utils.Info("dhash", "remove", fmt.Sprintf("Channel #%s is no longer a hash channel.", channel.Name))
}

// HandleDhashHistory handles the logic for the /dhash history command. The
// scan itself runs in a goroutine and reports progress by editing a status
// message in the channel.
func HandleDhashHistory(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	limit := int(opts["limit"].IntValue())

	respond(s, i, "Starting history scan...", true)

	go func() {
		status, err := s.ChannelMessageSend(i.ChannelID, "**SCANNING**\nProcessed **0** messages.")
		if err != nil {
			log.Printf("Error posting history status message: %v", err)
			return
		}

		progress := func(p dhash.BackfillProgress) {
			content := fmt.Sprintf("**SCANNING**\nProcessed **%d** messages.\nCalculated **%d** hashes.", p.Scanned, p.Hashes)
			if _, err := s.ChannelMessageEdit(i.ChannelID, status.ID, content); err != nil {
				log.Printf("Error editing history status message: %v", err)
			}
		}

		start := time.Now()
		result, err := b.Backfiller.Backfill(s, i.GuildID, i.ChannelID, limit, progress)
		if errors.Is(err, dhash.ErrBackfillRunning) {
			s.ChannelMessageEdit(i.ChannelID, status.ID, "A history scan is already running for this channel.")
			return
		}
		if err != nil {
			log.Printf("Error during history scan of channel %s: %v", i.ChannelID, err)
			s.ChannelMessageEdit(i.ChannelID, status.ID, "🚫 History scan failed, see the log for details.")
			return
		}

		content := fmt.Sprintf(
			"**COMPLETED**\nProcessed **%d** messages.\nCalculated **%d** image hashes in **%.1f** seconds.",
			result.Scanned, result.Hashes, time.Since(start).Seconds())
		if _, err := s.ChannelMessageEdit(i.ChannelID, status.ID, content); err != nil {
			log.Printf("Error editing history status message: %v", err)
		}
	}()
}

// HandleDhashCompare handles the logic for the /dhash compare command.
func HandleDhashCompare(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)

	guildID, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		log.Printf("Error parsing guild ID %s: %v", i.GuildID, err)
		return
	}

	var text []string
	for _, field := range strings.Fields(opts["messages"].StringValue()) {
		messageID, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}

		images, err := b.Store.ImagesByMessage(guildID, messageID)
		if err != nil {
			log.Printf("Error querying hashes for message %d: %v", messageID, err)
			continue
		}
		if len(images) == 0 {
			continue
		}

		text = append(text, fmt.Sprintf("Message **`%d`**", messageID))
		for _, image := range images {
			text = append(text, fmt.Sprintf("   > `%016x`", image.Hash))
		}
		text = append(text, "")
	}

	if len(text) == 0 {
		respond(s, i, "The messages have no associated hashes.", false)
		return
	}

	respond(s, i, strings.Join(text, "\n"), false)
}

// HandleDhashRegexGet handles the logic for the /dhash regex get command.
func HandleDhashRegexGet(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if re := b.Hasher.AllowedURLs(); re != nil {
		respond(s, i, fmt.Sprintf("Regex for allowed URLs is `%s`.", re.String()), false)
		return
	}
	respond(s, i, "Regex for allowed URLs is not set.", false)
}

// HandleDhashRegexSet handles the logic for the /dhash regex set command.
func HandleDhashRegexSet(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	opts := optionMap(options)
	pattern := opts["regex"].StringValue()

	re, err := regexp.Compile(pattern)
	if err != nil {
		respond(s, i, fmt.Sprintf("String `%s` is not a valid regex.", pattern), false)
		return
	}

	if err := b.Store.SetConfigValue(dhash.ConfigKeyAllowedURLs, pattern); err != nil {
		log.Printf("Error storing allowed_urls regex: %v", err)
		respond(s, i, "🚫 Internal error: could not store the regex.", true)
		return
	}
	b.Hasher.SetAllowedURLs(re)

	respond(s, i, fmt.Sprintf("String `%s` was successfully set as allowed URLs.", pattern), false)
	utils.Info("dhash", "regex set", fmt.Sprintf("DHash regex was set to `%s`.", pattern))
}

// HandleDhashRegexUnset handles the logic for the /dhash regex unset command.
func HandleDhashRegexUnset(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if err := b.Store.DeleteConfigValue(dhash.ConfigKeyAllowedURLs); err != nil {
		log.Printf("Error deleting allowed_urls regex: %v", err)
		respond(s, i, "🚫 Internal error: could not unset the regex.", true)
		return
	}
	b.Hasher.SetAllowedURLs(nil)

	respond(s, i, "Regex for allowed URLs successfully unset.", false)
	utils.Info("dhash", "regex unset", "DHash regex was unset.")
}
