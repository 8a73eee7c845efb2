package command

import "github.com/bwmarrin/discordgo"

// DhashCommand defines the structure for the /dhash command.
type DhashCommand struct{}

// Definition returns the application command definition.
func (c *DhashCommand) Definition() *discordgo.ApplicationCommand {
	reactionLimitMin := float64(1)

	return &discordgo.ApplicationCommand{
		Name:        "dhash",
		Description: "Duplicate image detection",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Register a channel for duplicate detection",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "The channel to watch for reposts",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "reaction_limit",
						Description: "Contest reactions needed to retract a report (default 5)",
						MinValue:    &reactionLimitMin,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "limit",
				Description: "Change a channel's contest-reaction limit",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "The registered channel",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "reaction_limit",
						Description: "Contest reactions needed to retract a report",
						Required:    true,
						MinValue:    &reactionLimitMin,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List the channels registered for duplicate detection",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Unregister a channel from duplicate detection",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "The channel to unregister",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "history",
				Description: "Scan this channel's history and store image hashes",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "limit",
						Description: "How many messages to scan, negative for all",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "compare",
				Description: "Display the stored hashes of the given messages",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "messages",
						Description: "Space-separated message IDs",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommandGroup,
				Name:        "regex",
				Description: "Manage the allow-list regex for URL downloads",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "get",
						Description: "Show the current allow-list regex",
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "set",
						Description: "Set the allow-list regex",
						Options: []*discordgo.ApplicationCommandOption{
							{
								Type:        discordgo.ApplicationCommandOptionString,
								Name:        "regex",
								Description: "Regex string",
								Required:    true,
							},
						},
					},
					{
						Type:        discordgo.ApplicationCommandOptionSubCommand,
						Name:        "unset",
						Description: "Remove the allow-list regex",
					},
				},
			},
		},
	}
}
