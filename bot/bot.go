package bot

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"repost-bot/config"
	"repost-bot/database"
	"repost-bot/dhash"
	"repost-bot/models"
	"repost-bot/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// Bot encapsulates the bot's state and the duplicate-detection services.
type Bot struct {
	Session  *discordgo.Session
	Commands []*discordgo.ApplicationCommand

	Store      *database.HashDB
	Hasher     *dhash.Hasher
	Detector   *dhash.Detector
	Reporter   *dhash.Reporter
	Backfiller *dhash.Backfiller
}

// NewBot creates and initializes a new Bot instance.
func NewBot() (*Bot, error) {
	config.LoadConfig()
	token := viper.GetString("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions | discordgo.IntentMessageContent

	var dhashConfig models.DhashConfig
	if err := viper.UnmarshalKey("dhash", &dhashConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dhash config: %w", err)
	}

	db, err := database.InitDB(dhashConfig.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	store := database.NewHashDB(db)

	hasher := dhash.NewHasher(store, dhashConfig.MaxAttachmentKB, loadAllowedURLs(store, dhashConfig.AllowedURLs))

	return &Bot{
		Session:    dg,
		Store:      store,
		Hasher:     hasher,
		Detector:   dhash.NewDetector(store),
		Reporter:   dhash.NewReporter(store),
		Backfiller: dhash.NewBackfiller(hasher),
	}, nil
}

// loadAllowedURLs builds the URL allow-list regex. A value set at runtime via
// the regex command takes precedence over the bootstrap value in the config.
func loadAllowedURLs(store *database.HashDB, fallback string) *regexp.Regexp {
	pattern, ok, err := store.ConfigValue(dhash.ConfigKeyAllowedURLs)
	if err != nil {
		log.Printf("Error reading allowed_urls from store: %v", err)
	}
	if !ok {
		pattern = fallback
	}
	if pattern == "" {
		return nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		log.Printf("Invalid allowed_urls pattern %q: %v", pattern, err)
		return nil
	}
	return re
}

// RegisterCommands records the slash commands to create on startup.
func (b *Bot) RegisterCommands(commands []*discordgo.ApplicationCommand) {
	b.Commands = commands
}

// Start opens the bot's session and registers handlers.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	registerHandlers(b)

	err := b.Session.Open()
	if err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	utils.InitLogger(b.Session)

	// Register slash commands
	for _, cmd := range b.Commands {
		_, err := b.Session.ApplicationCommandCreate(b.Session.State.User.ID, "", cmd)
		if err != nil {
			log.Printf("Cannot create '%v' command: %v", cmd.Name, err)
		}
	}

	startScheduler(b.Reporter)

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	return nil
}

// Stop gracefully closes the bot's session and the store.
func (b *Bot) Stop() {
	stopScheduler()
	if b.Session != nil {
		b.Session.Close()
	}
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}
	fmt.Println("Bot stopped gracefully.")
}

// Run is the main entry point for the bot application.
func Run(registerHandlers func(*Bot), commands []*discordgo.ApplicationCommand) {
	bot, err := NewBot()
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}

	bot.RegisterCommands(commands)

	if err := bot.Start(registerHandlers); err != nil {
		log.Fatalf("Error starting bot: %v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
}
