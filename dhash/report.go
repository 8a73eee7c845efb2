package dhash

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"repost-bot/models"
	"repost-bot/utils"

	"github.com/bwmarrin/discordgo"
)

const (
	// EmojiRepost marks the offending message and invites endorsement.
	EmojiRepost = "♻️"
	// EmojiContest is the community veto on a report.
	EmojiContest = "❎"

	// reportScanWindow is how many messages after a deleted original are
	// searched for its report when the cache is cold.
	reportScanWindow = 3

	colorReport = 0xE67E22 // orange
)

type reportRef struct {
	ChannelID string
	MessageID string
	Created   time.Time
}

// Reporter posts repost reports and drives their lifecycle: retraction when
// enough users contest, expiry when the original message is deleted.
//
// The {triggering message -> report} mapping only lives in memory. After a
// restart expiry falls back to scanning the few messages posted right after
// the original and matching the report's footer.
type Reporter struct {
	store Store

	mu    sync.Mutex
	cache map[string]reportRef // triggering message ID -> posted report
}

// NewReporter creates a Reporter backed by the given store.
func NewReporter(store Store) *Reporter {
	return &Reporter{
		store: store,
		cache: make(map[string]reportRef),
	}
}

// Report posts a repost report replying to the offending message and marks
// the message itself with the endorsement reaction. Platform errors are
// logged and the report is abandoned.
func (r *Reporter) Report(s *discordgo.Session, m *discordgo.Message, dup models.Duplicate) {
	if err := s.MessageReactionAdd(m.ChannelID, m.ID, EmojiRepost); err != nil {
		log.Printf("Error adding repost reaction to message %s: %v", m.ID, err)
	}

	embed := r.buildReportEmbed(s, m, dup)

	report, err := s.ChannelMessageSendComplex(m.ChannelID, &discordgo.MessageSend{
		Embeds:    []*discordgo.MessageEmbed{embed},
		Reference: m.Reference(),
	})
	if err != nil {
		utils.Error("dhash", "report", fmt.Sprintf("Could not post repost report for message %s: %v", m.ID, err))
		return
	}

	r.mu.Lock()
	r.cache[m.ID] = reportRef{ChannelID: report.ChannelID, MessageID: report.ID, Created: time.Now()}
	r.mu.Unlock()

	if err := s.MessageReactionAdd(report.ChannelID, report.ID, EmojiContest); err != nil {
		log.Printf("Error adding contest reaction to report %s: %v", report.ID, err)
	}
}

// HandleReactionAdd retracts a report once its contest reactions exceed the
// channel's limit: the bot's endorsement is removed from the original message
// and the report is deleted.
func (r *Reporter) HandleReactionAdd(s *discordgo.Session, e *discordgo.MessageReactionAdd) {
	if e.GuildID == "" || e.Emoji.Name != EmojiContest {
		return
	}
	if e.Member != nil && e.Member.User != nil && e.Member.User.Bot {
		return
	}

	guildID, err := strconv.ParseInt(e.GuildID, 10, 64)
	if err != nil {
		return
	}
	channelID, err := strconv.ParseInt(e.ChannelID, 10, 64)
	if err != nil {
		return
	}

	channel, err := r.store.HashChannel(guildID, channelID)
	if err != nil {
		log.Printf("Error looking up hash channel %s: %v", e.ChannelID, err)
		return
	}
	if channel == nil {
		return
	}

	message, err := s.ChannelMessage(e.ChannelID, e.MessageID)
	if err != nil {
		log.Printf("Error fetching message %s for reaction check: %v", e.MessageID, err)
		return
	}
	if message.Author == nil || !message.Author.Bot {
		return
	}

	for _, reaction := range message.Reactions {
		if reaction.Emoji.Name != EmojiContest {
			continue
		}
		if reaction.Count <= channel.ReactionLimit {
			return
		}

		// Enough contest votes: this is not a repost after all.
		if len(message.Embeds) == 1 && message.Embeds[0].Footer != nil {
			if _, repostID, ok := ParseReportFooter(message.Embeds[0].Footer.Text); ok {
				r.mu.Lock()
				delete(r.cache, repostID)
				r.mu.Unlock()

				if err := s.MessageReactionRemove(e.ChannelID, repostID, EmojiRepost, "@me"); err != nil {
					utils.Error("dhash", "retract", fmt.Sprintf(
						"Could not remove repost reaction from message %s: %v", repostID, err))
				}
			}
		}

		if err := s.ChannelMessageDelete(e.ChannelID, e.MessageID); err != nil {
			utils.Error("dhash", "retract", fmt.Sprintf("Could not delete report %s: %v", e.MessageID, err))
		}
		return
	}
}

// HandleMessageDelete deletes the report belonging to a deleted original
// message, using the cache when possible and the footer scan otherwise.
func (r *Reporter) HandleMessageDelete(s *discordgo.Session, e *discordgo.MessageDelete) {
	r.mu.Lock()
	ref, cached := r.cache[e.ID]
	if cached {
		delete(r.cache, e.ID)
	}
	r.mu.Unlock()

	if cached {
		if err := s.ChannelMessageDelete(ref.ChannelID, ref.MessageID); err != nil {
			utils.Error("dhash", "expire", fmt.Sprintf("Could not delete report %s: %v", ref.MessageID, err))
		}
		return
	}

	// Cache miss, e.g. after a restart. The report was posted as a reply, so
	// look at the few messages right after the deleted one.
	messages, err := s.ChannelMessages(e.ChannelID, reportScanWindow, "", e.ID, "")
	if err != nil {
		log.Printf("Error fetching messages after %s: %v", e.ID, err)
		return
	}

	for _, report := range messages {
		if report.Author == nil || !report.Author.Bot {
			continue
		}
		if len(report.Embeds) != 1 || report.Embeds[0].Footer == nil {
			continue
		}
		_, triggerID, ok := ParseReportFooter(report.Embeds[0].Footer.Text)
		if !ok || triggerID != e.ID {
			continue
		}

		if err := s.ChannelMessageDelete(e.ChannelID, report.ID); err != nil {
			utils.Error("dhash", "expire", fmt.Sprintf("Could not delete report %s: %v", report.ID, err))
		}
		return
	}
}

// PruneCache drops cache entries older than maxAge and returns how many were
// removed. The reports themselves stay; only the in-memory tracking ends.
func (r *Reporter) PruneCache(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	r.mu.Lock()
	defer r.mu.Unlock()

	pruned := 0
	for id, ref := range r.cache {
		if ref.Created.Before(cutoff) {
			delete(r.cache, id)
			pruned++
		}
	}
	return pruned
}

// CacheSize returns the number of tracked reports.
func (r *Reporter) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *Reporter) buildReportEmbed(s *discordgo.Session, m *discordgo.Message, dup models.Duplicate) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: severityLabel(SeverityFor(dup.Distance)),
		Description: fmt.Sprintf("%s, matching **%.1f %%**!",
			escapeMarkdown(displayName(m)), SimilarityPercent(dup.Distance)),
		Color: colorReport,
		Footer: &discordgo.MessageEmbedFooter{
			Text: ReportFooter(m.Author.ID, m.ID),
		},
	}

	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Original",
		Value: r.originalLink(s, m.GuildID, dup.Original),
	})

	limit := 0
	if guildID, err := strconv.ParseInt(m.GuildID, 10, 64); err == nil {
		if channel, err := r.store.HashChannel(guildID, dup.Original.ChannelID); err == nil && channel != nil {
			limit = channel.ReactionLimit
		}
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name: "Hint",
		Value: fmt.Sprintf(
			"_If the image is a repost, give it a %s reaction. "+
				"If it's not, click %s here and when we reach %d reactions, this message will be deleted._",
			EmojiRepost, EmojiContest, limit),
	})

	return embed
}

// originalLink renders a jump link to the original message, or a tombstone
// when it can no longer be fetched.
func (r *Reporter) originalLink(s *discordgo.Session, guildID string, original models.ImageHash) string {
	channelID := strconv.FormatInt(original.ChannelID, 10)
	messageID := strconv.FormatInt(original.MessageID, 10)

	message, err := s.ChannelMessage(channelID, messageID)
	if err != nil || message.Author == nil {
		return "404 😿"
	}

	timestamp := ""
	if ts, err := discordgo.SnowflakeTimestamp(messageID); err == nil {
		timestamp = ts.UTC().Format("2006-01-02 15:04:05")
	}

	return fmt.Sprintf("[**%s**, %s](https://discord.com/channels/%s/%s/%s)",
		escapeMarkdown(displayName(message)), timestamp, guildID, channelID, messageID)
}

// displayName picks the name a message's author goes by in the guild: the
// server nickname when set, then the global display name, then the username.
func displayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}

// ReportFooter encodes the reposter and the triggering message into a report
// footer.
func ReportFooter(authorID, messageID string) string {
	return authorID + " | " + messageID
}

// ParseReportFooter decodes a report footer back into the reposter's user ID
// and the triggering message ID.
func ParseReportFooter(text string) (authorID, messageID string, ok bool) {
	parts := strings.Split(text, " | ")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func severityLabel(severity Severity) string {
	switch severity {
	case SeverityCertain:
		return "**♻ This is a repost!**"
	case SeverityProbable:
		return "**♻ This is probably a repost!**"
	default:
		return "🤷 This could be a repost."
	}
}

var markdownEscaper = strings.NewReplacer(
	"*", "\\*", "_", "\\_", "`", "\\`", "~", "\\~", "|", "\\|",
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
