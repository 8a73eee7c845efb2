package dhash

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"repost-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeREST answers Discord REST calls with canned responses and records every
// request so tests can assert which endpoints were hit.
type fakeREST struct {
	mu    sync.Mutex
	calls []string
	reply func(r *http.Request) (int, interface{})
}

func (f *fakeREST) RoundTrip(r *http.Request) (*http.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	status := http.StatusOK
	var body interface{}
	if f.reply != nil {
		status, body = f.reply(r)
	}

	data := []byte("{}")
	if body != nil {
		var err error
		if data, err = json.Marshal(body); err != nil {
			return nil, err
		}
	}

	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(data)),
		Request:    r,
	}, nil
}

func (f *fakeREST) called(method, pathPart string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if strings.HasPrefix(call, method+" ") && strings.Contains(call, pathPart) {
			return true
		}
	}
	return false
}

func newRESTSession(t *testing.T, rest *fakeREST) *discordgo.Session {
	t.Helper()
	s, err := discordgo.New("Bot test-token")
	require.NoError(t, err)
	s.Client = &http.Client{Transport: rest}
	return s
}

func contestReaction(guildID, channelID, messageID string) *discordgo.MessageReactionAdd {
	return &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
		UserID:    "222",
		MessageID: messageID,
		Emoji:     discordgo.Emoji{Name: EmojiContest},
		ChannelID: channelID,
		GuildID:   guildID,
	}}
}

// reportMessage builds the report as the REST API would return it: posted by
// the bot, carrying the footer that names the triggering message.
func reportMessage(contestCount int) *discordgo.Message {
	return &discordgo.Message{
		ID:        "900",
		ChannelID: "2",
		Author:    &discordgo.User{ID: "333", Bot: true},
		Reactions: []*discordgo.MessageReactions{
			{Count: contestCount, Emoji: &discordgo.Emoji{Name: EmojiContest}},
		},
		Embeds: []*discordgo.MessageEmbed{
			{Footer: &discordgo.MessageEmbedFooter{Text: ReportFooter("111", "500")}},
		},
	}
}

func TestReportFooterRoundTrip(t *testing.T) {
	footer := ReportFooter("111222333", "444555666")
	assert.Equal(t, "111222333 | 444555666", footer)

	authorID, messageID, ok := ParseReportFooter(footer)
	assert.True(t, ok)
	assert.Equal(t, "111222333", authorID)
	assert.Equal(t, "444555666", messageID)
}

func TestParseReportFooterInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no separator", "123456"},
		{"missing author", " | 123"},
		{"missing message", "123 | "},
		{"too many fields", "1 | 2 | 3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := ParseReportFooter(tt.text)
			assert.False(t, ok)
		})
	}
}

func TestSeverityLabel(t *testing.T) {
	assert.Contains(t, severityLabel(SeverityCertain), "This is a repost")
	assert.Contains(t, severityLabel(SeverityProbable), "probably")
	assert.Contains(t, severityLabel(SeverityPossible), "could be")
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, "plain", escapeMarkdown("plain"))
	assert.Equal(t, "a\\*b\\_c\\`d", escapeMarkdown("a*b_c`d"))
}

func TestHandleReactionAddRetractsReport(t *testing.T) {
	store := newFakeStore()
	store.channels[[2]int64{1, 2}] = models.HashChannel{ID: 1, GuildID: 1, ChannelID: 2, ReactionLimit: 5}

	rest := &fakeREST{reply: func(r *http.Request) (int, interface{}) {
		if r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/channels/2/messages/900") {
			return http.StatusOK, reportMessage(6)
		}
		return http.StatusOK, nil
	}}
	s := newRESTSession(t, rest)

	reporter := NewReporter(store)
	reporter.mu.Lock()
	reporter.cache["500"] = reportRef{ChannelID: "2", MessageID: "900", Created: time.Now()}
	reporter.mu.Unlock()

	reporter.HandleReactionAdd(s, contestReaction("1", "2", "900"))

	// The bot's endorsement comes off the original and the report is deleted.
	assert.True(t, rest.called(http.MethodDelete, "/channels/2/messages/500/reactions/"))
	assert.True(t, rest.called(http.MethodDelete, "/channels/2/messages/900"))
	assert.Equal(t, 0, reporter.CacheSize())
}

func TestHandleReactionAddBelowLimit(t *testing.T) {
	store := newFakeStore()
	store.channels[[2]int64{1, 2}] = models.HashChannel{ID: 1, GuildID: 1, ChannelID: 2, ReactionLimit: 5}

	rest := &fakeREST{reply: func(r *http.Request) (int, interface{}) {
		if r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/channels/2/messages/900") {
			// Exactly at the limit: the report stays.
			return http.StatusOK, reportMessage(5)
		}
		return http.StatusOK, nil
	}}
	s := newRESTSession(t, rest)

	reporter := NewReporter(store)
	reporter.HandleReactionAdd(s, contestReaction("1", "2", "900"))

	assert.False(t, rest.called(http.MethodDelete, "/channels/2/messages/"))
}

func TestHandleReactionAddIgnoresUnregisteredChannel(t *testing.T) {
	rest := &fakeREST{}
	s := newRESTSession(t, rest)

	reporter := NewReporter(newFakeStore())
	reporter.HandleReactionAdd(s, contestReaction("1", "2", "900"))

	assert.Empty(t, rest.calls)
}

func TestHandleMessageDeleteCachedReport(t *testing.T) {
	rest := &fakeREST{}
	s := newRESTSession(t, rest)

	reporter := NewReporter(newFakeStore())
	reporter.mu.Lock()
	reporter.cache["500"] = reportRef{ChannelID: "2", MessageID: "900", Created: time.Now()}
	reporter.mu.Unlock()

	reporter.HandleMessageDelete(s, &discordgo.MessageDelete{
		Message: &discordgo.Message{ID: "500", ChannelID: "2"},
	})

	assert.True(t, rest.called(http.MethodDelete, "/channels/2/messages/900"))
	assert.False(t, rest.called(http.MethodGet, "/channels/2/messages"))
	assert.Equal(t, 0, reporter.CacheSize())
}

func TestHandleMessageDeleteFooterScan(t *testing.T) {
	rest := &fakeREST{}
	rest.reply = func(r *http.Request) (int, interface{}) {
		if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/channels/2/messages") {
			// The scan looks just after the deleted message.
			assert.Equal(t, "500", r.URL.Query().Get("after"))
			return http.StatusOK, []*discordgo.Message{
				{ID: "901", ChannelID: "2", Author: &discordgo.User{ID: "444"}},
				reportMessage(0),
			}
		}
		return http.StatusOK, nil
	}
	s := newRESTSession(t, rest)

	// Cold cache, e.g. after a restart: expiry falls back to the footer scan.
	reporter := NewReporter(newFakeStore())
	reporter.HandleMessageDelete(s, &discordgo.MessageDelete{
		Message: &discordgo.Message{ID: "500", ChannelID: "2"},
	})

	assert.True(t, rest.called(http.MethodDelete, "/channels/2/messages/900"))
}

func TestHandleMessageDeleteFooterScanNoMatch(t *testing.T) {
	rest := &fakeREST{}
	rest.reply = func(r *http.Request) (int, interface{}) {
		if r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/channels/2/messages") {
			return http.StatusOK, []*discordgo.Message{
				{ID: "901", ChannelID: "2", Author: &discordgo.User{ID: "444"}},
			}
		}
		return http.StatusOK, nil
	}
	s := newRESTSession(t, rest)

	reporter := NewReporter(newFakeStore())
	reporter.HandleMessageDelete(s, &discordgo.MessageDelete{
		Message: &discordgo.Message{ID: "500", ChannelID: "2"},
	})

	assert.False(t, rest.called(http.MethodDelete, "/channels/2/messages/"))
}

func TestDisplayName(t *testing.T) {
	author := &discordgo.User{Username: "login", GlobalName: "Global"}

	assert.Equal(t, "Nick", displayName(&discordgo.Message{
		Author: author,
		Member: &discordgo.Member{Nick: "Nick"},
	}))
	assert.Equal(t, "Global", displayName(&discordgo.Message{Author: author}))
	assert.Equal(t, "login", displayName(&discordgo.Message{
		Author: &discordgo.User{Username: "login"},
	}))
}

func TestPruneCache(t *testing.T) {
	reporter := NewReporter(newFakeStore())

	reporter.mu.Lock()
	reporter.cache["old"] = reportRef{Created: time.Now().Add(-48 * time.Hour)}
	reporter.cache["fresh"] = reportRef{Created: time.Now()}
	reporter.mu.Unlock()

	pruned := reporter.PruneCache(24 * time.Hour)
	assert.Equal(t, 1, pruned)
	assert.Equal(t, 1, reporter.CacheSize())

	reporter.mu.Lock()
	_, oldKept := reporter.cache["old"]
	_, freshKept := reporter.cache["fresh"]
	reporter.mu.Unlock()
	assert.False(t, oldKept)
	assert.True(t, freshKept)
}
