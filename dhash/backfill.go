package dhash

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/sync/semaphore"
)

// ErrBackfillRunning is returned when a history scan is already in flight for
// the channel. Concurrent invocations are rejected, not queued.
var ErrBackfillRunning = errors.New("a history scan is already running for this channel")

const historyPageSize = 100

// BackfillProgress carries the counters surfaced while a history scan runs.
type BackfillProgress struct {
	Scanned int
	Hashes  int
}

// Backfiller seeds a channel's hash history from past messages.
type Backfiller struct {
	hasher *Hasher
	locks  sync.Map // channel ID -> *semaphore.Weighted
}

// NewBackfiller creates a Backfiller using the given hasher.
func NewBackfiller(hasher *Hasher) *Backfiller {
	return &Backfiller{hasher: hasher}
}

// Backfill walks the channel history newest-first and hashes every image it
// finds, up to limit messages (negative means the whole channel). progress,
// when non-nil, is called every 50 scanned messages.
func (b *Backfiller) Backfill(s *discordgo.Session, guildID, channelID string, limit int, progress func(BackfillProgress)) (BackfillProgress, error) {
	v, _ := b.locks.LoadOrStore(channelID, semaphore.NewWeighted(1))
	sem := v.(*semaphore.Weighted)
	if !sem.TryAcquire(1) {
		return BackfillProgress{}, ErrBackfillRunning
	}
	defer sem.Release(1)

	gID, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		return BackfillProgress{}, fmt.Errorf("invalid guild ID %s: %w", guildID, err)
	}
	cID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return BackfillProgress{}, fmt.Errorf("invalid channel ID %s: %w", channelID, err)
	}

	var p BackfillProgress
	before := ""
	remaining := limit

	for {
		pageSize := historyPageSize
		if limit >= 0 {
			if remaining <= 0 {
				break
			}
			if remaining < pageSize {
				pageSize = remaining
			}
		}

		messages, err := s.ChannelMessages(channelID, pageSize, before, "", "")
		if err != nil {
			return p, fmt.Errorf("failed to fetch channel history: %w", err)
		}
		if len(messages) == 0 {
			break
		}

		for _, m := range messages {
			p.Scanned++
			if HasCandidates(m) {
				p.Hashes += len(b.hasher.HashMessage(gID, cID, m))
			}
			if progress != nil && p.Scanned%50 == 0 {
				progress(p)
			}
		}

		before = messages[len(messages)-1].ID
		remaining -= len(messages)
	}

	return p, nil
}
