package dhash

import (
	"fmt"

	"repost-bot/models"
)

// Hamming-distance bands over the 64-bit hash. A minimum distance below
// LimitSoft is reported as a duplicate; LimitFull and LimitHard only pick the
// wording of the report.
const (
	LimitFull = 3
	LimitHard = 7
	LimitSoft = 14

	hashBits = 64
)

// Severity classifies how confident a duplicate verdict is.
type Severity int

const (
	SeverityCertain Severity = iota
	SeverityProbable
	SeverityPossible
)

// Detector matches new hashes against a channel's stored history.
type Detector struct {
	store Store
}

// NewDetector creates a Detector backed by the given store.
func NewDetector(store Store) *Detector {
	return &Detector{store: store}
}

// FindDuplicates returns, per source hash, the closest historical image within
// the soft limit. Rows belonging to messageID itself are never matched, and
// hashes from other channels are never considered.
//
// Exact matches are resolved with an indexed lookup first; the full channel
// scan only runs for hashes without an identical prior row, and the history is
// loaded at most once per call.
func (d *Detector) FindDuplicates(guildID, channelID, messageID int64, hashes []uint64) (map[uint64]models.Duplicate, error) {
	duplicates := make(map[uint64]models.Duplicate)

	var history []models.ImageHash
	var historyLoaded bool

	for _, hash := range hashes {
		exact, err := d.store.ImagesByExactHash(guildID, channelID, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to look up exact hash: %w", err)
		}

		exactFound := false
		for _, img := range exact {
			if img.MessageID == messageID {
				continue
			}
			duplicates[hash] = models.Duplicate{Original: img, Distance: 0}
			exactFound = true
			break
		}
		if exactFound {
			continue
		}

		if !historyLoaded {
			history, err = d.store.ImagesByChannel(guildID, channelID)
			if err != nil {
				return nil, fmt.Errorf("failed to load channel history: %w", err)
			}
			historyLoaded = true
		}

		minDistance := hashBits * 2
		var closest models.ImageHash
		for _, img := range history {
			if img.MessageID == messageID {
				continue
			}
			if distance := HammingDistance(hash, img.Hash); distance < minDistance {
				minDistance = distance
				closest = img
			}
		}

		if minDistance < LimitSoft {
			duplicates[hash] = models.Duplicate{Original: closest, Distance: minDistance}
		}
	}

	return duplicates, nil
}

// HammingDistance counts the differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	xor := a ^ b
	count := 0
	for xor != 0 {
		count++
		xor &= xor - 1
	}
	return count
}

// SeverityFor maps a Hamming distance to its presentation band.
func SeverityFor(distance int) Severity {
	switch {
	case distance <= LimitFull:
		return SeverityCertain
	case distance <= LimitHard:
		return SeverityProbable
	default:
		return SeverityPossible
	}
}

// SimilarityPercent expresses a Hamming distance as a similarity percentage.
func SimilarityPercent(distance int) float64 {
	return (1 - float64(distance)/hashBits) * 100
}
