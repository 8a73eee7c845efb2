package dhash

import (
	"fmt"
	"image"
	_ "image/gif"  // register decoders for the allowed formats
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"repost-bot/models"

	"github.com/bwmarrin/discordgo"
	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"
)

// DefaultMaxAttachmentKB is the download cap applied when no override is
// configured.
const DefaultMaxAttachmentKB = 8000

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/97.0.4692.71 Safari/537.36"

var (
	urlRegex        = regexp.MustCompile(`https?://[^\s]+`)
	discordCDNRegex = regexp.MustCompile(`^https://(?:cdn\.discordapp\.com|media\.discordapp\.net)/`)

	allowedFormats = map[string]bool{
		"jpg":  true,
		"jpeg": true,
		"png":  true,
		"webp": true,
		"gif":  true,
	}
)

// Hasher extracts candidate images from messages, computes their perceptual
// hashes and persists them. Extraction is best effort: any candidate that
// fails a policy check, download or decode is skipped on its own.
type Hasher struct {
	store    Store
	client   *http.Client
	maxBytes int64

	mu          sync.RWMutex
	allowedURLs *regexp.Regexp
}

// NewHasher creates a Hasher. maxKB bounds downloads; zero or negative falls
// back to DefaultMaxAttachmentKB. allowedURLs may be nil, in which case only
// Discord-CDN links are fetched.
func NewHasher(store Store, maxKB int64, allowedURLs *regexp.Regexp) *Hasher {
	if maxKB <= 0 {
		maxKB = DefaultMaxAttachmentKB
	}
	return &Hasher{
		store:       store,
		client:      &http.Client{Timeout: 30 * time.Second},
		maxBytes:    maxKB * 1024,
		allowedURLs: allowedURLs,
	}
}

// SetAllowedURLs replaces the operator allow-list regex at runtime.
func (h *Hasher) SetAllowedURLs(re *regexp.Regexp) {
	h.mu.Lock()
	h.allowedURLs = re
	h.mu.Unlock()
}

// AllowedURLs returns the current operator allow-list regex, or nil.
func (h *Hasher) AllowedURLs() *regexp.Regexp {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.allowedURLs
}

// HasCandidates reports whether the message carries anything worth hashing.
func HasCandidates(m *discordgo.Message) bool {
	return len(m.Attachments) > 0 || urlRegex.MatchString(m.Content)
}

// HashMessage hashes every acceptable image of a message, persisting each
// hash before yielding it so later scans can see it. Guild and channel IDs
// are passed separately because messages fetched over REST may not carry a
// guild ID.
func (h *Hasher) HashMessage(guildID, channelID int64, m *discordgo.Message) []uint64 {
	messageID, err := strconv.ParseInt(m.ID, 10, 64)
	if err != nil {
		log.Printf("Error parsing message ID %s: %v", m.ID, err)
		return nil
	}

	var hashes []uint64
	for _, att := range m.Attachments {
		if hash, ok := h.hashAttachment(guildID, channelID, messageID, att); ok {
			hashes = append(hashes, hash)
		}
	}
	for _, url := range urlRegex.FindAllString(m.Content, -1) {
		if hash, ok := h.hashURL(guildID, channelID, messageID, url); ok {
			hashes = append(hashes, hash)
		}
	}

	return hashes
}

func (h *Hasher) hashAttachment(guildID, channelID, messageID int64, att *discordgo.MessageAttachment) (uint64, bool) {
	if int64(att.Size) > h.maxBytes {
		return 0, false
	}
	if !allowedExtension(att.Filename) {
		return 0, false
	}

	attachmentID, err := strconv.ParseInt(att.ID, 10, 64)
	if err != nil {
		return 0, false
	}

	img, err := h.fetchImage(att.URL, false)
	if err != nil {
		return 0, false
	}

	hash, err := computeHash(img)
	if err != nil {
		return 0, false
	}

	return hash, h.persist(guildID, channelID, messageID, attachmentID, hash)
}

func (h *Hasher) hashURL(guildID, channelID, messageID int64, url string) (uint64, bool) {
	if !h.urlAllowed(url) {
		return 0, false
	}

	img, err := h.fetchImage(url, true)
	if err != nil {
		return 0, false
	}

	hash, err := computeHash(img)
	if err != nil {
		return 0, false
	}

	return hash, h.persist(guildID, channelID, messageID, 0, hash)
}

// urlAllowed guards against fetch-on-any-link: only Discord CDN links and
// URLs matching the operator regex are downloaded.
func (h *Hasher) urlAllowed(url string) bool {
	if discordCDNRegex.MatchString(url) {
		return true
	}
	allowed := h.AllowedURLs()
	return allowed != nil && allowed.MatchString(url)
}

// fetchImage downloads and decodes one image. checkHeaders enables the
// content-length and content-type checks used for arbitrary URLs; attachment
// downloads already carry trusted metadata from the gateway.
func (h *Hasher) fetchImage(url string, checkHeaders bool) (image.Image, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	limit := h.maxBytes
	if checkHeaders {
		size, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
		if err != nil || size > h.maxBytes {
			return nil, fmt.Errorf("missing or oversized content-length")
		}
		limit = size

		parts := strings.SplitN(resp.Header.Get("Content-Type"), "/", 2)
		if len(parts) != 2 || parts[0] != "image" || !allowedFormats[parts[1]] {
			return nil, fmt.Errorf("disallowed content type %q", resp.Header.Get("Content-Type"))
		}
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

func (h *Hasher) persist(guildID, channelID, messageID, attachmentID int64, hash uint64) bool {
	_, err := h.store.InsertImageHash(models.ImageHash{
		GuildID:      guildID,
		ChannelID:    channelID,
		MessageID:    messageID,
		AttachmentID: attachmentID,
		Hash:         hash,
	})
	if err != nil {
		log.Printf("Error storing image hash for message %d: %v", messageID, err)
		return false
	}
	return true
}

// computeHash computes the 64-bit difference hash of a decoded image.
func computeHash(img image.Image) (uint64, error) {
	hash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("failed to compute dHash: %w", err)
	}
	return hash.GetHash(), nil
}

func allowedExtension(filename string) bool {
	parts := strings.Split(filename, ".")
	return len(parts) > 1 && allowedFormats[strings.ToLower(parts[len(parts)-1])]
}
