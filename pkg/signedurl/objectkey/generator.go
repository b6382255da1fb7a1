package objectkey

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Generator defines the interface for object key generation strategies
type Generator interface {
	// GenerateKey creates an object key for an upload identified by id
	GenerateKey(id uuid.UUID, metadata *KeyMetadata) string
}

// KeyMetadata contains information that influences key generation
type KeyMetadata struct {
	FileName    string // client supplied name, used only as a suffix
	ContentType string // drives the extension
}

// RandomGenerator produces flat keys: {prefix}/{uuid hex}.{ext}
type RandomGenerator struct {
	Prefix string
}

func NewRandomGenerator(prefix string) *RandomGenerator {
	return &RandomGenerator{Prefix: prefix}
}

func (g *RandomGenerator) GenerateKey(id uuid.UUID, metadata *KeyMetadata) string {
	return join(g.Prefix, hexID(id)+"."+extensionFor(metadata))
}

// ShardedGenerator provides Git-style sharding to spread keys over prefixes
// {prefix}/ab/cd1234ef5678.{ext} or {prefix}/ab/cd1234ef5678_{filename}
type ShardedGenerator struct {
	Prefix string
	// ShardLength controls how many characters to use for sharding (default: 2)
	ShardLength int
}

func NewShardedGenerator(prefix string) *ShardedGenerator {
	return &ShardedGenerator{Prefix: prefix, ShardLength: 2}
}

func (g *ShardedGenerator) GenerateKey(id uuid.UUID, metadata *KeyMetadata) string {
	idStr := hexID(id)

	shardLength := g.ShardLength
	if shardLength <= 0 {
		shardLength = 2
	}
	if shardLength > len(idStr) {
		shardLength = len(idStr)
	}
	shardDir := idStr[:shardLength]
	remaining := idStr[shardLength:]

	filename := remaining + "." + extensionFor(metadata)
	if metadata != nil && metadata.FileName != "" {
		filename = fmt.Sprintf("%s_%s", remaining, sanitizeFilename(path.Base(metadata.FileName)))
	}

	return join(g.Prefix, shardDir, filename)
}

// CustomFuncGenerator allows users to provide their own key generation function
type CustomFuncGenerator struct {
	GenerateFunc func(id uuid.UUID, metadata *KeyMetadata) string
}

func NewCustomFuncGenerator(fn func(id uuid.UUID, metadata *KeyMetadata) string) *CustomFuncGenerator {
	return &CustomFuncGenerator{GenerateFunc: fn}
}

func (g *CustomFuncGenerator) GenerateKey(id uuid.UUID, metadata *KeyMetadata) string {
	return g.GenerateFunc(id, metadata)
}

// New generates a key with a fresh random UUID.
func New(g Generator, metadata *KeyMetadata) string {
	return g.GenerateKey(uuid.New(), metadata)
}

// ErrInvalidKey is returned by Clean for names that cannot be used as keys
var ErrInvalidKey = errors.New("objectkey: invalid object key")

// Clean validates a caller supplied object name for use as a key verbatim.
// Leading slashes are dropped; empty names, dot segments and control
// characters are rejected.
func Clean(name string) (string, error) {
	key := strings.TrimLeft(strings.TrimSpace(name), "/")
	if key == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidKey)
	}
	if len(key) > 1024 {
		return "", fmt.Errorf("%w: longer than 1024 bytes", ErrInvalidKey)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "." || seg == ".." {
			return "", fmt.Errorf("%w: %q contains a dot segment", ErrInvalidKey, name)
		}
	}
	for _, r := range key {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("%w: %q contains control characters", ErrInvalidKey, name)
		}
	}
	return key, nil
}

var extensions = map[string]string{
	"image/jpeg":       "jpg",
	"image/png":        "png",
	"image/gif":        "gif",
	"image/webp":       "webp",
	"image/heic":       "heic",
	"image/avif":       "avif",
	"image/svg+xml":    "svg",
	"video/mp4":        "mp4",
	"video/quicktime":  "mov",
	"audio/mpeg":       "mp3",
	"application/pdf":  "pdf",
	"application/json": "json",
	"application/zip":  "zip",
	"text/plain":       "txt",
	"text/csv":         "csv",
}

// ExtensionFor returns the file extension (without dot) used for contentType.
func ExtensionFor(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	if ext, ok := extensions[strings.ToLower(strings.TrimSpace(mediaType))]; ok {
		return ext
	}
	return "bin"
}

func extensionFor(metadata *KeyMetadata) string {
	if metadata == nil {
		return ExtensionFor("")
	}
	return ExtensionFor(metadata.ContentType)
}

func hexID(id uuid.UUID) string {
	return strings.ReplaceAll(id.String(), "-", "")
}

func join(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// Helper functions for path sanitization
func sanitizeFilename(filename string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
		"#", "_",
	)
	return replacer.Replace(filename)
}
