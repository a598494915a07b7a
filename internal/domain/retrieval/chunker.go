// Package retrieval turns knowledge documents into chunks and chunks back
// into bounded prompt context.
package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/0xcro3dile/coopchat-go/internal/domain/entities"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Separators are tried in order; the empty separator is a hard cut.
var Separators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker splits documents into overlapping chunks with stable ids.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker. Sizes are measured in runes.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &Chunker{size: size, overlap: overlap}
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured chunk overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits a document and attaches source metadata to every piece.
func (c *Chunker) Chunk(doc *entities.Document) []entities.Chunk {
	texts := Split(doc.Content, c.size, c.overlap)
	if len(texts) == 0 {
		return nil
	}

	chunks := make([]entities.Chunk, 0, len(texts))
	for i, text := range texts {
		meta := map[string]string{
			entities.MetaSourceFile: doc.Name,
			entities.MetaSourcePath: doc.Path,
			entities.MetaChunkIndex: strconv.Itoa(i),
		}
		if doc.URL != "" {
			meta[entities.MetaSourceURL] = doc.URL
		}
		if doc.Domain != "" {
			meta[entities.MetaDomain] = string(doc.Domain)
		}
		chunks = append(chunks, entities.Chunk{
			ID:         ChunkID(doc.ID, text, i),
			DocumentID: doc.ID,
			Content:    text,
			Index:      i,
			Metadata:   meta,
		})
	}
	return chunks
}

// Split breaks raw text into chunks of at most size runes, preferring
// paragraph breaks, then line breaks, sentence ends, spaces and finally a
// hard cut. Consecutive chunks share up to overlap runes. Deterministic.
func Split(raw string, size, overlap int) []string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	s := splitter{size: size, overlap: overlap}
	return s.split(text, Separators)
}

// ChunkID derives a stable id from the source, content and position.
func ChunkID(documentID, content string, index int) string {
	hash := sha256.Sum256([]byte(documentID + "\x00" + strconv.Itoa(index) + "\x00" + content))
	return hex.EncodeToString(hash[:8])
}

// DocumentID derives the stable id of a source document from its path.
func DocumentID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}

type splitter struct {
	size    int
	overlap int
}

func (s splitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var out, pending []string
	for _, piece := range splitKeep(text, sep) {
		if utf8.RuneCountInString(piece) < s.size {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
		if len(rest) == 0 {
			if t := strings.TrimSpace(piece); t != "" {
				out = append(out, t)
			}
			continue
		}
		out = append(out, s.split(piece, rest)...)
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending)...)
	}
	return out
}

// merge packs small pieces into chunks, carrying the tail of each chunk
// into the next one as overlap.
func (s splitter) merge(pieces []string) []string {
	var docs, current []string
	total := 0
	for _, p := range pieces {
		l := utf8.RuneCountInString(p)
		if total+l > s.size && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.overlap || (total+l > s.size && total > 0) {
				total -= utf8.RuneCountInString(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
	}
	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

// splitKeep splits after each separator so the separator stays with the
// preceding piece. The empty separator splits into runes.
func splitKeep(text, sep string) []string {
	if sep == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
