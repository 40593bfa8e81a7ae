// Package chunk holds the in-memory legal chunk store and its hierarchy
// index. Chunks are loaded once at startup and read-only afterwards; the
// parent/children graph is the canonical structure for navigation.
package chunk

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Section types in hierarchy order. Depth grows with specificity.
const (
	SectionChuong  = "chuong"
	SectionMuc     = "muc"
	SectionDieu    = "dieu"
	SectionKhoan   = "khoan"
	SectionDiem    = "diem"
	SectionUnknown = "unknown"
)

// Metadata carries the legal position of a chunk. Unknown keys from the
// ingestion file are preserved in Extra and round-trip into vector-store
// payloads unchanged.
type Metadata struct {
	Source       string         `json:"source,omitempty" mapstructure:"source"`
	Chapter      string         `json:"chapter,omitempty" mapstructure:"chapter"`
	ChapterTitle string         `json:"chapter_title,omitempty" mapstructure:"chapter_title"`
	Section      string         `json:"section,omitempty" mapstructure:"section"`
	SectionTitle string         `json:"section_title,omitempty" mapstructure:"section_title"`
	Article      string         `json:"article,omitempty" mapstructure:"article"`
	ArticleTitle string         `json:"article_title,omitempty" mapstructure:"article_title"`
	Clause       string         `json:"clause,omitempty" mapstructure:"clause"`
	Point        string         `json:"point,omitempty" mapstructure:"point"`
	ParentID     string         `json:"parent_id,omitempty" mapstructure:"parent_id"`
	ChunkID      string         `json:"chunk_id,omitempty" mapstructure:"chunk_id"`
	Extra        map[string]any `json:"-" mapstructure:",remain"`
}

// Chunk is a leaf unit of legal text.
type Chunk struct {
	ID          string   `json:"id" mapstructure:"id"`
	Content     string   `json:"content" mapstructure:"content"`
	Metadata    Metadata `json:"metadata" mapstructure:"metadata"`
	ChildrenIDs []string `json:"children_ids,omitempty" mapstructure:"children_ids"`
}

// CanonicalID returns the chunk's id, falling back to metadata chunk_id.
func (c *Chunk) CanonicalID() string {
	if c.ID != "" {
		return c.ID
	}
	return c.Metadata.ChunkID
}

var pointContentRe = regexp.MustCompile(`^[a-zđ]\)`)

// SectionType classifies the chunk's structural level from its metadata,
// falling back to the "a)" content pattern for points.
func (c *Chunk) SectionType() string {
	switch {
	case c.Metadata.Point != "" || pointContentRe.MatchString(strings.ToLower(c.Content)):
		return SectionDiem
	case c.Metadata.Clause != "":
		return SectionKhoan
	case c.Metadata.Article != "":
		return SectionDieu
	case c.Metadata.Section != "":
		return SectionMuc
	case c.Metadata.Chapter != "":
		return SectionChuong
	default:
		return SectionUnknown
	}
}

var depthMap = map[string]int{
	SectionChuong:  1,
	SectionMuc:     2,
	SectionDieu:    3,
	SectionKhoan:   4,
	SectionDiem:    5,
	SectionUnknown: 0,
}

// Depth returns the structural depth (chuong=1 ... diem=5, unknown=0).
func (c *Chunk) Depth() int {
	return depthMap[c.SectionType()]
}

// LegalPath renders the chunk's position like
// "Chuong VI > Muc 2 > Dieu 48 > Khoan 4".
func (c *Chunk) LegalPath() string {
	return FormatLegalPath(c.Metadata)
}

// FormatLegalPath renders a metadata record as a hierarchy path.
func FormatLegalPath(m Metadata) string {
	var parts []string
	if m.Chapter != "" {
		p := "Chuong " + m.Chapter
		if m.ChapterTitle != "" {
			p += ": " + m.ChapterTitle
		}
		parts = append(parts, p)
	}
	if m.Section != "" {
		p := "Muc " + m.Section
		if m.SectionTitle != "" {
			p += ": " + m.SectionTitle
		}
		parts = append(parts, p)
	}
	if m.Article != "" {
		p := "Dieu " + m.Article
		if m.ArticleTitle != "" {
			p += ": " + m.ArticleTitle
		}
		parts = append(parts, p)
	}
	if m.Clause != "" {
		parts = append(parts, "Khoan "+m.Clause)
	}
	if m.Point != "" {
		parts = append(parts, "Diem "+m.Point)
	}
	return strings.Join(parts, " > ")
}

// Payload flattens the chunk into a vector-store payload: content, chunk_id
// and every metadata key, extras included.
func (c *Chunk) Payload() map[string]any {
	payload := map[string]any{
		"content":  c.Content,
		"chunk_id": c.CanonicalID(),
	}
	put := func(k, v string) {
		if v != "" {
			payload[k] = v
		}
	}
	put("source", c.Metadata.Source)
	put("chapter", c.Metadata.Chapter)
	put("chapter_title", c.Metadata.ChapterTitle)
	put("section", c.Metadata.Section)
	put("section_title", c.Metadata.SectionTitle)
	put("article", c.Metadata.Article)
	put("article_title", c.Metadata.ArticleTitle)
	put("clause", c.Metadata.Clause)
	put("point", c.Metadata.Point)
	put("parent_id", c.Metadata.ParentID)
	for k, v := range c.Metadata.Extra {
		payload[k] = v
	}
	return payload
}

// FromPayload decodes a vector-store payload back into a chunk. Numeric
// values are coerced to strings so payloads written by other tooling still
// resolve.
func FromPayload(payload map[string]any) (*Chunk, error) {
	var meta Metadata
	metaDec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &meta,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	rest := make(map[string]any, len(payload))
	for k, v := range payload {
		rest[k] = v
	}
	content, _ := rest["content"].(string)
	delete(rest, "content")
	if err := metaDec.Decode(rest); err != nil {
		return nil, fmt.Errorf("decode payload metadata: %w", err)
	}
	return &Chunk{
		ID:       meta.ChunkID,
		Content:  content,
		Metadata: meta,
	}, nil
}

type chunksFile struct {
	Chunks []rawChunk `json:"chunks"`
}

type rawChunk map[string]any

// LoadFile reads an ingestion file: either a JSON array of chunks or an
// object with a "chunks" key. Metadata values that arrive as numbers are
// coerced to strings.
func LoadFile(path string) ([]*Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chunks file: %w", err)
	}
	return ParseChunks(data)
}

// ParseChunks decodes chunk JSON from a byte slice.
func ParseChunks(data []byte) ([]*Chunk, error) {
	var raws []rawChunk
	if err := json.Unmarshal(data, &raws); err != nil {
		var wrapped chunksFile
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("parse chunks: %w", err)
		}
		raws = wrapped.Chunks
	}
	if len(raws) == 0 {
		return nil, fmt.Errorf("no chunks found")
	}

	chunks := make([]*Chunk, 0, len(raws))
	for i, raw := range raws {
		var c Chunk
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &c,
			WeaklyTypedInput: true,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(map[string]any(raw)); err != nil {
			return nil, fmt.Errorf("decode chunk %d: %w", i, err)
		}
		chunks = append(chunks, &c)
	}
	return chunks, nil
}
