package chunk

import (
	"fmt"
	"log/slog"
	"strings"
)

// Store is the id-keyed chunk map plus the parent/children index. It is
// built once and never mutated at query time.
type Store struct {
	chunks []*Chunk
	byID   map[string]*Chunk
}

// NewStore indexes the chunks, wires children edges from parent_id, and
// validates the hierarchy. Dangling parents and cycles are structural
// errors fatal to ingestion.
func NewStore(chunks []*Chunk) (*Store, error) {
	s := &Store{
		chunks: chunks,
		byID:   make(map[string]*Chunk, len(chunks)),
	}
	for _, c := range chunks {
		id := c.CanonicalID()
		if id == "" {
			return nil, fmt.Errorf("chunk without id (content %q...)", truncate(c.Content, 40))
		}
		if _, dup := s.byID[id]; dup {
			return nil, fmt.Errorf("duplicate chunk id %q", id)
		}
		s.byID[id] = c
	}

	// Wire children, deduplicating; order follows document order.
	for _, c := range chunks {
		pid := c.Metadata.ParentID
		if pid == "" {
			continue
		}
		parent, ok := s.byID[pid]
		if !ok {
			return nil, fmt.Errorf("chunk %q references unknown parent %q", c.CanonicalID(), pid)
		}
		if !contains(parent.ChildrenIDs, c.CanonicalID()) {
			parent.ChildrenIDs = append(parent.ChildrenIDs, c.CanonicalID())
		}
	}

	if err := s.checkAcyclic(); err != nil {
		return nil, err
	}

	slog.Info("Chunk store built", "chunks", len(chunks))
	return s, nil
}

func (s *Store) checkAcyclic() error {
	for _, c := range s.chunks {
		seen := map[string]struct{}{c.CanonicalID(): {}}
		cur := c
		for cur.Metadata.ParentID != "" {
			next, ok := s.byID[cur.Metadata.ParentID]
			if !ok {
				break
			}
			id := next.CanonicalID()
			if _, cyc := seen[id]; cyc {
				return fmt.Errorf("parent cycle through chunk %q", id)
			}
			seen[id] = struct{}{}
			cur = next
		}
	}
	return nil
}

// Get returns the chunk with the given id.
func (s *Store) Get(id string) (*Chunk, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Len returns the number of chunks.
func (s *Store) Len() int { return len(s.chunks) }

// All returns the chunks in document order. Callers must not mutate.
func (s *Store) All() []*Chunk { return s.chunks }

// Contents returns every chunk's content in document order, aligned with
// All(). The sparse index is built over exactly this slice.
func (s *Store) Contents() []string {
	out := make([]string, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = c.Content
	}
	return out
}

// Index returns the document-order position of a chunk id, or -1.
func (s *Store) Index(id string) int {
	for i, c := range s.chunks {
		if c.CanonicalID() == id {
			return i
		}
	}
	return -1
}

// At returns the chunk at a document-order position.
func (s *Store) At(i int) *Chunk {
	if i < 0 || i >= len(s.chunks) {
		return nil
	}
	return s.chunks[i]
}

// ByContent resolves a chunk by exact content match. Used as a fallback
// when a dense hit's payload carries no usable id.
func (s *Store) ByContent(content string) (*Chunk, bool) {
	for _, c := range s.chunks {
		if c.Content == content {
			return c, true
		}
	}
	return nil, false
}

// Parents walks parent_id up to maxLevels, closest first.
func (s *Store) Parents(c *Chunk, maxLevels int) []*Chunk {
	var parents []*Chunk
	cur := c
	for i := 0; i < maxLevels; i++ {
		pid := cur.Metadata.ParentID
		if pid == "" {
			break
		}
		parent, ok := s.byID[pid]
		if !ok {
			break
		}
		parents = append(parents, parent)
		cur = parent
	}
	return parents
}

// Children returns the direct children in document order.
func (s *Store) Children(c *Chunk) []*Chunk {
	children := make([]*Chunk, 0, len(c.ChildrenIDs))
	for _, id := range c.ChildrenIDs {
		if child, ok := s.byID[id]; ok {
			children = append(children, child)
		}
	}
	return children
}

// Siblings returns up to max children of the parent excluding the chunk
// itself.
func (s *Store) Siblings(c *Chunk, max int) []*Chunk {
	pid := c.Metadata.ParentID
	if pid == "" {
		return nil
	}
	parent, ok := s.byID[pid]
	if !ok {
		return nil
	}
	self := c.CanonicalID()
	var siblings []*Chunk
	for _, id := range parent.ChildrenIDs {
		if id == self {
			continue
		}
		if sib, ok := s.byID[id]; ok {
			siblings = append(siblings, sib)
			if len(siblings) >= max {
				break
			}
		}
	}
	return siblings
}

// Descendants collects every transitive child, BFS order.
func (s *Store) Descendants(c *Chunk) []*Chunk {
	var out []*Chunk
	queue := append([]string(nil), c.ChildrenIDs...)
	visited := make(map[string]struct{})
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		child, ok := s.byID[id]
		if !ok {
			continue
		}
		out = append(out, child)
		queue = append(queue, child.ChildrenIDs...)
	}
	return out
}

// IsAncestor reports whether a is an ancestor of b, walking at most
// maxDepth parent links.
func (s *Store) IsAncestor(a, b *Chunk, maxDepth int) bool {
	target := a.CanonicalID()
	cur := b
	for i := 0; i < maxDepth; i++ {
		pid := cur.Metadata.ParentID
		if pid == "" {
			return false
		}
		if pid == target {
			return true
		}
		next, ok := s.byID[pid]
		if !ok {
			return false
		}
		cur = next
	}
	return false
}

// Overlaps reports whether one chunk is an ancestor of the other within
// five levels.
func (s *Store) Overlaps(a, b *Chunk) bool {
	return s.IsAncestor(a, b, 5) || s.IsAncestor(b, a, 5)
}

// EnrichedText builds the deterministic embedding input for a chunk:
// title path, a slice of the parent's content, and the chunk content,
// joined with " | ". Re-ingestion yields identical text and therefore
// identical vectors.
func (s *Store) EnrichedText(c *Chunk, parentContextLen, titlePathLevels int) string {
	var parts []string

	var titles []string
	for _, t := range []string{c.Metadata.ChapterTitle, c.Metadata.SectionTitle, c.Metadata.ArticleTitle} {
		if t != "" {
			titles = append(titles, t)
		}
	}
	if len(titles) > 0 {
		if titlePathLevels > 0 && len(titles) > titlePathLevels {
			titles = titles[len(titles)-titlePathLevels:]
		}
		parts = append(parts, strings.Join(titles, " > "))
	}

	if pid := c.Metadata.ParentID; pid != "" {
		if parent, ok := s.byID[pid]; ok && parent.Content != "" {
			parts = append(parts, truncate(parent.Content, parentContextLen))
		}
	}

	parts = append(parts, c.Content)
	return strings.Join(parts, " | ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
