// Package memory provides an in-memory dual-index store using brute-force
// cosine similarity. Suitable for tests and for corpora that fit in RAM.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"courserag/internal/domain"
	"courserag/internal/embedding"
	"courserag/internal/vectorstore"
)

type catalogEntry struct {
	course domain.Course
	vector []float64
}

type contentEntry struct {
	chunk  domain.Chunk
	vector []float64
}

// Store keeps the catalog and content collections in mutex-guarded slices.
// Reads may run concurrently; ingestion is expected to finish before query
// traffic starts.
type Store struct {
	mu            sync.RWMutex
	embedder      embedding.Embedder
	minSimilarity float64
	catalog       []catalogEntry
	content       []contentEntry
}

// Option configures the store.
type Option func(*Store)

// WithMinCatalogSimilarity sets a minimum cosine similarity for course name
// resolution. Zero (the default) preserves the always-return-top-1 behaviour.
func WithMinCatalogSimilarity(min float64) Option {
	return func(s *Store) { s.minSimilarity = min }
}

// New creates an empty store around the given embedder.
func New(embedder embedding.Embedder, opts ...Option) *Store {
	s := &Store{embedder: embedder}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertCourse writes one catalog entry and the course's content entries.
func (s *Store) UpsertCourse(ctx context.Context, course domain.Course, chunks []domain.Chunk, replace bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.catalogIndex(course.Title); idx >= 0 {
		if !replace {
			return false, nil
		}
		s.deleteCourseLocked(course.Title)
	}

	catVec, err := s.embedder.Embed(ctx, vectorstore.CatalogText(course))
	if err != nil {
		return false, err
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return false, err
	}

	s.catalog = append(s.catalog, catalogEntry{course: course, vector: catVec})
	for i, ch := range chunks {
		s.content = append(s.content, contentEntry{chunk: ch, vector: vectors[i]})
	}
	return true, nil
}

// HasCourse reports whether a catalog entry exists for the exact title.
func (s *Store) HasCourse(_ context.Context, title string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogIndex(title) >= 0, nil
}

// ResolveCourseName returns the canonical title of the nearest catalog entry.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	if s.catalogEmpty() {
		return "", domain.ErrCourseNotFound
	}
	vec, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(vec)
}

func (s *Store) catalogEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.catalog) == 0
}

func (s *Store) resolveLocked(vec []float64) (string, error) {
	if len(s.catalog) == 0 {
		return "", domain.ErrCourseNotFound
	}
	best := 0
	bestScore := math.Inf(-1)
	for i, e := range s.catalog {
		if score := cosine(vec, e.vector); score > bestScore {
			best, bestScore = i, score
		}
	}
	if s.minSimilarity > 0 && bestScore < s.minSimilarity {
		return "", domain.ErrCourseNotFound
	}
	return s.catalog[best].course.Title, nil
}

// Search runs the composed catalog-resolution + filtered content search.
func (s *Store) Search(ctx context.Context, query domain.SearchQuery) (domain.SearchResult, error) {
	courseTitle := ""
	if query.CourseName != "" {
		title, err := s.ResolveCourseName(ctx, query.CourseName)
		if err != nil {
			return domain.SearchResult{}, err
		}
		courseTitle = title
	}

	vec, err := s.embedder.Embed(ctx, query.Text)
	if err != nil {
		return domain.SearchResult{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		entry contentEntry
		score float64
	}
	var matches []scored
	for _, e := range s.content {
		if courseTitle != "" && e.chunk.CourseTitle != courseTitle {
			continue
		}
		if query.LessonNumber != nil && e.chunk.LessonNumber != *query.LessonNumber {
			continue
		}
		score := cosine(vec, e.vector)
		if score <= 0 {
			// No measurable similarity: an empty result, not a weak one.
			continue
		}
		matches = append(matches, scored{entry: e, score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].entry.chunk.Index < matches[j].entry.chunk.Index
	})

	limit := query.Limit
	if limit <= 0 || limit > len(matches) {
		limit = len(matches)
	}
	var result domain.SearchResult
	for _, m := range matches[:limit] {
		result.Hits = append(result.Hits, domain.Hit{Chunk: m.entry.chunk, Score: m.score})
		result.Sources = append(result.Sources, domain.SourceLabel(m.entry.chunk.CourseTitle, m.entry.chunk.LessonNumber))
	}
	return result, nil
}

// CourseTitles lists the catalog's canonical titles in insertion order.
func (s *Store) CourseTitles(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	titles := make([]string, len(s.catalog))
	for i, e := range s.catalog {
		titles[i] = e.course.Title
	}
	return titles, nil
}

// ChunkCount reports the size of the content index.
func (s *Store) ChunkCount(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.content), nil
}

func (s *Store) catalogIndex(title string) int {
	for i, e := range s.catalog {
		if e.course.Title == title {
			return i
		}
	}
	return -1
}

func (s *Store) deleteCourseLocked(title string) {
	catalog := s.catalog[:0]
	for _, e := range s.catalog {
		if e.course.Title != title {
			catalog = append(catalog, e)
		}
	}
	s.catalog = catalog
	content := s.content[:0]
	for _, e := range s.content {
		if e.chunk.CourseTitle != title {
			content = append(content, e)
		}
	}
	s.content = content
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	dot, na, nb := 0.0, 0.0, 0.0
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
