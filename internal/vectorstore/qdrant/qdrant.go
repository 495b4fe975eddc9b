// Package qdrant provides a dual-index store backed by two Qdrant
// collections over its REST API: "<prefix>_catalog" for course name
// resolution and "<prefix>_content" for passage retrieval.
package qdrant

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"courserag/internal/domain"
	"courserag/internal/embedding"
	"courserag/internal/vectorstore"
)

// Config contains connection details for the Qdrant store.
type Config struct {
	URL     string
	APIKey  string
	Prefix  string
	Timeout time.Duration
}

// Store is a minimal REST client to Qdrant. It assumes cosine distance and
// creates the collections if missing.
type Store struct {
	url           string
	apiKey        string
	catalog       string
	content       string
	embedder      embedding.Embedder
	minSimilarity float64
	client        *http.Client
	ready         bool
}

// Option configures the store.
type Option func(*Store)

// WithMinCatalogSimilarity sets a minimum score for course name resolution.
// Zero (the default) preserves the always-return-top-1 behaviour.
func WithMinCatalogSimilarity(min float64) Option {
	return func(s *Store) { s.minSimilarity = min }
}

// New creates the store. Collections are created lazily on first write.
func New(cfg Config, embedder embedding.Embedder, opts ...Option) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "courserag"
	}
	s := &Store{
		url:      strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
		catalog:  prefix + "_catalog",
		content:  prefix + "_content",
		embedder: embedder,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpsertCourse writes one catalog point and the course's content points.
func (s *Store) UpsertCourse(ctx context.Context, course domain.Course, chunks []domain.Chunk, replace bool) (bool, error) {
	exists, err := s.HasCourse(ctx, course.Title)
	if err != nil {
		return false, err
	}
	if exists {
		if !replace {
			return false, nil
		}
		if err := s.deleteCourse(ctx, course.Title); err != nil {
			return false, err
		}
	}

	catVec, err := s.embedder.Embed(ctx, vectorstore.CatalogText(course))
	if err != nil {
		return false, err
	}
	if err := s.ensureCollections(ctx, len(catVec)); err != nil {
		return false, err
	}

	lessons := make(map[int]domain.Lesson, len(course.Lessons))
	for _, l := range course.Lessons {
		lessons[l.Number] = l
	}

	catPoint := map[string]any{
		"id":     pointID(s.catalog, course.Title),
		"vector": catVec,
		"payload": map[string]any{
			"title":      course.Title,
			"instructor": course.Instructor,
			"link":       course.Link,
		},
	}
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.catalog),
		map[string]any{"points": []any{catPoint}}); err != nil {
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
	points := make([]map[string]any, len(chunks))
	for i, ch := range chunks {
		lesson := lessons[ch.LessonNumber]
		points[i] = map[string]any{
			"id":     pointID(s.content, fmt.Sprintf("%s:%d:%d", ch.CourseTitle, ch.LessonNumber, ch.Index)),
			"vector": vectors[i],
			"payload": map[string]any{
				"text":          ch.Text,
				"course_title":  ch.CourseTitle,
				"lesson_number": ch.LessonNumber,
				"lesson_title":  lesson.Title,
				"course_link":   course.Link,
				"lesson_link":   lesson.Link,
				"index":         ch.Index,
			},
		}
	}
	if len(points) > 0 {
		if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.content),
			map[string]any{"points": points}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// HasCourse reports whether a catalog point exists for the exact title.
func (s *Store) HasCourse(ctx context.Context, title string) (bool, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", s.url, s.catalog),
		map[string]any{"filter": matchFilter("title", title), "exact": true}, &resp)
	if err != nil {
		// A missing collection means nothing was ingested yet.
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return resp.Result.Count > 0, nil
}

// ResolveCourseName returns the canonical title of the nearest catalog point.
func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, error) {
	vec, err := s.embedder.Embed(ctx, name)
	if err != nil {
		return "", err
	}
	return s.resolve(ctx, vec)
}

func (s *Store) resolve(ctx context.Context, vec []float64) (string, error) {
	req := map[string]any{
		"vector":       vec,
		"limit":        1,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.catalog), req, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return "", domain.ErrCourseNotFound
		}
		return "", err
	}
	if len(resp.Result) == 0 {
		return "", domain.ErrCourseNotFound
	}
	if s.minSimilarity > 0 && resp.Result[0].Score < s.minSimilarity {
		return "", domain.ErrCourseNotFound
	}
	title, _ := resp.Result[0].Payload["title"].(string)
	return title, nil
}

// Search runs the composed catalog-resolution + filtered content search.
func (s *Store) Search(ctx context.Context, query domain.SearchQuery) (domain.SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query.Text)
	if err != nil {
		return domain.SearchResult{}, err
	}

	var must []map[string]any
	if query.CourseName != "" {
		nameVec, err := s.embedder.Embed(ctx, query.CourseName)
		if err != nil {
			return domain.SearchResult{}, err
		}
		title, err := s.resolve(ctx, nameVec)
		if err != nil {
			return domain.SearchResult{}, err
		}
		must = append(must, matchCondition("course_title", title))
	}
	if query.LessonNumber != nil {
		must = append(must, matchCondition("lesson_number", *query.LessonNumber))
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 5
	}
	req := map[string]any{
		"vector":       vec,
		"limit":        limit,
		"with_payload": true,
	}
	if len(must) > 0 {
		req["filter"] = map[string]any{"must": must}
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err = s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.content), req, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return domain.SearchResult{}, nil
		}
		return domain.SearchResult{}, err
	}

	var result domain.SearchResult
	for _, r := range resp.Result {
		chunk := domain.Chunk{}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		if v, ok := r.Payload["course_title"].(string); ok {
			chunk.CourseTitle = v
		}
		if v, ok := r.Payload["lesson_number"].(float64); ok {
			chunk.LessonNumber = int(v)
		}
		if v, ok := r.Payload["index"].(float64); ok {
			chunk.Index = int(v)
		}
		result.Hits = append(result.Hits, domain.Hit{Chunk: chunk, Score: r.Score})
		result.Sources = append(result.Sources, domain.SourceLabel(chunk.CourseTitle, chunk.LessonNumber))
	}
	return result, nil
}

// CourseTitles scrolls the catalog and lists its canonical titles.
func (s *Store) CourseTitles(ctx context.Context) ([]string, error) {
	req := map[string]any{"limit": 1000, "with_payload": true}
	var resp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.catalog), req, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	var titles []string
	for _, p := range resp.Result.Points {
		if t, ok := p.Payload["title"].(string); ok {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// ChunkCount reports the size of the content collection.
func (s *Store) ChunkCount(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", s.url, s.content),
		map[string]any{"exact": true}, &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return 0, nil
		}
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Store) deleteCourse(ctx context.Context, title string) error {
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.catalog),
		map[string]any{"filter": matchFilter("title", title)}, nil); err != nil {
		return err
	}
	return s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.content),
		map[string]any{"filter": matchFilter("course_title", title)}, nil)
}

func (s *Store) ensureCollections(ctx context.Context, dimension int) error {
	if s.ready {
		return nil
	}
	if dimension <= 0 {
		return fmt.Errorf("invalid vector dimension: %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	for _, coll := range []string{s.catalog, s.content} {
		// Qdrant returns 200 if the collection already exists with the same
		// schema; a conflict propagates.
		if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, coll), body); err != nil {
			var se *statusError
			if errors.As(err, &se) && se.code == http.StatusConflict {
				continue
			}
			return err
		}
	}
	s.ready = true
	return nil
}

func matchFilter(key string, value any) map[string]any {
	return map[string]any{"must": []map[string]any{matchCondition(key, value)}}
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{"key": key, "match": map[string]any{"value": value}}
}

// pointID derives a deterministic UUID-shaped point ID, since Qdrant only
// accepts UUIDs or unsigned integers.
func pointID(parts ...string) string {
	h := sha1.Sum([]byte(strings.Join(parts, "\x00")))
	return fmt.Sprintf("%x-%x-%x-%x-%x", h[0:4], h[4:6], h[6:8], h[8:10], h[10:16])
}

type statusError struct {
	code   int
	status string
	url    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant request %s failed: %s", e.url, e.status)
}

func (s *Store) putJSON(ctx context.Context, url string, body any) error {
	return s.do(ctx, http.MethodPut, url, body, nil)
}

func (s *Store) postJSON(ctx context.Context, url string, body any, out any) error {
	return s.do(ctx, http.MethodPost, url, body, out)
}

func (s *Store) do(ctx context.Context, method, url string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, status: resp.Status, url: url}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
