package capability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"courserag/internal/domain"
	"courserag/internal/vectorstore"
)

// SearchName is the capability name presented to the generator.
const SearchName = "search_course_content"

// Search wraps the store's composed search operation. All retrieval-layer
// failures are converted to user-facing text here so the generator always
// receives a response it can reason about.
type Search struct {
	store      vectorstore.Store
	maxResults int
}

// NewSearch creates the search capability. maxResults caps returned passages.
func NewSearch(store vectorstore.Store, maxResults int) *Search {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Search{store: store, maxResults: maxResults}
}

// Schema declares the capability to the generator.
func (s *Search) Schema() Schema {
	return Schema{
		Name:        SearchName,
		Description: "Search course materials with smart course name matching and lesson filtering",
		Properties: map[string]Property{
			"query": {
				Type:        "string",
				Description: "What to search for in course content",
			},
			"course_name": {
				Type:        "string",
				Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
			},
			"lesson_number": {
				Type:        "integer",
				Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
			},
		},
		Required: []string{"query"},
	}
}

// Execute runs the search and formats the outcome.
func (s *Search) Execute(ctx context.Context, args map[string]any) (Result, error) {
	query := domain.SearchQuery{Limit: s.maxResults}
	query.Text, _ = args["query"].(string)
	query.CourseName, _ = args["course_name"].(string)
	if n, ok := intArg(args["lesson_number"]); ok {
		query.LessonNumber = &n
	}

	result, err := s.store.Search(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrCourseNotFound) {
			return Result{Text: fmt.Sprintf("No course found matching '%s'", query.CourseName)}, nil
		}
		return Result{Text: fmt.Sprintf("Search failed: %v", err)}, nil
	}
	if result.Empty() {
		return Result{Text: emptyMessage(query)}, nil
	}

	blocks := make([]string, len(result.Hits))
	for i, hit := range result.Hits {
		blocks[i] = fmt.Sprintf("[%s]\n%s", result.Sources[i], hit.Chunk.Text)
	}
	return Result{
		Text:    strings.Join(blocks, "\n\n"),
		Sources: result.Sources,
	}, nil
}

func emptyMessage(query domain.SearchQuery) string {
	msg := "No relevant content found"
	if query.CourseName != "" {
		msg += fmt.Sprintf(" in course %s", query.CourseName)
	}
	if query.LessonNumber != nil {
		msg += fmt.Sprintf(" in lesson %d", *query.LessonNumber)
	}
	return msg
}

// intArg accepts the numeric shapes JSON decoding produces.
func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
