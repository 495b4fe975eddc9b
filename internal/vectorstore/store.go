// Package vectorstore defines the dual-index semantic store: a catalog index
// with one entry per course, used only for name resolution, and a content
// index with one entry per chunk, used for passage retrieval.
package vectorstore

import (
	"context"
	"fmt"

	"courserag/internal/domain"
)

// Store maintains the two semantic collections and exposes the composed
// search operation. Implementations own an embedding.Embedder; all query
// operations take raw text.
type Store interface {
	// UpsertCourse writes one catalog entry and one content entry per chunk.
	// Idempotent by course title: when the title already exists the call is a
	// no-op unless replace is set, in which case all prior entries for that
	// title are deleted first. Returns whether anything was written.
	UpsertCourse(ctx context.Context, course domain.Course, chunks []domain.Chunk, replace bool) (bool, error)

	// HasCourse reports whether a catalog entry exists for the exact title.
	// Lets the ingestion path skip re-embedding unchanged courses.
	HasCourse(ctx context.Context, title string) (bool, error)

	// ResolveCourseName maps a free-form course reference to the canonical
	// title of the nearest catalog entry. The only failure is an empty
	// catalog (domain.ErrCourseNotFound); no similarity threshold gates the
	// lookup, so a weak top-1 match is still returned and callers must not
	// assume semantic closeness.
	ResolveCourseName(ctx context.Context, name string) (string, error)

	// Search resolves the query's course name (if any) and runs a ranked
	// nearest-neighbour search over the content index, restricted by
	// equality on the resolved title and the lesson number. No matches is an
	// empty result, not an error.
	Search(ctx context.Context, query domain.SearchQuery) (domain.SearchResult, error)

	// CourseTitles lists the catalog's canonical titles.
	CourseTitles(ctx context.Context) ([]string, error)

	// ChunkCount reports the size of the content index.
	ChunkCount(ctx context.Context) (int, error)
}

// CatalogText is the embedding input for a course's catalog entry.
func CatalogText(course domain.Course) string {
	if course.Instructor == "" {
		return course.Title
	}
	return fmt.Sprintf("%s by %s", course.Title, course.Instructor)
}
