package domain

import "fmt"

// Course is the unit of ingestion. The title is its identity: re-ingesting a
// document with the same title is a no-op unless replace mode is requested.
type Course struct {
	Title      string
	Instructor string
	Link       string
	Lessons    []Lesson
}

// Lesson is a numbered section of a course. Numbers are unique within a course
// but not necessarily contiguous.
type Lesson struct {
	Number int
	Title  string
	Link   string
}

// Chunk is the unit of retrieval: a bounded, overlap-linked span of lesson
// text. Index is the chunk's position within its lesson, used for stable
// ordering, never for ranking. Chunks are immutable once written.
type Chunk struct {
	Text         string
	CourseTitle  string
	LessonNumber int
	Index        int
}

// SearchQuery describes one content search. CourseName is free-form and
// resolved fuzzily against the catalog; LessonNumber is an exact filter.
type SearchQuery struct {
	Text         string
	CourseName   string
	LessonNumber *int
	Limit        int
}

// Hit is a matching chunk with its relevance score.
type Hit struct {
	Chunk Chunk
	Score float64
}

// SearchResult holds ranked hits plus a parallel list of human-readable
// source labels for attribution. The caller owns the result.
type SearchResult struct {
	Hits    []Hit
	Sources []string
}

// Empty reports whether the search matched nothing. An empty result is a
// valid outcome, not an error.
func (r SearchResult) Empty() bool { return len(r.Hits) == 0 }

// SourceLabel renders the attribution label for a chunk.
func SourceLabel(courseTitle string, lessonNumber int) string {
	if lessonNumber < 0 {
		return courseTitle
	}
	return fmt.Sprintf("%s - Lesson %d", courseTitle, lessonNumber)
}

// CapabilityCall is a capability invocation selected by the generator.
type CapabilityCall struct {
	Name      string
	Arguments map[string]any
}
