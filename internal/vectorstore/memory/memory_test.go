package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courserag/internal/domain"
	"courserag/internal/embedding/tfidf"
)

func introCourse() (domain.Course, []domain.Chunk) {
	course := domain.Course{
		Title:      "Intro to X",
		Instructor: "Ada Lovelace",
		Lessons:    []domain.Lesson{{Number: 0, Title: "Basics"}},
	}
	chunks := []domain.Chunk{
		{Text: "Cats are mammals.", CourseTitle: "Intro to X", LessonNumber: 0, Index: 0},
		{Text: "mammals. Dogs are mammals too.", CourseTitle: "Intro to X", LessonNumber: 0, Index: 1},
	}
	return course, chunks
}

func databaseCourse() (domain.Course, []domain.Chunk) {
	course := domain.Course{
		Title:      "Advanced Databases",
		Instructor: "Edgar Codd",
		Lessons: []domain.Lesson{
			{Number: 1, Title: "Storage"},
			{Number: 2, Title: "Indexes"},
		},
	}
	chunks := []domain.Chunk{
		{Text: "Relations hold tuples of typed attributes.", CourseTitle: "Advanced Databases", LessonNumber: 1, Index: 0},
		{Text: "Indexes speed up selective queries dramatically.", CourseTitle: "Advanced Databases", LessonNumber: 2, Index: 0},
	}
	return course, chunks
}

// newPreparedStore builds a store over a TF-IDF embedder prepared with the
// catalog and content texts of both fixture courses.
func newPreparedStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	emb := tfidf.New()
	corpus := []string{
		"Intro to X by Ada Lovelace",
		"Advanced Databases by Edgar Codd",
		"Cats are mammals.",
		"mammals. Dogs are mammals too.",
		"Relations hold tuples of typed attributes.",
		"Indexes speed up selective queries dramatically.",
	}
	require.NoError(t, emb.Prepare(context.Background(), corpus))
	return New(emb, opts...)
}

func ingestBoth(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	c1, ch1 := introCourse()
	c2, ch2 := databaseCourse()
	written, err := store.UpsertCourse(ctx, c1, ch1, false)
	require.NoError(t, err)
	require.True(t, written)
	written, err = store.UpsertCourse(ctx, c2, ch2, false)
	require.NoError(t, err)
	require.True(t, written)
}

func TestUpsertCourse_Idempotent(t *testing.T) {
	store := newPreparedStore(t)
	ctx := context.Background()
	course, chunks := introCourse()

	written, err := store.UpsertCourse(ctx, course, chunks, false)
	require.NoError(t, err)
	assert.True(t, written)
	before, err := store.ChunkCount(ctx)
	require.NoError(t, err)

	written, err = store.UpsertCourse(ctx, course, chunks, false)
	require.NoError(t, err)
	assert.False(t, written)
	after, err := store.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpsertCourse_Replace(t *testing.T) {
	store := newPreparedStore(t)
	ctx := context.Background()
	course, chunks := introCourse()

	_, err := store.UpsertCourse(ctx, course, chunks, false)
	require.NoError(t, err)

	written, err := store.UpsertCourse(ctx, course, chunks[:1], true)
	require.NoError(t, err)
	assert.True(t, written)

	count, err := store.ChunkCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	titles, err := store.CourseTitles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Intro to X"}, titles)
}

func TestResolveCourseName_EmptyCatalog(t *testing.T) {
	store := New(tfidf.New())
	_, err := store.ResolveCourseName(context.Background(), "anything")
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestResolveCourseName_Typo(t *testing.T) {
	store := newPreparedStore(t)
	ingestBoth(t, store)

	title, err := store.ResolveCourseName(context.Background(), "into to x")
	require.NoError(t, err)
	assert.Equal(t, "Intro to X", title)
}

func TestResolveCourseName_NonEmptyNeverFails(t *testing.T) {
	store := newPreparedStore(t)
	ingestBoth(t, store)

	// No similarity threshold gates resolution: even an unrelated reference
	// resolves to some catalog entry.
	title, err := store.ResolveCourseName(context.Background(), "Nonexistent Course")
	require.NoError(t, err)
	assert.NotEmpty(t, title)
}

func TestResolveCourseName_MinSimilarityDeviation(t *testing.T) {
	store := newPreparedStore(t, WithMinCatalogSimilarity(0.9))
	ingestBoth(t, store)

	_, err := store.ResolveCourseName(context.Background(), "qwzzqk")
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestSearch_ScopedToResolvedCourse(t *testing.T) {
	store := newPreparedStore(t)
	ingestBoth(t, store)

	result, err := store.Search(context.Background(), domain.SearchQuery{
		Text:       "mammals",
		CourseName: "into to x",
		Limit:      5,
	})
	require.NoError(t, err)
	require.False(t, result.Empty())
	for i, hit := range result.Hits {
		assert.Equal(t, "Intro to X", hit.Chunk.CourseTitle)
		assert.Contains(t, hit.Chunk.Text, "mammals")
		assert.Equal(t, "Intro to X - Lesson 0", result.Sources[i])
	}
}

func TestSearch_LessonFilter(t *testing.T) {
	store := newPreparedStore(t)
	ingestBoth(t, store)

	lesson := 2
	result, err := store.Search(context.Background(), domain.SearchQuery{
		Text:         "queries",
		CourseName:   "Advanced Databases",
		LessonNumber: &lesson,
		Limit:        5,
	})
	require.NoError(t, err)
	require.False(t, result.Empty())
	for _, hit := range result.Hits {
		assert.Equal(t, 2, hit.Chunk.LessonNumber)
	}
}

func TestSearch_EmptyResultIsNotError(t *testing.T) {
	store := newPreparedStore(t)
	ingestBoth(t, store)

	result, err := store.Search(context.Background(), domain.SearchQuery{
		Text:       "quantum gravity",
		CourseName: "Intro to X",
		Limit:      5,
	})
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestSearch_EmptyCatalogFailsOnlyWithCourseName(t *testing.T) {
	store := New(tfidf.New())
	_, err := store.Search(context.Background(), domain.SearchQuery{
		Text:       "x",
		CourseName: "Nonexistent Course",
		Limit:      5,
	})
	assert.ErrorIs(t, err, domain.ErrCourseNotFound)
}

func TestSearch_TieBrokenByChunkIndex(t *testing.T) {
	emb := tfidf.New()
	require.NoError(t, emb.Prepare(context.Background(), []string{
		"Twin Course by Nobody", "Same text here again.",
	}))
	store := New(emb)
	ctx := context.Background()
	course := domain.Course{Title: "Twin Course", Lessons: []domain.Lesson{{Number: 1}}}
	chunks := []domain.Chunk{
		{Text: "Same text here again.", CourseTitle: "Twin Course", LessonNumber: 1, Index: 1},
		{Text: "Same text here again.", CourseTitle: "Twin Course", LessonNumber: 1, Index: 0},
	}
	_, err := store.UpsertCourse(ctx, course, chunks, false)
	require.NoError(t, err)

	result, err := store.Search(ctx, domain.SearchQuery{Text: "same text", Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, 0, result.Hits[0].Chunk.Index)
	assert.Equal(t, 1, result.Hits[1].Chunk.Index)
}

func TestSearch_LimitCapsResults(t *testing.T) {
	store := newPreparedStore(t)
	ingestBoth(t, store)

	result, err := store.Search(context.Background(), domain.SearchQuery{Text: "mammals", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Hits, 1)
	assert.Len(t, result.Sources, 1)
}
