// Package service wires the retrieval pipeline together: document ingestion
// on the write path, the orchestration loop on the read path.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"courserag/internal/chunker"
	"courserag/internal/domain"
	"courserag/internal/embedding"
	"courserag/internal/orchestrator"
	"courserag/internal/session"
	"courserag/internal/summarizer"
	"courserag/internal/vectorstore"
)

// IngestReport summarizes one folder ingestion.
type IngestReport struct {
	Courses  int
	Chunks   int
	Skipped  int
	Overview string
}

// RAGService is the application core: it owns the ingestion pipeline and
// answers queries through the orchestration loop.
type RAGService struct {
	processor  *chunker.Processor
	embedder   embedding.Embedder
	store      vectorstore.Store
	loop       *orchestrator.Loop
	sessions   *session.Manager
	summarizer *summarizer.FrequencySummarizer
}

// New assembles the service.
func New(processor *chunker.Processor, embedder embedding.Embedder, store vectorstore.Store, loop *orchestrator.Loop, sessions *session.Manager) *RAGService {
	return &RAGService{
		processor:  processor,
		embedder:   embedder,
		store:      store,
		loop:       loop,
		sessions:   sessions,
		summarizer: summarizer.NewFrequencySummarizer(),
	}
}

// AddCourseFolder ingests every .txt course document in dir. Documents with
// malformed metadata are logged and skipped; the batch continues. Courses
// whose title already exists in the store are skipped without re-embedding
// unless replace is set.
func (s *RAGService) AddCourseFolder(ctx context.Context, dir string, replace bool) (IngestReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return IngestReport{}, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return IngestReport{}, fmt.Errorf("no .txt documents found in %s", dir)
	}

	type parsed struct {
		course domain.Course
		chunks []domain.Chunk
	}
	var docs []parsed
	var corpus []string
	var allText strings.Builder
	report := IngestReport{}

	for _, name := range names {
		path := filepath.Join(dir, name)
		course, chunks, err := s.processor.ParseFile(path)
		if err != nil {
			var pe *domain.ParseError
			if errors.As(err, &pe) {
				log.Printf("ingest: skipping document: %v", pe)
				report.Skipped++
				continue
			}
			return report, err
		}
		docs = append(docs, parsed{course: course, chunks: chunks})
		corpus = append(corpus, vectorstore.CatalogText(course))
		for _, ch := range chunks {
			corpus = append(corpus, ch.Text)
			allText.WriteString(ch.Text)
			allText.WriteString(" ")
		}
	}
	if len(docs) == 0 {
		return report, fmt.Errorf("no parseable course documents in %s", dir)
	}

	// Corpus-prepared embedders (TF-IDF) need the full text before anything
	// can be embedded; remote embedders treat this as a no-op.
	if err := s.embedder.Prepare(ctx, corpus); err != nil {
		return report, err
	}

	for _, d := range docs {
		written, err := s.store.UpsertCourse(ctx, d.course, d.chunks, replace)
		if err != nil {
			return report, err
		}
		if !written {
			report.Skipped++
			continue
		}
		report.Courses++
		report.Chunks += len(d.chunks)
	}

	report.Overview = s.summarizer.Summarize(allText.String(), 3)
	return report, nil
}

// CourseStats reports the catalog size and content index size.
func (s *RAGService) CourseStats(ctx context.Context) (titles []string, chunks int, err error) {
	titles, err = s.store.CourseTitles(ctx)
	if err != nil {
		return nil, 0, err
	}
	chunks, err = s.store.ChunkCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return titles, chunks, nil
}

// NewSession opens a fresh conversation.
func (s *RAGService) NewSession() string {
	return s.sessions.Create()
}

// Query answers one question within a session. The exchange is recorded so
// follow-up questions see it as history.
func (s *RAGService) Query(ctx context.Context, sessionID, question string) (string, []string, error) {
	history := s.sessions.History(sessionID)
	answer, sources, err := s.loop.Run(ctx, question, history)
	if err != nil {
		return "", nil, err
	}
	s.sessions.AddExchange(sessionID, question, answer)
	return answer, sources, nil
}
