package chunker

import (
	"errors"
	"os"
	"regexp"
	"strconv"
	"strings"

	"courserag/internal/domain"
)

var (
	lessonHeaderRe = regexp.MustCompile(`(?i)^Lesson\s+(\d+):\s*(.*)$`)
	lessonLinkRe   = regexp.MustCompile(`(?i)^Lesson Link:\s*(.*)$`)
)

// ParseFile reads a course document from disk and parses it.
func (p *Processor) ParseFile(path string) (domain.Course, []domain.Chunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Course{}, nil, err
	}
	course, chunks, err := p.ParseDocument(string(data))
	if err != nil {
		var pe *domain.ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
	}
	return course, chunks, err
}

// ParseDocument parses a course transcript into its header record plus an
// ordered sequence of overlap-chunked passages.
//
// The document starts with a metadata block (Course Title required, Course
// Link and Course Instructor optional), followed by lesson blocks introduced
// by "Lesson <N>: <title>" lines. A line that merely resembles a lesson
// header but does not match is treated as body text of the current lesson.
func (p *Processor) ParseDocument(content string) (domain.Course, []domain.Chunk, error) {
	lines := strings.Split(content, "\n")

	course, rest, err := parseHeader(lines)
	if err != nil {
		return domain.Course{}, nil, err
	}

	var chunks []domain.Chunk
	var body []string
	var current *domain.Lesson
	inLesson := false

	flush := func() {
		if !inLesson {
			body = body[:0]
			return
		}
		text := strings.TrimSpace(strings.Join(body, "\n"))
		body = body[:0]
		course.Lessons = append(course.Lessons, *current)
		if text == "" {
			// Lesson with no body: keep it in the lesson list, emit nothing.
			return
		}
		for i, piece := range p.chunk(text) {
			chunks = append(chunks, domain.Chunk{
				Text:         piece,
				CourseTitle:  course.Title,
				LessonNumber: current.Number,
				Index:        i,
			})
		}
	}

	for i := 0; i < len(rest); i++ {
		line := rest[i]
		if m := lessonHeaderRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			flush()
			num, _ := strconv.Atoi(m[1])
			current = &domain.Lesson{Number: num, Title: strings.TrimSpace(m[2])}
			inLesson = true
			if i+1 < len(rest) {
				if lm := lessonLinkRe.FindStringSubmatch(strings.TrimSpace(rest[i+1])); lm != nil {
					current.Link = strings.TrimSpace(lm[1])
					i++
				}
			}
			continue
		}
		body = append(body, line)
	}
	flush()

	return course, chunks, nil
}

// parseHeader consumes the leading metadata block and returns the remaining
// lines. The title line is required.
func parseHeader(lines []string) (domain.Course, []string, error) {
	var course domain.Course
	i := 0
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		switch {
		case hasPrefixFold(line, "Course Title:"):
			course.Title = strings.TrimSpace(line[len("Course Title:"):])
		case hasPrefixFold(line, "Course Link:"):
			course.Link = strings.TrimSpace(line[len("Course Link:"):])
		case hasPrefixFold(line, "Course Instructor:"):
			course.Instructor = strings.TrimSpace(line[len("Course Instructor:"):])
		default:
			// First non-metadata line ends the header block.
			if course.Title == "" {
				return domain.Course{}, nil, &domain.ParseError{Reason: "missing Course Title line"}
			}
			return course, lines[i:], nil
		}
	}
	if course.Title == "" {
		return domain.Course{}, nil, &domain.ParseError{Reason: "missing Course Title line"}
	}
	return course, nil, nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
