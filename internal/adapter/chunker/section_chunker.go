package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"docrag/internal/domain"
)

var sectionRe = regexp.MustCompile(`\n##\s+(.+)\n`)

// SectionChunker splits a document along second-level headings, then
// windows oversized section bodies with overlap. Sizes are in characters.
type SectionChunker struct {
	chunkSize int
	overlap   int
}

func NewSectionChunker(chunkSize, overlap int) *SectionChunker {
	return &SectionChunker{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

func (c *SectionChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk

	for i, sect := range splitSections(doc.Content) {
		var pieces []string
		if utf8.RuneCountInString(sect.body) <= c.chunkSize {
			pieces = []string{sect.body}
		} else {
			pieces = c.splitText(sect.body)
		}

		sectionName := sect.title
		if sectionName == "" {
			sectionName = "Introduction"
		}

		for j, piece := range pieces {
			id := ChunkID(doc.Path, i, j)

			text := "# " + doc.Title + "\n\n"
			if sect.title != "" {
				text += "## " + sect.title + "\n\n"
			}
			text += piece

			meta := make(map[string]string, len(doc.Metadata)+3)
			for k, v := range doc.Metadata {
				meta[k] = v
			}
			meta["chunk_id"] = id
			meta["section"] = sectionName
			meta["doc_title"] = doc.Title

			chunks = append(chunks, domain.Chunk{
				ID:       id,
				DocPath:  doc.Path,
				Section:  sectionName,
				Text:     text,
				Metadata: meta,
			})
		}
	}

	return chunks, nil
}

type section struct {
	title string
	body  string
}

// splitSections splits content on "## " headings. Text before the first
// heading becomes an untitled section when non-empty; untitled sections
// shift the indices of the ones that follow.
func splitSections(content string) []section {
	matches := sectionRe.FindAllStringSubmatchIndex(content, -1)

	var sections []section
	pre := content
	if len(matches) > 0 {
		pre = content[:matches[0][0]]
	}
	if trimmed := strings.TrimSpace(pre); trimmed != "" {
		sections = append(sections, section{body: trimmed})
	}

	for i, m := range matches {
		bodyEnd := len(content)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		sections = append(sections, section{
			title: strings.TrimSpace(content[m[2]:m[3]]),
			body:  strings.TrimSpace(content[m[1]:bodyEnd]),
		})
	}

	return sections
}

// splitText windows text into overlapping pieces of at most chunkSize
// characters, preferring to cut at the last sentence boundary inside
// each window.
func (c *SectionChunker) splitText(text string) []string {
	runes := []rune(text)
	var pieces []string
	start := 0

	for start < len(runes) {
		end := start + c.chunkSize

		if end < len(runes) {
			if cut := lastSentenceEnd(runes, start, end); cut > start {
				end = cut + 1
			}
		}

		sliceEnd := end
		if sliceEnd > len(runes) {
			sliceEnd = len(runes)
		}
		pieces = append(pieces, strings.TrimSpace(string(runes[start:sliceEnd])))

		// The start offset must strictly advance even when the sentence
		// cut lands inside the overlap span.
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return pieces
}

// lastSentenceEnd returns the index of the rightmost period followed by
// a space within [start, end), or -1 if there is none.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 2; i >= start; i-- {
		if runes[i] == '.' && runes[i+1] == ' ' {
			return i
		}
	}
	return -1
}

// ChunkID builds the deterministic chunk identifier from the document
// path, section index and split index.
func ChunkID(docPath string, sectionIdx, splitIdx int) string {
	return fmt.Sprintf("%s__chunk_%d_%d", docPath, sectionIdx, splitIdx)
}
