package graph

import (
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"docrag/internal/domain"
	"docrag/internal/port"
)

var (
	titleRe       = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	frontmatterRe = regexp.MustCompile(`(?s)^---\n(.*?)\n---`)
	linkRe        = regexp.MustCompile(`\[([^\]]+)\]\(([^\)]+)\)`)
)

// Builder parses a corpus of markdown files into a link graph keyed by
// root-relative path.
type Builder struct {
	walker port.FileWalker
	reader port.FileReader
}

func NewBuilder(walker port.FileWalker, reader port.FileReader) *Builder {
	return &Builder{walker: walker, reader: reader}
}

// Build walks root and returns the document graph. Unreadable files are
// skipped with a warning. Link sets on the returned nodes reference only
// paths that exist as nodes in the same build.
func (b *Builder) Build(root string) (map[string]domain.Document, error) {
	files, err := b.walker.Walk(root)
	if err != nil {
		return nil, err
	}

	contents := make(map[string]string, len(files))
	for _, f := range files {
		content, err := b.reader.ReadFile(f.Path)
		if err != nil {
			slog.Warn("skipping unreadable document", "path", f.RelPath, "error", err)
			continue
		}
		contents[f.RelPath] = content
	}

	return BuildFromContents(contents), nil
}

// BuildFromContents builds the graph for documents already held in
// memory, keyed by root-relative path. Used where no filesystem is
// available.
func BuildFromContents(contents map[string]string) map[string]domain.Document {
	nodes := make(map[string]*domain.Document, len(contents))
	for relPath, content := range contents {
		doc := Parse(relPath, content)
		nodes[relPath] = &doc
	}

	linkPass(nodes)

	docs := make(map[string]domain.Document, len(nodes))
	for p, doc := range nodes {
		docs[p] = *doc
	}
	return docs
}

// Parse extracts title, metadata and outgoing links from one document.
// Incoming links are filled in by Build once every node exists.
func Parse(relPath, content string) domain.Document {
	meta := extractMetadata(content)
	meta["file_path"] = relPath

	return domain.Document{
		Path:     relPath,
		Title:    extractTitle(content, path.Base(relPath)),
		Content:  content,
		Outgoing: extractLinks(content, relPath),
		Metadata: meta,
	}
}

// linkPass drops outgoing targets that are not nodes in this build and
// mirrors the kept edges as incoming links on their targets.
func linkPass(docs map[string]*domain.Document) {
	for src, doc := range docs {
		kept := doc.Outgoing[:0]
		for _, target := range doc.Outgoing {
			if _, ok := docs[target]; !ok {
				continue
			}
			kept = append(kept, target)
			docs[target].Incoming = append(docs[target].Incoming, src)
		}
		doc.Outgoing = kept
	}
	// Incoming edges accumulate in map order; sort for reproducible output.
	for _, doc := range docs {
		sort.Strings(doc.Incoming)
	}
}

func extractTitle(content, filename string) string {
	if m := titleRe.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}

	name := strings.ReplaceAll(filename, ".md", "")
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	return titleCase(name)
}

func extractMetadata(content string) map[string]string {
	meta := make(map[string]string)
	if !strings.HasPrefix(content, "---") {
		return meta
	}

	m := frontmatterRe.FindStringSubmatch(content)
	if m == nil {
		return meta
	}
	for _, line := range strings.Split(m[1], "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return meta
}

// extractLinks returns the in-corpus link targets of one document as
// root-relative paths, deduplicated in order of first occurrence.
// External URLs, anchor-only references and targets escaping the corpus
// root are dropped.
func extractLinks(content, currentPath string) []string {
	var links []string
	seen := make(map[string]bool)
	dir := path.Dir(currentPath)

	for _, m := range linkRe.FindAllStringSubmatch(content, -1) {
		target := m[2]

		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			continue
		}
		if strings.HasPrefix(target, "#") {
			continue
		}
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		if strings.HasPrefix(target, "/") {
			continue
		}

		resolved := path.Clean(path.Join(dir, target))
		if resolved == ".." || strings.HasPrefix(resolved, "../") {
			continue
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		links = append(links, resolved)
	}

	return links
}

// titleCase uppercases the first letter of every alphabetic run and
// lowercases the rest, so "api_user-guide" becomes "Api User Guide".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			b.WriteRune(r)
			prevLetter = false
		case prevLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(unicode.ToUpper(r))
			prevLetter = true
		}
	}
	return b.String()
}
