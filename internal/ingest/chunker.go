package ingest

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// Chunk is one indexable slice of a document.
type Chunk struct {
	Title   string
	Content string
}

// chunkMarkdown splits a markdown document on headings (levels 1-3), then
// splits any oversized section on paragraph boundaries. The document title
// falls back to the first heading or the file name.
func chunkMarkdown(source []byte, fallbackTitle string, maxChunkSize int) []Chunk {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	type boundary struct {
		title string
		start int
	}
	var boundaries []boundary

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level > 3 {
			return ast.WalkContinue, nil
		}
		if heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		seg := heading.Lines().At(0)
		// Back up from the heading text to the start of its line so the
		// chunk keeps the markdown marker.
		start := bytes.LastIndexByte(source[:seg.Start], '\n') + 1
		boundaries = append(boundaries, boundary{
			title: string(bytes.TrimSpace(seg.Value(source))),
			start: start,
		})
		return ast.WalkSkipChildren, nil
	})

	var sections []Chunk
	if len(boundaries) == 0 {
		sections = []Chunk{{Title: fallbackTitle, Content: string(source)}}
	} else {
		if boundaries[0].start > 0 {
			preamble := strings.TrimSpace(string(source[:boundaries[0].start]))
			if preamble != "" {
				sections = append(sections, Chunk{Title: fallbackTitle, Content: preamble})
			}
		}
		for i, b := range boundaries {
			end := len(source)
			if i+1 < len(boundaries) {
				end = boundaries[i+1].start
			}
			content := strings.TrimSpace(string(source[b.start:end]))
			if content != "" {
				sections = append(sections, Chunk{Title: b.title, Content: content})
			}
		}
	}

	if maxChunkSize <= 0 {
		return sections
	}

	var out []Chunk
	for _, section := range sections {
		out = append(out, splitOversized(section, maxChunkSize)...)
	}
	return out
}

// splitOversized breaks a section on blank lines until every piece fits.
// A single paragraph larger than the limit is kept whole; splitting inside
// a paragraph would cut sentences apart.
func splitOversized(c Chunk, maxChunkSize int) []Chunk {
	if len(c.Content) <= maxChunkSize {
		return []Chunk{c}
	}

	paragraphs := strings.Split(c.Content, "\n\n")
	var out []Chunk
	var b strings.Builder
	flush := func() {
		if content := strings.TrimSpace(b.String()); content != "" {
			out = append(out, Chunk{Title: c.Title, Content: content})
		}
		b.Reset()
	}

	for _, p := range paragraphs {
		if b.Len() > 0 && b.Len()+len(p)+2 > maxChunkSize {
			flush()
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(p)
	}
	flush()
	return out
}
