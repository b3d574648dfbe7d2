package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"policyqa/internal/adapter/analyzer"
	"policyqa/internal/domain"
)

// Options holds the size bands per content kind, in approximate LLM
// tokens, plus the character overlap carried between adjacent chunks.
type Options struct {
	TableMinTokens   int
	TableMaxTokens   int
	ClauseMaxTokens  int
	TextMaxTokens    int
	OverlapChars     int
	MinSegmentTokens int
}

// DefaultOptions returns the size bands used for policy documents.
func DefaultOptions() Options {
	return Options{
		TableMinTokens:   200,
		TableMaxTokens:   400,
		ClauseMaxTokens:  1200,
		TextMaxTokens:    1500,
		OverlapChars:     400,
		MinSegmentTokens: 120,
	}
}

// PolicyChunker splits policy documents into retrieval chunks. Clause
// boundaries are respected where detectable; when boundary detection
// finds nothing usable it degrades to fixed-size sliding windows, so
// ingestion never fails on layout.
type PolicyChunker struct {
	tokenizer *analyzer.Tokenizer
	opts      Options
}

func New(tokenizer *analyzer.Tokenizer, opts Options) *PolicyChunker {
	if opts.TableMaxTokens <= 0 {
		opts = DefaultOptions()
	}
	return &PolicyChunker{tokenizer: tokenizer, opts: opts}
}

// segment is a contiguous span of one page with a detected content kind.
type segment struct {
	kind  domain.ChunkKind
	page  int
	start int
	text  string
}

// Numbered clause headings ("3.", "4.2)", "Section 12") and shouted
// headings common in policy wordings.
var (
	clauseHeadingRe = regexp.MustCompile(`^\s*(?:\d+(?:\.\d+)*[\.\)]?\s+[A-Z]|(?:Section|SECTION|Clause|CLAUSE)\s+\d+|ARTICLE\s+\w+)`)
	capsHeadingRe   = regexp.MustCompile(`^[A-Z][A-Z0-9 ,&\-]{7,}$`)
)

// Chunk splits every page and table of the document into ordered,
// append-only chunks. Seq numbering is global across the document.
func (c *PolicyChunker) Chunk(doc domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	seq := 0

	for pageNo, page := range doc.Pages {
		if strings.TrimSpace(page) == "" {
			continue
		}

		segments := c.segmentPage(pageNo, page)
		if len(segments) == 0 {
			segments = []segment{{kind: domain.ChunkText, page: pageNo, start: 0, text: page}}
		}
		segments = c.mergeShortSegments(segments)

		for _, seg := range segments {
			maxTokens := c.opts.TextMaxTokens
			if seg.kind == domain.ChunkClause {
				maxTokens = c.opts.ClauseMaxTokens
			}
			chunks = append(chunks, c.cutSegment(doc.ID, seg, maxTokens, &seq)...)
		}
	}

	for _, table := range doc.Tables {
		chunks = append(chunks, c.chunkTable(doc.ID, table, &seq)...)
	}

	return chunks, nil
}

// segmentPage splits a page at clause boundaries. Lines that look like
// clause headings start a new segment, so a clause is never split from
// its heading.
func (c *PolicyChunker) segmentPage(pageNo int, page string) []segment {
	lines := strings.Split(page, "\n")

	var segments []segment
	var current strings.Builder
	currentKind := domain.ChunkText
	currentStart := 0
	offset := 0

	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			segments = append(segments, segment{
				kind:  currentKind,
				page:  pageNo,
				start: currentStart,
				text:  current.String(),
			})
		}
		current.Reset()
	}

	for _, line := range lines {
		if clauseHeadingRe.MatchString(line) || capsHeadingRe.MatchString(strings.TrimSpace(line)) {
			flush()
			currentKind = domain.ChunkClause
			currentStart = offset
		} else if current.Len() == 0 {
			currentStart = offset
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
		offset += len(line) + 1
	}
	flush()

	return segments
}

// mergeShortSegments folds segments below the minimum size into the
// following segment so tiny fragments never become their own chunks.
func (c *PolicyChunker) mergeShortSegments(segments []segment) []segment {
	if len(segments) <= 1 {
		return segments
	}

	merged := make([]segment, 0, len(segments))
	var carry *segment

	for i := range segments {
		seg := segments[i]
		if carry != nil {
			seg.text = carry.text + "\n" + seg.text
			seg.start = carry.start
			if carry.kind == domain.ChunkClause {
				seg.kind = domain.ChunkClause
			}
			carry = nil
		}
		if c.tokenizer.CountTokens(seg.text) < c.opts.MinSegmentTokens && i < len(segments)-1 {
			carry = &seg
			continue
		}
		merged = append(merged, seg)
	}
	if carry != nil {
		merged = append(merged, *carry)
	}

	return merged
}

// cutSegment slices one segment into chunks within the token band,
// carrying OverlapChars of trailing text into the next chunk so a fact
// on the boundary appears whole in at least one of them.
func (c *PolicyChunker) cutSegment(docID string, seg segment, maxTokens int, seq *int) []domain.Chunk {
	lines := strings.Split(seg.text, "\n")

	var chunks []domain.Chunk
	startLine := 0
	lineOffsets := make([]int, len(lines)+1)
	for i, line := range lines {
		lineOffsets[i+1] = lineOffsets[i] + len(line) + 1
	}

	for startLine < len(lines) {
		endLine := startLine
		currentTokens := 0
		var text strings.Builder

		for endLine < len(lines) {
			lineTokens := c.tokenizer.CountTokens(lines[endLine])
			if currentTokens > 0 && currentTokens+lineTokens > maxTokens {
				break
			}
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(lines[endLine])
			currentTokens += lineTokens
			endLine++
		}

		// A single line exceeding the whole band has no detectable
		// boundaries; fall back to fixed-size windows over it.
		if endLine == startLine {
			start := seg.start + lineOffsets[startLine]
			chunks = append(chunks, c.slidingWindow(docID, seg.kind, seg.page, start, lines[startLine], maxTokens, seq)...)
			startLine = endLine + 1
			continue
		}

		chunkText := text.String()
		if strings.TrimSpace(chunkText) != "" {
			start := seg.start + lineOffsets[startLine]
			chunks = append(chunks, c.newChunk(docID, seg.kind, seg.page, start, start+len(chunkText), chunkText, seq))
		}

		if endLine >= len(lines) {
			break
		}

		overlapLines := c.overlapLineCount(lines, startLine, endLine)
		newStart := endLine - overlapLines
		if newStart <= startLine {
			newStart = startLine + 1
		}
		startLine = newStart
	}

	return chunks
}

// slidingWindow cuts text into fixed-size character windows with the
// configured overlap, snapping window ends back to a space so words
// stay whole.
func (c *PolicyChunker) slidingWindow(docID string, kind domain.ChunkKind, page, offset int, text string, maxTokens int, seq *int) []domain.Chunk {
	maxChars := maxTokens * 4
	step := maxChars - c.opts.OverlapChars
	if step <= 0 {
		step = maxChars
	}

	var chunks []domain.Chunk
	for start := 0; start < len(text); start += step {
		end := start + maxChars
		if end >= len(text) {
			end = len(text)
		} else if idx := strings.LastIndex(text[start:end], " "); idx > maxChars/2 {
			end = start + idx
		}

		window := text[start:end]
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, c.newChunk(docID, kind, page, offset+start, offset+end, window, seq))
		}
		if end == len(text) {
			break
		}
	}
	return chunks
}

// overlapLineCount counts trailing lines worth roughly OverlapChars.
func (c *PolicyChunker) overlapLineCount(lines []string, start, end int) int {
	if c.opts.OverlapChars <= 0 {
		return 0
	}
	overlapLines := 0
	chars := 0
	for i := end - 1; i > start && chars < c.opts.OverlapChars; i-- {
		chars += len(lines[i]) + 1
		overlapLines++
	}
	return overlapLines
}

// chunkTable renders a table into pipe-delimited rows and slices it
// within the table token band. Rows are never split across chunks.
func (c *PolicyChunker) chunkTable(docID string, table domain.Table, seq *int) []domain.Chunk {
	var chunks []domain.Chunk
	var text strings.Builder
	tokens := 0

	flush := func() {
		if strings.TrimSpace(text.String()) == "" {
			return
		}
		chunks = append(chunks, c.newChunk(docID, domain.ChunkTable, table.Page, 0, len(text.String()), text.String(), seq))
		text.Reset()
		tokens = 0
	}

	for _, row := range table.Rows {
		rendered := strings.Join(row, " | ")
		rowTokens := c.tokenizer.CountTokens(rendered)

		if tokens > 0 && tokens+rowTokens > c.opts.TableMaxTokens {
			flush()
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(rendered)
		tokens += rowTokens
	}
	flush()

	// A trailing sliver below the band minimum reads better appended to
	// its predecessor than as a lone chunk.
	if n := len(chunks); n >= 2 {
		last := chunks[n-1]
		if c.tokenizer.CountTokens(last.Text) < c.opts.TableMinTokens {
			prev := chunks[n-2]
			prev.Text = prev.Text + "\n" + last.Text
			prev.End = prev.Start + len(prev.Text)
			prev.Tokens = c.tokenizer.Tokenize(prev.Text)
			chunks[n-2] = prev
			chunks = chunks[:n-1]
		}
	}

	return chunks
}

func (c *PolicyChunker) newChunk(docID string, kind domain.ChunkKind, page, start, end int, text string, seq *int) domain.Chunk {
	chunk := domain.Chunk{
		ID:     chunkID(docID, *seq),
		DocID:  docID,
		Seq:    *seq,
		Kind:   kind,
		Page:   page,
		Start:  start,
		End:    end,
		Text:   text,
		Tokens: c.tokenizer.Tokenize(text),
	}
	*seq++
	return chunk
}

func chunkID(docID string, seq int) string {
	data := fmt.Sprintf("%s:%d", docID, seq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
