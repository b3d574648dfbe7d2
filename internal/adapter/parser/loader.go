package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"policyqa/internal/domain"
)

// Loader reads a policy document from disk into its page texts and
// detected tables. The document id is a content hash so re-ingesting
// the same file under a different path hits the cache.
type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// Supported reports whether the file extension has a loader.
func (l *Loader) Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// Load reads the file at path and returns the extracted document.
func (l *Loader) Load(path string) (domain.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return l.loadPDF(path)
	case ".txt", ".md", ".markdown":
		return l.loadText(path)
	}
	return domain.Document{}, fmt.Errorf("%w: unsupported file type %q", domain.ErrIngestion, filepath.Ext(path))
}

func (l *Loader) loadPDF(path string) (domain.Document, error) {
	id, err := contentID(path)
	if err != nil {
		return domain.Document{}, err
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: open pdf %s: %v", domain.ErrIngestion, path, err)
	}
	defer f.Close()

	doc := domain.Document{ID: id}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			doc.Pages = append(doc.Pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single damaged page should not sink the document.
			doc.Pages = append(doc.Pages, "")
			continue
		}
		doc.Pages = append(doc.Pages, text)
	}

	if isBlank(doc.Pages) {
		return domain.Document{}, fmt.Errorf("%w: no extractable text in %s", domain.ErrIngestion, path)
	}
	for p, text := range doc.Pages {
		doc.Tables = append(doc.Tables, detectTables(p, text)...)
	}
	return doc, nil
}

func (l *Loader) loadText(path string) (domain.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: read %s: %v", domain.ErrIngestion, path, err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return domain.Document{}, fmt.Errorf("%w: %s is empty", domain.ErrIngestion, path)
	}

	sum := sha256.Sum256(raw)
	doc := domain.Document{ID: hex.EncodeToString(sum[:])[:16]}

	// Form feeds delimit pages when present; otherwise the whole file
	// is a single page.
	doc.Pages = strings.Split(string(raw), "\f")
	for p, text := range doc.Pages {
		doc.Tables = append(doc.Tables, detectTables(p, text)...)
	}
	return doc, nil
}

func contentID(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", domain.ErrIngestion, path, err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:16], nil
}

func isBlank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

// detectTables finds pipe-delimited table blocks in page text. Runs of
// two or more consecutive lines with at least two pipe separators are
// treated as one table; markdown separator rows (|---|---|) are
// skipped.
func detectTables(page int, text string) []domain.Table {
	var tables []domain.Table
	var rows [][]string

	flush := func() {
		if len(rows) >= 2 {
			tables = append(tables, domain.Table{Page: page, Rows: rows})
		}
		rows = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "|") < 2 {
			flush()
			continue
		}
		if isSeparatorRow(line) {
			continue
		}
		var cells []string
		for _, cell := range strings.Split(strings.Trim(line, "| \t"), "|") {
			cells = append(cells, strings.TrimSpace(cell))
		}
		rows = append(rows, cells)
	}
	flush()
	return tables
}

func isSeparatorRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		switch r {
		case '|', '-', ':', ' ':
		default:
			return false
		}
	}
	return strings.Contains(trimmed, "-")
}
