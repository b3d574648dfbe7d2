package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"policyqa/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTextSplitsPagesOnFormFeed(t *testing.T) {
	path := writeFile(t, "policy.txt", "Page one content.\fPage two content.")

	doc, err := NewLoader().Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	require.Equal(t, "Page one content.", doc.Pages[0])
	require.Len(t, doc.ID, 16)
}

func TestLoadEmptyFileIsIngestionError(t *testing.T) {
	path := writeFile(t, "empty.txt", "   \n  ")

	_, err := NewLoader().Load(path)
	require.ErrorIs(t, err, domain.ErrIngestion)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	path := writeFile(t, "policy.docx", "some content")

	_, err := NewLoader().Load(path)
	require.ErrorIs(t, err, domain.ErrIngestion)
	require.False(t, NewLoader().Supported(path))
}

func TestContentHashStableAcrossPaths(t *testing.T) {
	a := writeFile(t, "a.txt", "identical policy wording")
	b := writeFile(t, "b.txt", "identical policy wording")

	docA, err := NewLoader().Load(a)
	require.NoError(t, err)
	docB, err := NewLoader().Load(b)
	require.NoError(t, err)
	require.Equal(t, docA.ID, docB.ID)
}

func TestDetectTables(t *testing.T) {
	text := "Premium schedule below.\n" +
		"| Plan | Sum Insured | Premium |\n" +
		"|------|-------------|---------|\n" +
		"| A | 500000 | 12000 |\n" +
		"| B | 1000000 | 18000 |\n" +
		"No more tables."

	tables := detectTables(0, text)
	require.Len(t, tables, 1)
	require.Len(t, tables[0].Rows, 3, "separator row must be skipped")
	require.Equal(t, []string{"Plan", "Sum Insured", "Premium"}, tables[0].Rows[0])
	require.Equal(t, []string{"B", "1000000", "18000"}, tables[0].Rows[2])
}

func TestSingleTableLineIgnored(t *testing.T) {
	tables := detectTables(0, "prose | with | pipes\nplain prose follows")
	require.Empty(t, tables, "one isolated pipe line is not a table")
}
