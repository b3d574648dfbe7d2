package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"policyqa/config"
	"policyqa/internal/adapter/parser"
	"policyqa/internal/adapter/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Index policy documents for question answering",
	Long: `Ingest policy documents in the specified directory: extract text and
tables, chunk along clause boundaries, build the lexical index and store
embeddings. The index is stored in .policyqa/index.db within the target
directory.

The ask command reuses this index: with vector.provider: pgvector an
already-ingested document is answered without re-indexing, while the
default in-memory vector store re-ingests into the persisted index so
the lexical and vector sides stay consistent.

Examples:
  policyqa ingest .              # Ingest documents in current directory
  policyqa ingest ./policies     # Ingest a specific directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := GetRootDir()
	if len(args) > 0 {
		var err error
		path, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	files, err := matchDocuments(path, cfg.Ingest.Includes)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no documents matched %v under %s", cfg.Ingest.Includes, path)
	}

	if err := config.EnsureDataDir(path); err != nil {
		return fmt.Errorf("failed to create .policyqa directory: %w", err)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(path))
	if err != nil {
		return fmt.Errorf("failed to open index store: %w", err)
	}
	defer st.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	vectors, err := newVectorStore(cmd.Context(), cfg, embedder.Dimension())
	if err != nil {
		return err
	}

	ingestor := newIngestor(cfg, st, vectors, embedder)
	loader := parser.NewLoader()

	bar := progressbar.Default(int64(len(files)), "ingesting")
	ingested, failed := 0, 0
	for _, file := range files {
		doc, err := loader.Load(file)
		if err != nil {
			failed++
			logger.Warn("skipping document", "file", file, "error", err)
			bar.Add(1)
			continue
		}
		if err := ingestor.Ingest(cmd.Context(), doc); err != nil {
			failed++
			logger.Warn("ingestion failed", "file", file, "error", err)
			bar.Add(1)
			continue
		}
		ingested++
		bar.Add(1)
	}
	bar.Finish()

	fmt.Printf("\nIngested %d document(s)", ingested)
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()
	return nil
}

// matchDocuments resolves the include globs under dir, de-duplicated
// and sorted for stable ingest order.
func matchDocuments(dir string, includes []string) ([]string, error) {
	seen := make(map[string]struct{})
	var files []string

	for _, pattern := range includes {
		matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad include pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			if _, dup := seen[match]; dup {
				continue
			}
			seen[match] = struct{}{}
			files = append(files, match)
		}
	}

	sort.Strings(files)
	return files, nil
}
