package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"policyqa/internal/adapter/parser"
	"policyqa/internal/domain"
	"policyqa/internal/usecase"
)

var (
	askFile      string
	askQuestions []string
	askJSON      bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer questions about a policy document",
	Long: `Ask one or more questions about a policy document. The document is
ingested (or re-used from cache) and each question runs through the full
pipeline: guardrail, query transformation, hybrid retrieval, reranking,
answer generation and validation.

Examples:
  policyqa ask -f policy.pdf -q "What is the grace period for premium payment?"
  policyqa ask -f policy.pdf -q "Is maternity covered?" -q "What are the exclusions?" --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askFile, "file", "f", "", "policy document to question (required)")
	askCmd.Flags().StringArrayVarP(&askQuestions, "question", "q", nil, "question to answer (repeatable, required)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("file")
	askCmd.MarkFlagRequired("question")
}

type askOutput struct {
	Answers []answerOutput `json:"answers"`
	Tokens  int            `json:"total_tokens"`
}

type answerOutput struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Confidence string   `json:"confidence"`
	Verdict    string   `json:"verdict"`
	Sources    []string `json:"sources,omitempty"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(askFile)
	if err != nil {
		return fmt.Errorf("invalid file: %w", err)
	}

	doc, err := parser.NewLoader().Load(path)
	if err != nil {
		return err
	}

	model, err := newLLM(cfg)
	if err != nil {
		return err
	}
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	vectors, err := newVectorStore(cmd.Context(), cfg, embedder.Dimension())
	if err != nil {
		return err
	}

	st, persisted, err := openIndexStore(GetRootDir())
	if err != nil {
		return err
	}
	defer st.Close()

	if reuseIngested(st, doc.ID, cfg.Vector.Provider) {
		logger.Info("document already ingested, reusing index", "doc_id", doc.ID)
	} else {
		if persisted {
			logger.Debug("rebuilding document in persisted index", "doc_id", doc.ID)
		}
		if err := newIngestor(cfg, st, vectors, embedder).Ingest(cmd.Context(), doc); err != nil {
			return err
		}
	}

	answerer := newAnswerer(cfg, st, vectors, embedder, model)
	result, err := answerer.AnswerBatch(cmd.Context(), doc.ID, askQuestions, usecase.BatchOptions{
		Concurrency:      cfg.Answer.Concurrency,
		QuestionDeadline: cfg.Answer.QuestionDeadline.Std(),
	})
	if err != nil {
		return err
	}

	if askJSON {
		return printJSON(askQuestions, result)
	}
	printAnswers(askQuestions, result)
	return nil
}

func printJSON(questions []string, result usecase.BatchResult) error {
	out := askOutput{Tokens: result.Tokens.Total}
	for i, answer := range result.Answers {
		out.Answers = append(out.Answers, answerOutput{
			Question:   questions[i],
			Answer:     answer.Text,
			Confidence: answer.Confidence,
			Verdict:    string(answer.Verdict),
			Sources:    answer.Sources,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printAnswers(questions []string, result usecase.BatchResult) {
	for i, answer := range result.Answers {
		fmt.Printf("Q: %s\n", questions[i])
		fmt.Printf("A: %s\n", answer.Text)
		if answer.Verdict != domain.VerdictFallback {
			fmt.Printf("   (confidence: %s, verdict: %s, sources: %d)\n",
				answer.Confidence, answer.Verdict, len(answer.Sources))
		}
		fmt.Println()
	}
	fmt.Printf("Total tokens used: %d\n", result.Tokens.Total)
}
