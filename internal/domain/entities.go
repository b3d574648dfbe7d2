package domain

// NotInContext is the fixed refusal/fallback sentence. Downstream
// consumers match on it byte-for-byte, so it must never be reworded.
const NotInContext = "The information is not available in the provided context."

// Document is an ingested policy document: raw text per page plus any
// tables the extractor detected. Immutable once ingested.
type Document struct {
	ID     string
	Pages  []string
	Tables []Table
}

// Table is an extracted table as ordered rows of cell strings.
type Table struct {
	Page int
	Rows [][]string
}

// ChunkKind tags the content type a chunk was cut from.
type ChunkKind string

const (
	ChunkTable  ChunkKind = "table"
	ChunkClause ChunkKind = "clause"
	ChunkText   ChunkKind = "text"
)

// Chunk is a bounded contiguous span of a document, the atomic unit of
// retrieval. Chunks are created once at ingestion and never mutated;
// Seq preserves original document order.
type Chunk struct {
	ID     string
	DocID  string
	Seq    int
	Kind   ChunkKind
	Page   int
	Start  int // character offset into the source page
	End    int
	Text   string
	Tokens []string
}

// Score names attached to candidates as the pipeline progresses.
const (
	ScoreLexical    = "lexical"
	ScoreVector     = "vector"
	ScoreFused      = "fused"
	ScoreRelevance  = "rerank_relevance"
	ScoreConfidence = "rerank_confidence"
)

// Candidate is a chunk under consideration for one query, carrying the
// scores assigned so far. Transient: rebuilt per question, never shared
// across concurrent pipelines.
type Candidate struct {
	Chunk  Chunk
	Scores map[string]float64
}

func NewCandidate(chunk Chunk) Candidate {
	return Candidate{Chunk: chunk, Scores: make(map[string]float64)}
}

// Score returns the named score, or zero when it was never assigned.
func (c Candidate) Score(name string) float64 {
	return c.Scores[name]
}

// WithScore returns a copy of the candidate with the score set. The
// score map is cloned so stages never mutate a shared candidate.
func (c Candidate) WithScore(name string, value float64) Candidate {
	scores := make(map[string]float64, len(c.Scores)+1)
	for k, v := range c.Scores {
		scores[k] = v
	}
	scores[name] = value
	return Candidate{Chunk: c.Chunk, Scores: scores}
}

// Query is one user question with its transformation state.
type Query struct {
	Text         string
	Hypothetical string // HyDE expansion, empty when generation failed
	InDomain     bool
	Reason       string
}

// Verdict records how the validator disposed of a generated answer.
type Verdict string

const (
	VerdictAccepted  Verdict = "accepted"
	VerdictCorrected Verdict = "corrected"
	VerdictFallback  Verdict = "fallback"
)

// Confidence labels attached by the answer generator.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// Answer is the final product for one question.
type Answer struct {
	Text       string
	Confidence string
	Sources    []string // supporting chunk ids, rank order
	Verdict    Verdict
}

// Posting is one term occurrence record in the lexical index.
type Posting struct {
	ChunkID string
	TF      int
}

// Stats holds per-document corpus statistics used by BM25 scoring.
type Stats struct {
	TotalChunks int
	AvgChunkLen float64
}

// TokenUsage accumulates language-model token consumption across a
// request so it can be reported beside the answers.
type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

func (u *TokenUsage) Add(other TokenUsage) {
	u.Prompt += other.Prompt
	u.Completion += other.Completion
	u.Total += other.Total
}
