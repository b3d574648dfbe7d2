package reranker

import (
	"strings"

	"policyqa/internal/domain"
)

const chunkSeparator = "\n\n---\n\n"

// BuildContext concatenates ranked candidate texts into the final
// answer context, dropping the lowest-ranked chunks once the character
// budget is exhausted. Returns the context plus the chunk ids that
// made it in, in rank order.
func BuildContext(candidates []domain.Candidate, budgetChars int) (string, []string) {
	if budgetChars <= 0 {
		budgetChars = 14000
	}

	var sb strings.Builder
	var ids []string
	for _, c := range candidates {
		addition := len(c.Chunk.Text)
		if sb.Len() > 0 {
			addition += len(chunkSeparator)
		}
		if sb.Len()+addition > budgetChars {
			if sb.Len() == 0 {
				// A single chunk over budget is still better than an
				// empty context; take its head.
				sb.WriteString(headBytes(c.Chunk.Text, budgetChars))
				ids = append(ids, c.Chunk.ID)
			}
			break
		}
		if sb.Len() > 0 {
			sb.WriteString(chunkSeparator)
		}
		sb.WriteString(c.Chunk.Text)
		ids = append(ids, c.Chunk.ID)
	}
	return sb.String(), ids
}
