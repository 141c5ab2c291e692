// Package composer turns ranked retrieval results into a grounding system
// prompt and the parallel source-citation metadata shown to the user.
package composer

import (
	"fmt"
	"math"
	"strings"

	"github.com/kalambet/docchat/internal/retrieval"
)

// Source describes one cited excerpt. SourceIndex is 1-based and matches the
// [Source N] numbering embedded in the system prompt.
type Source struct {
	SourceIndex  int     `json:"sourceIndex"`
	DocumentName string  `json:"documentName"`
	ChunkIndex   int     `json:"chunkIndex"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
}

const noGroundingPrompt = `You are a helpful AI assistant. The user has uploaded documents to a knowledge base, but no relevant content was found for this query.

Answer to the best of your ability, and let the user know if their question might not be covered by the uploaded documents.

Be concise, helpful, and conversational.`

// BuildSystemPrompt renders the grounding prompt for the given results.
// With no results it instructs the model to answer from general knowledge
// and disclose that nothing relevant was found.
func BuildSystemPrompt(results []retrieval.Result) string {
	if len(results) == 0 {
		return noGroundingPrompt
	}

	blocks := make([]string, len(results))
	for i, res := range results {
		blocks[i] = fmt.Sprintf("[Source %d] (from %q, chunk %d):\n%s",
			i+1, res.Chunk.DocumentName, res.Chunk.ChunkIndex+1, res.Chunk.Content)
	}

	return fmt.Sprintf(`You are a helpful AI assistant that answers questions based on the user's uploaded documents.

Use the following document excerpts to answer the user's question. When you use information from a source, cite it using [Source N] notation.

If the sources don't contain enough information to answer fully, say so honestly and provide what you can from the sources.

Be concise, accurate, and conversational. Format your response using markdown when helpful (lists, bold, code blocks, etc).

## Relevant Document Excerpts

%s

## Instructions
- Answer based on the sources above
- Cite sources using [Source 1], [Source 2], etc.
- Be honest if the sources don't fully answer the question
- Be conversational and helpful`, strings.Join(blocks, "\n\n---\n\n"))
}

// BuildSources returns citation metadata in prompt numbering order.
// Similarity is rounded to two decimals for display.
func BuildSources(results []retrieval.Result) []Source {
	sources := make([]Source, len(results))
	for i, res := range results {
		sources[i] = Source{
			SourceIndex:  i + 1,
			DocumentName: res.Chunk.DocumentName,
			ChunkIndex:   res.Chunk.ChunkIndex,
			Content:      res.Chunk.Content,
			Similarity:   math.Round(res.Similarity*100) / 100,
		}
	}
	return sources
}
