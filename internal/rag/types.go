package rag

// QueryRequest represents a retrieval and answer request.
type QueryRequest struct {
	// Query is the user's question.
	Query string
	// TopK is the number of chunks to retrieve. Zero or negative selects DefaultTopK.
	TopK int
	// Filters restricts retrieval to chunks whose metadata matches every key.
	// A list value matches any of its elements.
	Filters map[string]any
}

// RetrievedChunk is one chunk used as context for the answer.
type RetrievedChunk struct {
	// Text is the chunk text.
	Text string
	// Score is the distance between the query and the chunk; lower is closer.
	Score float64
	// Metadata is the metadata stored with the chunk vector.
	Metadata map[string]any
}

// QueryResponse represents the result of a query.
type QueryResponse struct {
	// Answer is the generated answer.
	Answer string
	// Context holds the retrieved chunks, closest first.
	Context []RetrievedChunk
}
