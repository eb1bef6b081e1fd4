package models

const (
	DefaultChunkSize    = 1000 // characters
	DefaultChunkOverlap = 200  // characters
	DefaultTopK         = 4
	DefaultBatchSize    = 100 // index upsert batch limit
	PreviewLength       = 150
	PreviewEllipsis     = "..."
)

const SystemPrompt = "You are a helpful assistant. Use the provided context to answer the query."

var AnswerPromptTemplate = `Based on the following context from the uploaded documents, please answer the question.
If the answer cannot be found in the context, please say so.

Context:
%s

Question: %s

Please provide a clear and accurate answer based solely on the provided context.`
