package vectorstore

// Document is an immutable piece of background text.
type Document struct {
	// ID is the unique identifier. Generated on insertion when empty.
	ID string `json:"id"`

	// Content is the text that is embedded and returned as context.
	Content string `json:"content"`

	// Metadata holds optional string attributes such as source.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Candidate is a stored document returned by Index.Nearest.
type Candidate struct {
	Document

	// Vector is the stored embedding, needed for diversity ranking.
	Vector []float32

	// Similarity is the relevance to the query (higher = more similar).
	Similarity float32
}

// SeedDocuments returns the documents a fresh knowledge index starts with.
func SeedDocuments() []Document {
	return []Document{
		{Content: "Swinburne University is located in Melbourne, Australia."},
		{Content: "The university offers a wide range of undergraduate and postgraduate programs."},
		{Content: "Swinburne is known for its focus on innovation, entrepreneurship, and technology."},
		{Content: "Swinburne provides various student support services, including counseling and career advice."},
	}
}
