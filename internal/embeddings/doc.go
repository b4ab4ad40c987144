// Package embeddings provides the EmbeddingService behind the vector store.
//
// Providers: OpenAI-compatible APIs through langchaingo (default), FastEmbed
// local ONNX models (cgo builds only), and Text Embeddings Inference over
// HTTP. Every provider reports a stable Name so a persisted index can refuse
// vectors produced by a different model.
package embeddings
