// Package services wires the chatbot's components together and exposes the
// operations the HTTP API and the CLI call: Ask, AddDocuments, AddTopics and
// SimilarTopics.
//
// Use NewRegistry to hold the opened components, then NewChatbot to get the
// operations on top of them. The registry owns the stores; Close releases
// them.
package services
