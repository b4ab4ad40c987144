// Package conversation drives retrieval-grounded chat turns.
//
// An Engine answers one query per call: it records the query in the
// session, retrieves the single best matching passage from the knowledge
// index, asks the generation backend for an answer grounded in that
// passage and, in parallel, for three related questions.
//
// # Failure policy
//
// Retrieval is advisory. When the index or the embedder fails, the turn
// continues without context and Answer.Degraded is set. Generation is the
// primary path: any generation failure aborts the turn with an error
// matching generation.ErrGenerationFailed. The user turn stays in the
// session either way.
//
// # Usage
//
//	engine, err := conversation.NewEngine(store, generator, conversation.Config{}, logger)
//	sessions := conversation.NewSessions()
//	session, _ := sessions.Get("")
//	answer, err := engine.Ask(ctx, session, "Where is the university located?")
package conversation
