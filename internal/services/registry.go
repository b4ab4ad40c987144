package services

import (
	"errors"

	"github.com/shutirtha-roy/tdp-chatbot-project/internal/conversation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/generation"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/topics"
	"github.com/shutirtha-roy/tdp-chatbot-project/internal/vectorstore"
)

// Registry provides access to the chatbot's components.
type Registry interface {
	Knowledge() *vectorstore.Store
	TopicIndex() *vectorstore.Store
	Topics() *topics.Tracker
	Engine() *conversation.Engine
	Sessions() *conversation.Sessions
	Generator() generation.Generator
	Close() error
}

// Options configures the registry with component instances. TopicIndex may
// be nil, in which case added topics are only counted.
type Options struct {
	Knowledge  *vectorstore.Store
	TopicIndex *vectorstore.Store
	Topics     *topics.Tracker
	Engine     *conversation.Engine
	Sessions   *conversation.Sessions
	Generator  generation.Generator
}

type registry struct {
	knowledge  *vectorstore.Store
	topicIndex *vectorstore.Store
	topics     *topics.Tracker
	engine     *conversation.Engine
	sessions   *conversation.Sessions
	generator  generation.Generator
}

// NewRegistry creates a registry. A nil Sessions gets an empty registry.
func NewRegistry(opts Options) Registry {
	if opts.Sessions == nil {
		opts.Sessions = conversation.NewSessions()
	}
	return &registry{
		knowledge:  opts.Knowledge,
		topicIndex: opts.TopicIndex,
		topics:     opts.Topics,
		engine:     opts.Engine,
		sessions:   opts.Sessions,
		generator:  opts.Generator,
	}
}

func (r *registry) Knowledge() *vectorstore.Store    { return r.knowledge }
func (r *registry) TopicIndex() *vectorstore.Store   { return r.topicIndex }
func (r *registry) Topics() *topics.Tracker          { return r.topics }
func (r *registry) Engine() *conversation.Engine     { return r.engine }
func (r *registry) Sessions() *conversation.Sessions { return r.sessions }
func (r *registry) Generator() generation.Generator  { return r.generator }

// Close closes both stores.
func (r *registry) Close() error {
	var errs []error
	if r.knowledge != nil {
		errs = append(errs, r.knowledge.Close())
	}
	if r.topicIndex != nil {
		errs = append(errs, r.topicIndex.Close())
	}
	return errors.Join(errs...)
}
