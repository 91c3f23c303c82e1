// Package chat implements grounded question answering: retrieve relevant
// chunks, build a context-restricted prompt, and complete it with the
// local model. Questions the corpus cannot answer get a fixed refusal
// instead of a model call.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/harvali/docchat/internal/domain"
)

const (
	refusalPrefix = "I can only answer questions based on the documents provided. "

	// NoDocumentsReply is returned when the index holds no documents at all.
	NoDocumentsReply = refusalPrefix +
		"No documents have been uploaded yet. Please upload documents first in the Documents tab."

	// NoContextReply is returned when no chunk clears the relevance threshold.
	NoContextReply = refusalPrefix +
		"The information needed to answer this question is not available in the provided documents. " +
		"Please ask questions related to the uploaded documents."
)

const systemPrompt = "You are a helpful assistant that answers questions strictly based on the " +
	"document excerpts provided below. Use only this context. If the context does not contain " +
	"the answer, say that the information is not available in the provided documents.\n\nContext:\n"

// maxHistoryMessages bounds per-conversation memory.
const maxHistoryMessages = 20

// Service answers questions over the indexed corpus with per-conversation
// history. Safe for concurrent use.
type Service struct {
	retriever Retriever
	index     IndexReader
	llm       Completer
	logger    *zap.Logger

	mu            sync.Mutex
	conversations map[string][]domain.ChatMessage
}

// New creates a chat service.
func New(retriever Retriever, index IndexReader, llm Completer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		retriever:     retriever,
		index:         index,
		llm:           llm,
		logger:        logger,
		conversations: make(map[string][]domain.ChatMessage),
	}
}

// Answer is a chat reply with the sources it was grounded in.
type Answer struct {
	ConversationID string
	Reply          string
	Sources        []string
}

// Ask answers a question grounded in the corpus. An empty conversationID
// starts a new conversation. Refusals are recorded in the history like any
// other reply so the transcript stays coherent.
func (s *Service) Ask(ctx context.Context, conversationID, question string) (Answer, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	if s.index.Stats().Documents == 0 {
		s.appendTurn(conversationID, question, NoDocumentsReply)
		return Answer{ConversationID: conversationID, Reply: NoDocumentsReply}, nil
	}

	scored, err := s.retriever.RetrieveTop(ctx, question)
	if err != nil {
		return Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(scored) == 0 {
		s.appendTurn(conversationID, question, NoContextReply)
		return Answer{ConversationID: conversationID, Reply: NoContextReply}, nil
	}

	if err := s.llm.CheckConnection(ctx); err != nil {
		return Answer{}, fmt.Errorf("chat model unavailable: %w", err)
	}

	messages := s.buildMessages(conversationID, question, scored)

	reply, err := s.llm.Complete(ctx, messages)
	if err != nil {
		return Answer{}, fmt.Errorf("complete chat: %w", err)
	}

	s.appendTurn(conversationID, question, reply)

	s.logger.Debug("Chat answered",
		zap.String("conversation_id", conversationID),
		zap.Int("context_chunks", len(scored)))

	return Answer{
		ConversationID: conversationID,
		Reply:          reply,
		Sources:        uniqueSources(scored),
	}, nil
}

// History returns a copy of a conversation's transcript.
func (s *Service) History(conversationID string) ([]domain.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.conversations[conversationID]
	if !ok {
		return nil, false
	}
	out := make([]domain.ChatMessage, len(history))
	copy(out, history)
	return out, true
}

// Clear forgets a conversation.
func (s *Service) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
}

// CheckConnection reports whether the chat model host is reachable.
func (s *Service) CheckConnection(ctx context.Context) error {
	return s.llm.CheckConnection(ctx)
}

// buildMessages assembles the prompt: context-bearing system message,
// prior turns, then the new question.
func (s *Service) buildMessages(conversationID, question string, scored []domain.ScoredChunk) []domain.ChatMessage {
	blocks := make([]string, len(scored))
	for i, c := range scored {
		blocks[i] = fmt.Sprintf("[From %s]:\n%s", c.Source, c.Content)
	}

	s.mu.Lock()
	history := s.conversations[conversationID]
	s.mu.Unlock()

	messages := make([]domain.ChatMessage, 0, len(history)+2)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleSystem,
		Content: systemPrompt + strings.Join(blocks, "\n\n"),
	})
	messages = append(messages, history...)
	messages = append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: question,
	})

	return messages
}

func (s *Service) appendTurn(conversationID, question, reply string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.conversations[conversationID],
		domain.ChatMessage{Role: domain.RoleUser, Content: question},
		domain.ChatMessage{Role: domain.RoleAssistant, Content: reply},
	)
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	s.conversations[conversationID] = history
}

// uniqueSources returns source filenames in order of first appearance.
func uniqueSources(scored []domain.ScoredChunk) []string {
	seen := make(map[string]bool, len(scored))
	sources := make([]string, 0, len(scored))
	for _, c := range scored {
		if seen[c.Source] {
			continue
		}
		seen[c.Source] = true
		sources = append(sources, c.Source)
	}
	return sources
}
