package ai

import (
	"context"
	"strings"
)

// AgentSession is an in-process chat agent bound to a single request.
// It keeps a transcript only for its own lifetime and is never shared.
type AgentSession struct {
	client     Client
	model      string
	sampling   Sampling
	transcript []Message
}

// NewAgentSession создает агента с системной персоной.
func NewAgentSession(client Client, model, persona string, sampling Sampling) *AgentSession {
	session := &AgentSession{
		client:   client,
		model:    model,
		sampling: sampling,
	}
	if strings.TrimSpace(persona) != "" {
		session.transcript = append(session.transcript, Message{Role: RoleSystem, Content: persona})
	}
	return session
}

// Ask добавляет реплику пользователя, делает один вызов модели и запоминает ответ.
func (s *AgentSession) Ask(ctx context.Context, message string) (string, error) {
	s.transcript = append(s.transcript, Message{Role: RoleUser, Content: message})

	reply, err := s.client.Chat(ctx, ChatRequest{
		Model:    s.model,
		Messages: append([]Message(nil), s.transcript...),
		Sampling: s.sampling,
	})
	if err != nil {
		return "", err
	}

	s.transcript = append(s.transcript, Message{Role: RoleAssistant, Content: reply})
	return reply, nil
}

// Transcript возвращает копию переписки.
func (s *AgentSession) Transcript() []Message {
	return append([]Message(nil), s.transcript...)
}
