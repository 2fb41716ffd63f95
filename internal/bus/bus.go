package bus

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MessageType is the closed tag the bus dispatches on. Every
// (MessageType → response type) pair is fixed at registration time
// against a known AgentName.
type MessageType string

const (
	MsgShelterMatch       MessageType = "shelter.match"
	MsgTransportSchedule  MessageType = "transport.schedule"
	MsgResourceCoordinate MessageType = "resource.coordinate"
	MsgPharmacyPrep       MessageType = "pharmacy.prep"
	MsgEligibilityCheck   MessageType = "eligibility.check"
	MsgSocialWorkerAssign MessageType = "social_worker.assign"
	MsgWorkflowUpdate     MessageType = "analytics.workflow_update"
)

// Handler processes one request for a given MessageType and returns a
// typed response or an error. Handlers are stateless: all state lives
// in the request or is fetched from the store/cache/voice caller the
// handler closes over.
type Handler func(ctx context.Context, request any) (any, error)

// RemoteError is what a handler panic or returned error becomes at the
// bus boundary: the coordinator only ever sees RemoteError or
// TimeoutError crossing back from Call.
type RemoteError struct {
	Agent   AgentName
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error from %s (%s): %s", e.Agent, e.Kind, e.Message)
}

// TimeoutError reports that a Call's deadline elapsed before the handler
// returned.
type TimeoutError struct {
	Agent   AgentName
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call to %s timed out after %s", e.Agent, e.Timeout)
}

// ConversationEntry is one in-memory record of an agent-to-agent message,
// used for observability only.
type ConversationEntry struct {
	ConversationID string
	FromAgent      string
	ToAgent        AgentName
	MessageType    MessageType
	Content        any
	Response       any
	Status         string // issued, delivered, completed, timeout, error
	IssuedAt       time.Time
	CompletedAt    time.Time
}

// Bus is the agent registry and typed dispatch layer. It is safe for
// concurrent use.
type Bus struct {
	handlers *baseRegistry[Handler]

	convMu        sync.Mutex
	conversations []ConversationEntry
	maxLog        int
}

// New constructs an empty Bus. maxLog bounds the in-memory conversation
// log; 0 selects a sensible default.
func New(maxLog int) *Bus {
	if maxLog <= 0 {
		maxLog = 1000
	}
	return &Bus{handlers: newBaseRegistry[Handler](), maxLog: maxLog}
}

// Register binds an AgentName to its Handler. Called once at startup by
// the engine constructor; there is no import-time self-registration.
func (b *Bus) Register(name AgentName, h Handler) error {
	return b.handlers.Register(name, h)
}

// Call issues a synchronous-style request to agent, enforcing timeout. It
// is the coordinator's "call remote agent with timeout and structured
// response" primitive. Within one case, calls the coordinator
// issues are serial unless explicitly run via a parallel batch
// (internal/workflow's step 6/7 fan-out) by the caller issuing concurrent
// Call invocations.
func (b *Bus) Call(ctx context.Context, from string, agent AgentName, msgType MessageType, request any, timeout time.Duration) (any, error) {
	handler, ok := b.handlers.Get(agent)
	if !ok {
		return nil, &RemoteError{Agent: agent, Kind: "unregistered", Message: "no handler registered"}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entry := ConversationEntry{
		ConversationID: fmt.Sprintf("%s-%d", agent, time.Now().UnixNano()),
		FromAgent:      from,
		ToAgent:        agent,
		MessageType:    msgType,
		Content:        request,
		Status:         "issued",
		IssuedAt:       time.Now(),
	}

	type result struct {
		resp any
		err  error
	}
	resultCh := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- result{nil, &RemoteError{Agent: agent, Kind: "panic", Message: fmt.Sprintf("%v", r)}}
			}
		}()
		resp, err := handler(callCtx, request)
		resultCh <- result{resp, err}
	}()

	select {
	case res := <-resultCh:
		entry.CompletedAt = time.Now()
		if res.err != nil {
			entry.Status = "error"
			b.logConversation(entry)
			if re, ok := res.err.(*RemoteError); ok {
				return nil, re
			}
			return nil, &RemoteError{Agent: agent, Kind: "handler_error", Message: res.err.Error()}
		}
		entry.Status = "completed"
		entry.Response = res.resp
		b.logConversation(entry)
		return res.resp, nil
	case <-callCtx.Done():
		entry.Status = "timeout"
		entry.CompletedAt = time.Now()
		b.logConversation(entry)
		return nil, &TimeoutError{Agent: agent, Timeout: timeout}
	}
}

// Notify is the one-way fan-out primitive: it delivers a message to agent
// without waiting for a reply, used for WorkflowUpdate events consumed by
// the analytics agent. Errors and panics are logged to the conversation
// log, not returned, since there is no caller to return them to.
func (b *Bus) Notify(from string, agent AgentName, msgType MessageType, message any) {
	handler, ok := b.handlers.Get(agent)
	if !ok {
		return
	}
	entry := ConversationEntry{
		ConversationID: fmt.Sprintf("%s-%d", agent, time.Now().UnixNano()),
		FromAgent:      from,
		ToAgent:        agent,
		MessageType:    msgType,
		Content:        message,
		Status:         "issued",
		IssuedAt:       time.Now(),
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				entry.Status = "error"
				entry.CompletedAt = time.Now()
				b.logConversation(entry)
			}
		}()
		_, err := handler(context.Background(), message)
		entry.CompletedAt = time.Now()
		if err != nil {
			entry.Status = "error"
		} else {
			entry.Status = "completed"
		}
		b.logConversation(entry)
	}()
}

func (b *Bus) logConversation(entry ConversationEntry) {
	b.convMu.Lock()
	defer b.convMu.Unlock()
	b.conversations = append(b.conversations, entry)
	if len(b.conversations) > b.maxLog {
		b.conversations = b.conversations[len(b.conversations)-b.maxLog:]
	}
}

// Conversations returns a snapshot of the in-memory conversation log.
func (b *Bus) Conversations() []ConversationEntry {
	b.convMu.Lock()
	defer b.convMu.Unlock()
	out := make([]ConversationEntry, len(b.conversations))
	copy(out, b.conversations)
	return out
}
