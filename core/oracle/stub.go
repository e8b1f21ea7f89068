package oracle

import (
	"context"
	"sync"

	ferrors "fibre-cost/internal/errors"
)

// Reply is one scripted oracle answer
type Reply struct {
	JSON map[string]any
	Text string
	Err  error
}

// Stub is a deterministic, scripted oracle. Each prompt kind has its own
// queue of replies; the last reply repeats once the queue is drained, and a
// kind with no script fails so the caller takes its fallback.
type Stub struct {
	mu        sync.Mutex
	judge     map[Kind][]Reply
	narrate   map[Kind][]Reply
	calls     map[Kind]int
	lastInput map[Kind]string
}

// NewStub creates an empty stub
func NewStub() *Stub {
	return &Stub{
		judge:     make(map[Kind][]Reply),
		narrate:   make(map[Kind][]Reply),
		calls:     make(map[Kind]int),
		lastInput: make(map[Kind]string),
	}
}

// Offline returns the stub used when the service runs without a reasoning
// provider: every output validation passes, every other stage falls back.
func Offline() *Stub {
	return NewStub().OnJudge(KindValidation, Reply{JSON: map[string]any{"status": "VALID"}})
}

// OnJudge scripts structured replies for kind
func (s *Stub) OnJudge(kind Kind, replies ...Reply) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.judge[kind] = append(s.judge[kind], replies...)
	return s
}

// OnNarrate scripts free-text replies for kind
func (s *Stub) OnNarrate(kind Kind, replies ...Reply) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.narrate[kind] = append(s.narrate[kind], replies...)
	return s
}

// Calls returns how many times kind was asked
func (s *Stub) Calls(kind Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}

// LastPrompt returns the most recent prompt text for kind
func (s *Stub) LastPrompt(kind Kind) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastInput[kind]
}

// Judge pops the next structured reply
func (s *Stub) Judge(ctx context.Context, p Prompt) (map[string]any, error) {
	r, err := s.next(ctx, s.judge, p)
	if err != nil {
		return nil, err
	}
	return r.JSON, r.Err
}

// Narrate pops the next text reply
func (s *Stub) Narrate(ctx context.Context, p Prompt) (string, error) {
	r, err := s.next(ctx, s.narrate, p)
	if err != nil {
		return "", err
	}
	return r.Text, r.Err
}

func (s *Stub) next(ctx context.Context, queues map[Kind][]Reply, p Prompt) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[p.Kind]++
	s.lastInput[p.Kind] = p.Text

	queue := queues[p.Kind]
	if len(queue) == 0 {
		return Reply{}, ferrors.Oracle("no scripted reply for "+string(p.Kind), nil)
	}
	r := queue[0]
	if len(queue) > 1 {
		queues[p.Kind] = queue[1:]
	}
	return r, nil
}
