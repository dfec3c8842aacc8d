package queue

import (
	"context"
	"fmt"
	"sync"

	types "github.com/lumenlabs/lumen-analytics/internal/domain"
)

// Handler processes one durable analytics task. The returned error's
// retryability decides whether the queue message is acknowledged or
// left for redelivery.
type Handler interface {
	Type() string
	Run(ctx context.Context, task *types.AnalyticsTask) error
}

// Registry maps task types to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler")
	}
	taskType := h.Type()
	if taskType == "" {
		return fmt.Errorf("handler has empty task type")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[taskType]; exists {
		return fmt.Errorf("handler already registered for task type %q", taskType)
	}
	r.handlers[taskType] = h
	return nil
}

func (r *Registry) Get(taskType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskType]
	return h, ok
}
