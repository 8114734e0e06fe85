// -- pkg/agent/observer.go --
package agent

import "sync"

// Observer receives live progress from a run. Callbacks are invoked
// from the loop goroutine between steps; implementations must not block.
type Observer interface {
	OnStep(event StepEvent)
	OnResult(result Result)
}

// observerSet is a registry of live observers. All observers are
// unregistered once the run reaches a terminal state, so no callback
// fires after OnResult.
type observerSet struct {
	mu        sync.Mutex
	observers map[Observer]struct{}
}

func newObserverSet() *observerSet {
	return &observerSet{observers: make(map[Observer]struct{})}
}

func (s *observerSet) register(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers[o] = struct{}{}
}

func (s *observerSet) unregister(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.observers, o)
}

func (s *observerSet) snapshot() []Observer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Observer, 0, len(s.observers))
	for o := range s.observers {
		out = append(out, o)
	}
	return out
}

func (s *observerSet) notifyStep(event StepEvent) {
	for _, o := range s.snapshot() {
		o.OnStep(event)
	}
}

// notifyResult delivers the terminal result and clears the registry.
func (s *observerSet) notifyResult(result Result) {
	s.mu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for o := range s.observers {
		observers = append(observers, o)
	}
	s.observers = make(map[Observer]struct{})
	s.mu.Unlock()

	for _, o := range observers {
		o.OnResult(result)
	}
}
