package render

import (
	"sync"

	"github.com/Norgate-AV/docrender/internal/document"
)

// keyedMutex hands out one mutex per document id, dropping it when unused
type keyedMutex struct {
	mu    sync.Mutex
	locks map[document.ID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock locks the mutex of id and returns its unlock function
func (k *keyedMutex) Lock(id document.ID) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[document.ID]*refMutex)
	}

	m, ok := k.locks[id]
	if !ok {
		m = &refMutex{}
		k.locks[id] = m
	}

	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, id)
		}
		k.mu.Unlock()
	}
}
