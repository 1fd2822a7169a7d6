package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"chat-widget/internal/models"
)

// MemoryStore is an in-process message collection with a live change feed.
type MemoryStore struct {
	mu   sync.Mutex
	seq  uint64
	docs map[string]memDoc
	subs map[*memSub]struct{}
}

type memDoc struct {
	msg models.Message
	seq uint64
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]memDoc),
		subs: make(map[*memSub]struct{}),
	}
}

// Create stores a copy of msg under a fresh id.
func (s *MemoryStore) Create(ctx context.Context, msg models.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", wrap("create", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg.ID = uuid.NewString()
	s.docs[msg.ID] = memDoc{msg: msg, seq: s.seq}
	s.publishLocked(models.Batch{{Type: models.ChangeAdded, ID: msg.ID, Message: msg}})
	return msg.ID, nil
}

// Update replaces the text of an existing message.
func (s *MemoryStore) Update(ctx context.Context, id string, update models.MessageUpdate) error {
	if err := ctx.Err(); err != nil {
		return wrap("update", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return wrap("update", id, ErrNotFound)
	}
	doc.msg.Message = update.Message
	s.docs[id] = doc
	s.publishLocked(models.Batch{{Type: models.ChangeModified, ID: id, Message: doc.msg}})
	return nil
}

// Delete removes a message.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return wrap("delete", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return wrap("delete", id, ErrNotFound)
	}
	delete(s.docs, id)
	s.publishLocked(models.Batch{{Type: models.ChangeRemoved, ID: id}})
	return nil
}

// QueryOrdered returns every message ordered by date ascending.
func (s *MemoryStore) QueryOrdered(ctx context.Context) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("query", "", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedLocked(), nil
}

// Subscribe registers fn for the ordered view. The first batch holds an
// added event per current message.
func (s *MemoryStore) Subscribe(ctx context.Context, fn func(models.Batch)) error {
	if err := ctx.Err(); err != nil {
		return wrap("subscribe", "", err)
	}
	sub := &memSub{wake: make(chan struct{}, 1)}

	s.mu.Lock()
	sub.push(addedBatch(s.orderedLocked()))
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
		}()
		sub.deliver(ctx, fn)
	}()
	return nil
}

// Subscribers reports the number of live subscriptions.
func (s *MemoryStore) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *MemoryStore) orderedLocked() []models.Message {
	docs := make([]memDoc, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].msg.Date.Equal(docs[j].msg.Date) {
			return docs[i].msg.Date.Before(docs[j].msg.Date)
		}
		return docs[i].seq < docs[j].seq
	})
	msgs := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		msgs = append(msgs, doc.msg)
	}
	return msgs
}

func (s *MemoryStore) publishLocked(batch models.Batch) {
	for sub := range s.subs {
		sub.push(batch)
	}
}

// memSub queues batches so publishers never block on a slow callback.
type memSub struct {
	mu      sync.Mutex
	pending []models.Batch
	wake    chan struct{}
}

func (m *memSub) push(batch models.Batch) {
	m.mu.Lock()
	m.pending = append(m.pending, batch)
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *memSub) deliver(ctx context.Context, fn func(models.Batch)) {
	for {
		m.mu.Lock()
		batches := m.pending
		m.pending = nil
		m.mu.Unlock()

		for _, batch := range batches {
			if ctx.Err() != nil {
				return
			}
			fn(batch)
		}

		select {
		case <-ctx.Done():
			return
		case <-m.wake:
		}
	}
}
