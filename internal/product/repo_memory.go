package product

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore is an in-memory Store. Transactions hold the write lock and
// change the live state directly, recording how to undo each write; the
// log is replayed backwards when fn fails or panics.
type MemoryStore struct {
	mu    sync.RWMutex
	state memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memState{products: make(map[int64]Product)}}
}

func (s *MemoryStore) Persist(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memRepo{st: &s.state}).Persist(ctx, p)
}

func (s *MemoryStore) FindByID(ctx context.Context, id int64) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memRepo{st: &s.state}).FindByID(ctx, id)
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&memRepo{st: &s.state}).ListAll(ctx)
}

func (s *MemoryStore) Update(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memRepo{st: &s.state}).Update(ctx, p)
}

func (s *MemoryStore) DeleteByID(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&memRepo{st: &s.state}).DeleteByID(ctx, id)
}

func (s *MemoryStore) WithTx(ctx context.Context, fn TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo := &memRepo{st: &s.state, tracking: true}
	committed := false
	defer func() {
		if !committed {
			repo.rollback()
		}
	}()

	if err := fn(ctx, repo); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

type memState struct {
	lastID   int64
	products map[int64]Product
	order    []int64
}

// memRepo operates on a memState without locking; callers hold the lock.
// With tracking set every write pushes its inverse onto undo.
type memRepo struct {
	st       *memState
	tracking bool
	undo     []func()
}

func (r *memRepo) onRollback(f func()) {
	if r.tracking {
		r.undo = append(r.undo, f)
	}
}

func (r *memRepo) rollback() {
	for i := len(r.undo) - 1; i >= 0; i-- {
		r.undo[i]()
	}
	r.undo = nil
}

func (r *memRepo) Persist(_ context.Context, p *Product) error {
	st := r.st
	prevID := st.lastID
	st.lastID++
	p.ID = st.lastID
	st.products[p.ID] = *p
	st.order = append(st.order, p.ID)

	id := p.ID
	r.onRollback(func() {
		delete(st.products, id)
		st.order = st.order[:len(st.order)-1]
		st.lastID = prevID
	})
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*Product, error) {
	p, ok := r.st.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (r *memRepo) ListAll(context.Context) ([]Product, error) {
	out := make([]Product, 0, len(r.st.order))
	for _, id := range r.st.order {
		out = append(out, r.st.products[id])
	}
	return out, nil
}

func (r *memRepo) Update(_ context.Context, p *Product) error {
	prev, ok := r.st.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	r.st.products[p.ID] = *p

	st := r.st
	r.onRollback(func() { st.products[prev.ID] = prev })
	return nil
}

func (r *memRepo) DeleteByID(_ context.Context, id int64) (bool, error) {
	prev, ok := r.st.products[id]
	if !ok {
		return false, nil
	}
	delete(r.st.products, id)
	pos := slices.Index(r.st.order, id)
	if pos >= 0 {
		r.st.order = slices.Delete(r.st.order, pos, pos+1)
	}

	st := r.st
	r.onRollback(func() {
		st.products[id] = prev
		if pos >= 0 {
			st.order = slices.Insert(st.order, pos, id)
		}
	})
	return true, nil
}
