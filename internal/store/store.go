// Package store holds the local copy of the offer collection.
package store

import (
	"sync"

	"github.com/sacrosaunt/churnchurnchurn/internal/models"
)

// Store is the owned offer cache. Values go in and come out as deep copies,
// so callers never share maps with the store.
type Store interface {
	Get(id int) (models.Offer, bool)
	All() []models.Offer
	Len() int
	ReplaceAll(offers []models.Offer)
	Put(offer models.Offer)
	PatchField(id int, field, value string) bool
	RemoveByID(id int) bool
}

// MemoryStore is a Store kept in process memory. It preserves the order of
// the last ReplaceAll, with offers added by Put appended.
type MemoryStore struct {
	mu     sync.RWMutex
	offers map[int]models.Offer
	order  []int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{offers: make(map[int]models.Offer)}
}

func (s *MemoryStore) Get(id int) (models.Offer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return models.Offer{}, false
	}
	return o.Clone(), true
}

func (s *MemoryStore) All() []models.Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Offer, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.offers[id].Clone())
	}
	return out
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.offers)
}

// ReplaceAll swaps in a full snapshot. Offers missing from it are dropped.
func (s *MemoryStore) ReplaceAll(offers []models.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.offers = make(map[int]models.Offer, len(offers))
	s.order = s.order[:0]
	for _, o := range offers {
		if _, dup := s.offers[o.ID]; !dup {
			s.order = append(s.order, o.ID)
		}
		s.offers[o.ID] = o.Clone()
	}
}

func (s *MemoryStore) Put(offer models.Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[offer.ID]; !ok {
		s.order = append(s.order, offer.ID)
	}
	s.offers[offer.ID] = offer.Clone()
}

// PatchField sets a single detail value. It reports false when the offer
// is not cached.
func (s *MemoryStore) PatchField(id int, field, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.offers[id]
	if !ok {
		return false
	}
	o = o.Clone()
	if o.Details == nil {
		o.Details = make(models.Details)
	}
	o.Details[field] = value
	s.offers[id] = o
	return true
}

func (s *MemoryStore) RemoveByID(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[id]; !ok {
		return false
	}
	delete(s.offers, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}
