package world

import (
	"maps"
	"slices"
)

// Store maps entity ids to entities.
//
// Store is immutable from the caller's point of view: every write returns a
// new Store. Entities handed out by Get are copies and may be modified
// freely without affecting the Store. The zero value is an empty Store.
//
// Writes copy the id map, which is linear in the number of entities. The
// reference scale is tens to low hundreds of entities.
type Store struct {
	entities map[string]Entity
}

// New creates an empty Store.
func New() Store {
	return Store{entities: map[string]Entity{}}
}

// FromEntities creates a Store from an id -> entity map.
// The entities are deep-copied.
func FromEntities(entities map[string]Entity) Store {
	s := Store{entities: make(map[string]Entity, len(entities))}
	for id, e := range entities {
		s.entities[id] = e.Clone()
	}
	return s
}

// Len returns the number of entities.
func (s Store) Len() int {
	return len(s.entities)
}

// Has reports whether id exists.
func (s Store) Has(id string) bool {
	_, ok := s.entities[id]
	return ok
}

// Get returns a copy of the entity at id.
func (s Store) Get(id string) (Entity, bool) {
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return e.Clone(), true
}

// IDs returns every entity id in lexicographic order.
// This is the Store's natural enumeration order.
func (s Store) IDs() []string {
	ids := slices.Collect(maps.Keys(s.entities))
	slices.Sort(ids)
	return ids
}

// Insert returns a Store with e stored at id, replacing any existing entity.
func (s Store) Insert(id string, e Entity) Store {
	next := s.copyMap()
	next[id] = e.Clone()
	return Store{entities: next}
}

// Update returns a Store where the entity at id is replaced by f(entity).
// If id is absent the receiver is returned unchanged.
func (s Store) Update(id string, f func(Entity) Entity) Store {
	current, ok := s.entities[id]
	if !ok {
		return s
	}
	next := s.copyMap()
	next[id] = f(current.Clone()).Clone()
	return Store{entities: next}
}

// Remove returns a Store without id. Links that pointed at id are kept
// and become dangling. If id is absent the receiver is returned unchanged.
func (s Store) Remove(id string) Store {
	if !s.Has(id) {
		return s
	}
	next := s.copyMap()
	delete(next, id)
	return Store{entities: next}
}

// ResolveLink returns the id linked from id at key, but only if that
// target currently exists. Dangling links resolve to nothing.
func (s Store) ResolveLink(id, key string) (string, bool) {
	e, ok := s.entities[id]
	if !ok {
		return "", false
	}
	target, ok := e.Links[key]
	if !ok || !s.Has(target) {
		return "", false
	}
	return target, true
}

func (s Store) copyMap() map[string]Entity {
	next := make(map[string]Entity, len(s.entities)+1)
	for id, e := range s.entities {
		next[id] = e
	}
	return next
}
