package world

// Record is the serialized tuple form of one entity: (id, tags, stats, links).
// Tags are sorted; empty maps and slices are kept non-nil so the JSON form
// is stable.
type Record struct {
	ID    string            `json:"id" yaml:"id"`
	Tags  []string          `json:"tags" yaml:"tags"`
	Stats map[string]int64  `json:"stats" yaml:"stats"`
	Links map[string]string `json:"links" yaml:"links"`
}

// Records returns the Store as tuples in id order.
func (s Store) Records() []Record {
	ids := s.IDs()
	records := make([]Record, 0, len(ids))
	for _, id := range ids {
		e := s.entities[id]
		rec := Record{
			ID:    id,
			Tags:  e.Tags.Sorted(),
			Stats: make(map[string]int64, len(e.Stats)),
			Links: make(map[string]string, len(e.Links)),
		}
		for k, v := range e.Stats {
			rec.Stats[k] = v
		}
		for k, v := range e.Links {
			rec.Links[k] = v
		}
		records = append(records, rec)
	}
	return records
}

// FromRecords rebuilds a Store from its tuple form.
// A later record with a repeated id replaces the earlier one.
func FromRecords(records []Record) Store {
	s := Store{entities: make(map[string]Entity, len(records))}
	for _, rec := range records {
		e := NewEntity()
		for _, t := range rec.Tags {
			e.Tags[t] = struct{}{}
		}
		for k, v := range rec.Stats {
			e.Stats[k] = v
		}
		for k, v := range rec.Links {
			e.Links[k] = v
		}
		s.entities[rec.ID] = e
	}
	return s
}
