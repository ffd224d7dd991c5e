package world

import "slices"

// TagSet is a set of string labels. The zero value is an empty set.
type TagSet map[string]struct{}

// NewTagSet creates a TagSet containing tags.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}

// Has reports whether tag is in the set.
func (s TagSet) Has(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Sorted returns the tags in lexicographic order.
func (s TagSet) Sorted() []string {
	tags := make([]string, 0, len(s))
	for t := range s {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// Entity is one addressable game object.
//
// Stats default to 0 when absent. Links may dangle: the target id is not
// required to exist in the Store.
type Entity struct {
	Tags  TagSet
	Stats map[string]int64
	Links map[string]string
}

// NewEntity creates an empty entity with allocated maps.
func NewEntity() Entity {
	return Entity{
		Tags:  TagSet{},
		Stats: map[string]int64{},
		Links: map[string]string{},
	}
}

// HasTag reports whether the entity carries tag.
func (e Entity) HasTag(tag string) bool {
	return e.Tags.Has(tag)
}

// Stat returns the stat at key, or 0 if the entity has no such stat.
func (e Entity) Stat(key string) int64 {
	return e.Stats[key]
}

// Link returns the raw link target at key. The target may not exist.
func (e Entity) Link(key string) (string, bool) {
	target, ok := e.Links[key]
	return target, ok
}

// WithTag returns a copy of e with tag added.
func (e Entity) WithTag(tag string) Entity {
	out := e.Clone()
	out.Tags[tag] = struct{}{}
	return out
}

// WithoutTag returns a copy of e with tag removed.
func (e Entity) WithoutTag(tag string) Entity {
	out := e.Clone()
	delete(out.Tags, tag)
	return out
}

// WithStat returns a copy of e with the stat at key set to value.
func (e Entity) WithStat(key string, value int64) Entity {
	out := e.Clone()
	out.Stats[key] = value
	return out
}

// WithLink returns a copy of e with the link at key pointing to target.
func (e Entity) WithLink(key, target string) Entity {
	out := e.Clone()
	out.Links[key] = target
	return out
}

// Clone returns a deep copy of e. The copy always has non-nil maps.
func (e Entity) Clone() Entity {
	out := Entity{
		Tags:  make(TagSet, len(e.Tags)),
		Stats: make(map[string]int64, len(e.Stats)),
		Links: make(map[string]string, len(e.Links)),
	}
	for t := range e.Tags {
		out.Tags[t] = struct{}{}
	}
	for k, v := range e.Stats {
		out.Stats[k] = v
	}
	for k, v := range e.Links {
		out.Links[k] = v
	}
	return out
}
