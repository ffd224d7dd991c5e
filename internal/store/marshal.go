package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/fable/internal/digest"
	"github.com/roach88/fable/internal/world"
)

// marshalWorld converts a world to canonical tuple-form JSON TEXT and
// returns it with its digest.
func marshalWorld(s world.Store) (string, string, error) {
	data, err := digest.Marshal(digest.WorldValue(s))
	if err != nil {
		return "", "", fmt.Errorf("marshal world: %w", err)
	}
	sum, err := digest.World(s)
	if err != nil {
		return "", "", fmt.Errorf("marshal world: %w", err)
	}
	return string(data), sum, nil
}

// unmarshalWorld parses tuple-form JSON TEXT into a world.Store.
// Stats are int64 fields, so large values keep their precision.
func unmarshalWorld(data string) (world.Store, error) {
	if data == "" || data == "[]" {
		return world.New(), nil
	}
	var records []world.Record
	if err := json.Unmarshal([]byte(data), &records); err != nil {
		return world.Store{}, fmt.Errorf("unmarshal world: %w", err)
	}
	return world.FromRecords(records), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
