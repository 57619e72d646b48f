package store

import (
	"encoding/json"
	"fmt"
)

// encodeEntry serializes an entry for the cold tier.
func encodeEntry(e Entry) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode entry %d: %w", e.Tx.ID, err)
	}
	return raw, nil
}

// decodeEntry deserializes a cold tier record. A record that does not
// decode means the durable history is corrupt, which is fatal for the
// run.
func decodeEntry(raw []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, fmt.Errorf("decode cold tier record: %w", err)
	}
	return e, nil
}
