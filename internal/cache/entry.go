package cache

import (
	"encoding/json"
	"math"
	"time"
)

// now is a small indirection to allow test stubbing if needed.
var now = time.Now

// record is the on-disk representation of a cache entry.
type record struct {
	// Key is the caller's key, kept for debugging only.
	Key string `json:"key"`

	// CreatedAt and ExpiresAt are seconds since the epoch.
	CreatedAt float64 `json:"created_at"`
	ExpiresAt float64 `json:"expires_at"`

	Payload json.RawMessage `json:"payload"`
}

// newRecord builds a record that expires ttl from now.
func newRecord(key string, payload json.RawMessage, ttl time.Duration) record {
	t := now()
	return record{
		Key:       key,
		CreatedAt: epochSeconds(t),
		ExpiresAt: epochSeconds(t.Add(ttl)),
		Payload:   payload,
	}
}

// decodeRecord parses raw file content. It fails when the content is not a
// JSON object carrying both expires_at and payload.
func decodeRecord(data []byte) (record, bool) {
	var aux struct {
		Key       string          `json:"key"`
		CreatedAt float64         `json:"created_at"`
		ExpiresAt *float64        `json:"expires_at"`
		Payload   json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return record{}, false
	}
	if aux.ExpiresAt == nil || len(aux.Payload) == 0 {
		return record{}, false
	}
	return record{
		Key:       aux.Key,
		CreatedAt: aux.CreatedAt,
		ExpiresAt: *aux.ExpiresAt,
		Payload:   aux.Payload,
	}, true
}

// expired reports whether the record's expiry lies in the past.
func (r record) expired() bool {
	return epochSeconds(now()) > r.ExpiresAt
}

// expiresAtTime returns the expiry as a time.Time.
func (r record) expiresAtTime() time.Time {
	sec, frac := math.Modf(r.ExpiresAt)
	return time.Unix(int64(sec), int64(frac*1e9))
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// outcome tags the result of reading an entry file. Callers outside the
// package only ever see hit or miss.
type outcome int

const (
	outcomeHit outcome = iota
	outcomeMissing
	outcomeUnreadable
	outcomeCorrupt
	outcomeExpired
)

func (o outcome) String() string {
	switch o {
	case outcomeHit:
		return "hit"
	case outcomeMissing:
		return "missing"
	case outcomeUnreadable:
		return "unreadable"
	case outcomeCorrupt:
		return "corrupt"
	case outcomeExpired:
		return "expired"
	default:
		return "unknown"
	}
}
