// Package audit keeps an optional, append-only operator log of admission
// and disconnection events — not game state, and never consulted by the
// session state machine. A nil *Log is a valid no-op, so enabling it is
// strictly opt-in.
package audit

import (
	"encoding/binary"
	"encoding/json"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketEvents = []byte("events")

// Kind identifies the sort of event being recorded.
type Kind string

const (
	KindAdmit      Kind = "admit"
	KindLeave      Kind = "leave"
	KindDisconnect Kind = "disconnect"
)

// Event is one line of the audit trail.
type Event struct {
	Timestamp int64  `json:"ts"`
	Kind      Kind   `json:"kind"`
	Plr       int    `json:"plr"`
	Endpoint  string `json:"endpoint"`
}

// Log is a local, unauthenticated event history backed by an embedded
// database. Unlike the core's peer table, it is never read back by the
// session layer — it exists purely so an operator can answer "who joined
// and when" after the fact.
type Log struct {
	db *bolt.DB
}

// Open creates or opens an audit database at path.
func Open(path string) (*Log, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketEvents)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database. Safe to call on a nil *Log.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	return l.db.Close()
}

// Record appends an event. Safe to call on a nil *Log (no-op), so callers
// don't need to guard every call site with a nil check.
func (l *Log) Record(kind Kind, plr int, endpoint string) error {
	if l == nil {
		return nil
	}
	ev := Event{
		Timestamp: time.Now().Unix(),
		Kind:      kind,
		Plr:       plr,
		Endpoint:  endpoint,
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketEvents)
		seq, err := bkt.NextSequence()
		if err != nil {
			return err
		}
		// Big-endian keys make the bucket's byte order match insertion
		// order, which All relies on.
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bkt.Put(key, data)
	})
}

// All returns every recorded event in insertion order. Returns nil on a
// nil *Log.
func (l *Log) All() ([]Event, error) {
	if l == nil {
		return nil, nil
	}
	var out []Event
	err := l.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, v []byte) error {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			out = append(out, ev)
			return nil
		})
	})
	return out, err
}
