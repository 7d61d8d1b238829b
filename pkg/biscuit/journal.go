package biscuit

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// JournalEntry is the last payload successfully written to one characteristic
type JournalEntry struct {
	UUID string
	Data []byte
}

// writeJournal keeps the last payload per characteristic in first-write order, so a replay
// after reconnect reproduces the configuration sequence. Guarded by the Session mutex.
type writeJournal struct {
	entries *orderedmap.OrderedMap[string, []byte]
}

func newWriteJournal() *writeJournal {
	return &writeJournal{entries: orderedmap.New[string, []byte]()}
}

func (j *writeJournal) record(uuid string, data []byte) {
	j.entries.Set(uuid, append([]byte(nil), data...))
}

func (j *writeJournal) snapshot() []JournalEntry {
	out := make([]JournalEntry, 0, j.entries.Len())
	for pair := j.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, JournalEntry{UUID: pair.Key, Data: append([]byte(nil), pair.Value...)})
	}
	return out
}

func (j *writeJournal) clear() {
	j.entries = orderedmap.New[string, []byte]()
}

// notificationRegistry maps characteristic UUID to the listener that should receive its
// notifications. Guarded by the Session mutex.
type notificationRegistry struct {
	entries *orderedmap.OrderedMap[string, func([]byte)]
}

type registration struct {
	uuid     string
	listener func([]byte)
}

func newNotificationRegistry() *notificationRegistry {
	return &notificationRegistry{entries: orderedmap.New[string, func([]byte)]()}
}

func (r *notificationRegistry) set(uuid string, listener func([]byte)) {
	r.entries.Set(uuid, listener)
}

func (r *notificationRegistry) remove(uuid string) bool {
	_, present := r.entries.Delete(uuid)
	return present
}

func (r *notificationRegistry) has(uuid string) bool {
	_, ok := r.entries.Get(uuid)
	return ok
}

func (r *notificationRegistry) snapshot() []registration {
	out := make([]registration, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, registration{uuid: pair.Key, listener: pair.Value})
	}
	return out
}

func (r *notificationRegistry) uuids() []string {
	out := make([]string, 0, r.entries.Len())
	for pair := r.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (r *notificationRegistry) clear() {
	r.entries = orderedmap.New[string, func([]byte)]()
}
