// Package store persists threads, messages, subscription snapshots and
// contact preferences in a Pebble database. Message keys embed a padded
// nanosecond timestamp plus a process-local sequence, so iteration order
// over a thread's message prefix is the authoritative message order.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"introchat/pkg/errs"
	"introchat/pkg/logger"
	"introchat/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string

	// seq reduces key collisions when multiple messages share the same
	// nanosecond timestamp.
	seq uint64

	// mu serializes read-modify-write operations (thread decisions, status
	// advancement, credit consumption). The thread row is the serialization
	// point; callers must not hold this across fan-out publication.
	mu sync.Mutex
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func threadMetaKey(threadID string) []byte {
	return []byte("thread:" + threadID + ":meta")
}

func threadMsgPrefix(threadID string) []byte {
	return []byte("thread:" + threadID + ":msg:")
}

func pairKey(requester, provider string) []byte {
	return []byte("pair:" + requester + ":" + provider)
}

func msgIndexKey(msgID string) []byte {
	return []byte("msgid:" + msgID)
}

func subKey(user string) []byte {
	return []byte("sub:" + user)
}

func prefsKey(user string) []byte {
	return []byte("prefs:" + user)
}

func get(key []byte, v interface{}) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return errs.ErrNotFound
		}
		return err
	}
	defer closer.Close()
	if err := json.Unmarshal(b, v); err != nil {
		return errors.Wrapf(err, "invalid record at %s", key)
	}
	return nil
}

func set(key []byte, v interface{}) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal record")
	}
	return db.Set(key, b, pebble.Sync)
}

// SaveThread stores thread metadata and the (requester, provider) pair
// index used to enforce pair uniqueness.
func SaveThread(t models.Thread) error {
	if err := set(threadMetaKey(t.ID), t); err != nil {
		logger.Error("save_thread_failed", "thread", t.ID, "error", err)
		return err
	}
	if err := db.Set(pairKey(t.Requester, t.Provider), []byte(t.ID), pebble.Sync); err != nil {
		return err
	}
	threadsSaved.Inc()
	logger.Info("thread_saved", "thread", t.ID, "state", string(t.State))
	return nil
}

// GetThread returns the stored thread for an ID.
func GetThread(threadID string) (models.Thread, error) {
	var t models.Thread
	if err := get(threadMetaKey(threadID), &t); err != nil {
		return models.Thread{}, err
	}
	return t, nil
}

// GetThreadByPair returns the thread for a (requester, provider) pair.
func GetThreadByPair(requester, provider string) (models.Thread, error) {
	if db == nil {
		return models.Thread{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, closer, err := db.Get(pairKey(requester, provider))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Thread{}, errs.ErrNotFound
		}
		return models.Thread{}, err
	}
	id := string(b)
	closer.Close()
	return GetThread(id)
}

// CreateThreadForPair stores t unless the (requester, provider) pair
// already has a thread. The pair-index check and the write happen under
// the store mutex, so concurrent first-contact requests cannot each
// create one. Returns the winning thread and whether t was the one
// stored.
func CreateThreadForPair(t models.Thread) (models.Thread, bool, error) {
	mu.Lock()
	defer mu.Unlock()
	existing, err := GetThreadByPair(t.Requester, t.Provider)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return models.Thread{}, false, err
	}
	if err := SaveThread(t); err != nil {
		return models.Thread{}, false, err
	}
	return t, true, nil
}

// UpdateThread applies fn to the stored thread under the store mutex and
// persists the result. fn returning an error aborts without writing.
func UpdateThread(threadID string, fn func(*models.Thread) error) (models.Thread, error) {
	mu.Lock()
	defer mu.Unlock()
	t, err := GetThread(threadID)
	if err != nil {
		return models.Thread{}, err
	}
	if err := fn(&t); err != nil {
		return models.Thread{}, err
	}
	t.UpdatedTS = time.Now().UTC().UnixNano()
	if err := set(threadMetaKey(threadID), t); err != nil {
		logger.Error("update_thread_failed", "thread", threadID, "error", err)
		return models.Thread{}, err
	}
	return t, nil
}

// DeleteThread hard-deletes a thread, its pair index, all of its messages
// and their message-id index entries. Irreversible.
func DeleteThread(threadID string) error {
	mu.Lock()
	defer mu.Unlock()
	t, err := GetThread(threadID)
	if err != nil {
		return err
	}
	batch := db.NewBatch()
	defer batch.Close()

	prefix := threadMsgPrefix(threadID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if json.Unmarshal(iter.Value(), &m) == nil && m.ID != "" {
			_ = batch.Delete(msgIndexKey(m.ID), nil)
		}
		_ = batch.Delete(append([]byte(nil), iter.Key()...), nil)
	}
	if err := iter.Close(); err != nil {
		return err
	}
	_ = batch.Delete(threadMetaKey(threadID), nil)
	_ = batch.Delete(pairKey(t.Requester, t.Provider), nil)
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("delete_thread_failed", "thread", threadID, "error", err)
		return err
	}
	threadsDeleted.Inc()
	logger.Info("thread_deleted", "thread", threadID)
	return nil
}

// ListThreadsByUser returns all threads the user participates in, most
// recently updated first.
func ListThreadsByUser(userID string) ([]models.Thread, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("thread:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Thread
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var t models.Thread
		if json.Unmarshal(iter.Value(), &t) != nil {
			continue
		}
		if t.HasParticipant(userID) {
			out = append(out, t)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	// newest activity first
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].UpdatedTS > out[i].UpdatedTS {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

// SaveMessage appends a message to its thread under a sortable key and
// indexes it by message ID for status lookups. The message's TS is
// assigned here so the key and record agree.
func SaveMessage(m models.Message) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1)
	m.TS = ts
	key := fmt.Sprintf("thread:%s:msg:%020d-%06d", m.Thread, ts, s)

	b, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, errors.Wrap(err, "marshal message")
	}
	batch := db.NewBatch()
	defer batch.Close()
	_ = batch.Set([]byte(key), b, nil)
	_ = batch.Set(msgIndexKey(m.ID), []byte(key), nil)
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("save_message_failed", "thread", m.Thread, "key", key, "error", err)
		return models.Message{}, err
	}
	// bump thread activity; best-effort, the message itself is durable
	if _, err := UpdateThread(m.Thread, func(*models.Thread) error { return nil }); err != nil {
		logger.Warn("thread_touch_failed", "thread", m.Thread, "error", err)
	}
	messagesSaved.Inc()
	logger.Info("message_saved", "thread", m.Thread, "msg_id", m.ID, "kind", string(m.Kind))
	return m, nil
}

// ListMessages returns all messages for a thread in insertion order. A
// positive limit keeps only the most recent messages.
func ListMessages(threadID string, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := threadMsgPrefix(threadID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Warn("list_messages_invalid_record", "thread", threadID, "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// GetMessage looks a message up through the message-id index.
func GetMessage(msgID string) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	kb, closer, err := db.Get(msgIndexKey(msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Message{}, errs.ErrNotFound
		}
		return models.Message{}, err
	}
	key := append([]byte(nil), kb...)
	closer.Close()
	var m models.Message
	if err := get(key, &m); err != nil {
		return models.Message{}, err
	}
	return m, nil
}

// UpdateMessageStatus applies fn to the stored message under the store
// mutex and rewrites it in place under its original key, preserving
// insertion order. Only the delivery status is expected to change.
func UpdateMessageStatus(msgID string, fn func(*models.Message) error) (models.Message, error) {
	mu.Lock()
	defer mu.Unlock()
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	kb, closer, err := db.Get(msgIndexKey(msgID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Message{}, errs.ErrNotFound
		}
		return models.Message{}, err
	}
	key := append([]byte(nil), kb...)
	closer.Close()
	var m models.Message
	if err := get(key, &m); err != nil {
		return models.Message{}, err
	}
	if err := fn(&m); err != nil {
		return models.Message{}, err
	}
	b, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, errors.Wrap(err, "marshal message")
	}
	if err := db.Set(key, b, pebble.Sync); err != nil {
		logger.Error("update_message_status_failed", "msg_id", msgID, "error", err)
		return models.Message{}, err
	}
	statusUpdates.Inc()
	return m, nil
}

// SaveSubscription stores a billing snapshot for a user.
func SaveSubscription(s models.Subscription) error {
	if err := set(subKey(s.User), s); err != nil {
		logger.Error("save_subscription_failed", "user", s.User, "error", err)
		return err
	}
	logger.Info("subscription_saved", "user", s.User, "status", string(s.Status))
	return nil
}

// GetSubscription returns the stored billing snapshot for a user.
func GetSubscription(user string) (models.Subscription, error) {
	var s models.Subscription
	if err := get(subKey(user), &s); err != nil {
		return models.Subscription{}, err
	}
	return s, nil
}

// UpdateSubscription applies fn to the stored snapshot under the store
// mutex. Used for credit consumption and expiry sweeps.
func UpdateSubscription(user string, fn func(*models.Subscription) error) (models.Subscription, error) {
	mu.Lock()
	defer mu.Unlock()
	var s models.Subscription
	if err := get(subKey(user), &s); err != nil {
		return models.Subscription{}, err
	}
	if err := fn(&s); err != nil {
		return models.Subscription{}, err
	}
	if err := set(subKey(user), s); err != nil {
		return models.Subscription{}, err
	}
	return s, nil
}

// ListSubscriptions returns every stored billing snapshot.
func ListSubscriptions() ([]models.Subscription, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("sub:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Subscription
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var s models.Subscription
		if json.Unmarshal(iter.Value(), &s) == nil {
			out = append(out, s)
		}
	}
	return out, iter.Error()
}

// SavePrefs stores a user's contact preferences.
func SavePrefs(p models.ContactPrefs) error {
	return set(prefsKey(p.User), p)
}

// GetPrefs returns a user's contact preferences; absence means defaults.
func GetPrefs(user string) (models.ContactPrefs, error) {
	var p models.ContactPrefs
	if err := get(prefsKey(user), &p); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return models.ContactPrefs{User: user}, nil
		}
		return models.ContactPrefs{}, err
	}
	return p, nil
}
