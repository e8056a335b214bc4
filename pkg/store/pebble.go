package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"chatdb/pkg/logger"
	"chatdb/pkg/models"
	"chatdb/pkg/utils"
	"chatdb/pkg/validation"
)

var db *pebble.DB
var dbPath string

// seq reduces key collisions when multiple messages share the same
// nanosecond timestamp; the pair (ts, seq) is the total ordering key.
var seq uint64

// Key layout:
//   msg:<%020d unixnano>-<%06d seq>  -> message JSON (the ordered log)
//   id:msg:<id>                      -> log key (id index)
const (
	logPrefix = "msg:"
	idPrefix  = "id:msg:"
)

func logKey(ts int64, s uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d-%06d", logPrefix, ts, s))
}

func idKey(id string) []byte {
	return []byte(idPrefix + id)
}

// readBy updates are read-modify-write; stripe locks keep concurrent
// inserts for different users on the same message from losing either
// write without a store-wide lock.
const lockStripes = 64

var stripes [lockStripes]sync.Mutex

func stripeFor(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % lockStripes)
}

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return fmt.Errorf("%w: open %s: %v", ErrTransient, path, err)
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

// Append validates and persists a new message. The store assigns the id and
// the server timestamp, derives the type from the content, and never accepts
// a caller-supplied ReadBy (receipts arrive only through AddReader or
// MarkReadBatch).
func Append(m models.Message) (models.Message, error) {
	if db == nil {
		return models.Message{}, ErrClosed
	}
	if m.SenderID == "" {
		return models.Message{}, fmt.Errorf("%w: append requires a sender identity", ErrUnauthenticated)
	}
	if err := validation.ValidateMessage(m); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if m.ID == "" {
		m.ID = utils.GenID()
	}
	m.TS = time.Now().UTC().UnixNano()
	m.Type = models.DeriveType(m.Text, m.ImageURL)
	m.ReadBy = nil

	s := atomic.AddUint64(&seq, 1)
	lk := logKey(m.TS, s)

	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}

	b := db.NewBatch()
	defer b.Close()
	if err := b.Set(lk, data, nil); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if err := b.Set(idKey(m.ID), lk, nil); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("append_failed", "key", string(lk), "error", err)
		return models.Message{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	messagesAppended.Inc()
	logger.Info("message_appended", "id", m.ID, "type", string(m.Type), "sender", m.SenderID)
	notifyChange()
	return m, nil
}

// Get returns the message with the given id or ErrNotFound.
func Get(id string) (models.Message, error) {
	if db == nil {
		return models.Message{}, ErrClosed
	}
	lk, err := lookupLogKey(id)
	if err != nil {
		return models.Message{}, err
	}
	return readAt(lk)
}

func lookupLogKey(id string) ([]byte, error) {
	v, closer, err := db.Get(idKey(id))
	if err == pebble.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	lk := append([]byte(nil), v...)
	closer.Close()
	return lk, nil
}

func readAt(lk []byte) (models.Message, error) {
	v, closer, err := db.Get(lk)
	if err == pebble.ErrNotFound {
		return models.Message{}, fmt.Errorf("%w: log key %s", ErrNotFound, lk)
	}
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer closer.Close()
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return models.Message{}, fmt.Errorf("invalid stored message at %s: %w", lk, err)
	}
	return m, nil
}

// ListRecent returns the newest limit messages, oldest-first. The window is
// computed by walking the ordered log backwards and reversing, so the result
// is always totally ordered by (ts, seq).
func ListRecent(limit int) ([]models.Message, error) {
	if db == nil {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 50
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(logPrefix),
		UpperBound: []byte(logPrefix + "\xff"),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer iter.Close()

	out := make([]models.Message, 0, limit)
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		if !bytes.HasPrefix(iter.Key(), []byte(logPrefix)) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("list_recent_invalid_message", "key", string(iter.Key()), "error", err)
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	// reverse newest-first into display order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AddReader records that userID first read the message at time at (ns).
// The insert is idempotent: once a user holds a receipt it is never
// rewritten. The receipt time is clamped so it can never precede the
// message's own timestamp. Returns whether a receipt was added.
func AddReader(id, userID string, at int64) (bool, error) {
	if db == nil {
		return false, ErrClosed
	}
	if userID == "" {
		return false, fmt.Errorf("%w: reader identity required", ErrUnauthenticated)
	}
	mu := &stripes[stripeFor(id)]
	mu.Lock()
	defer mu.Unlock()

	lk, err := lookupLogKey(id)
	if err != nil {
		return false, err
	}
	m, err := readAt(lk)
	if err != nil {
		return false, err
	}
	if m.HasRead(userID) {
		return false, nil
	}
	if at < m.TS {
		at = m.TS
	}
	if m.ReadBy == nil {
		m.ReadBy = make(map[string]int64, 1)
	}
	m.ReadBy[userID] = at

	data, err := json.Marshal(m)
	if err != nil {
		return false, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set(lk, data, pebble.Sync); err != nil {
		logger.Error("add_reader_failed", "id", id, "user", userID, "error", err)
		return false, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	readReceipts.Inc()
	logger.Debug("reader_added", "id", id, "user", userID)
	notifyChange()
	return true, nil
}

// MarkReadBatch records receipts for userID on every listed message in one
// atomic pebble batch. Already-read ids are skipped; a missing id fails the
// whole batch before anything is committed, so the operation is
// all-or-nothing from the caller's perspective and safe to retry.
func MarkReadBatch(userID string, ids []string, at int64) error {
	if db == nil {
		return ErrClosed
	}
	if userID == "" {
		return fmt.Errorf("%w: reader identity required", ErrUnauthenticated)
	}
	if len(ids) == 0 {
		return nil
	}

	// lock the covered stripes in index order so concurrent batches
	// cannot deadlock
	needed := map[int]struct{}{}
	for _, id := range ids {
		needed[stripeFor(id)] = struct{}{}
	}
	order := make([]int, 0, len(needed))
	for i := range needed {
		order = append(order, i)
	}
	sort.Ints(order)
	for _, i := range order {
		stripes[i].Lock()
	}
	defer func() {
		for _, i := range order {
			stripes[i].Unlock()
		}
	}()

	b := db.NewBatch()
	defer b.Close()
	added := 0
	for _, id := range ids {
		lk, err := lookupLogKey(id)
		if err != nil {
			return err
		}
		m, err := readAt(lk)
		if err != nil {
			return err
		}
		if m.HasRead(userID) {
			continue
		}
		ts := at
		if ts < m.TS {
			ts = m.TS
		}
		if m.ReadBy == nil {
			m.ReadBy = make(map[string]int64, 1)
		}
		m.ReadBy[userID] = ts
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if err := b.Set(lk, data, nil); err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		added++
	}
	if added == 0 {
		return nil
	}
	if err := b.Commit(pebble.Sync); err != nil {
		logger.Error("mark_read_batch_failed", "user", userID, "ids", len(ids), "error", err)
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	readReceipts.Add(float64(added))
	readBatches.Inc()
	logger.Info("read_batch_committed", "user", userID, "added", added)
	notifyChange()
	return nil
}

// CountMessages walks the log and returns message and receipt totals. Used
// by the janitor; not on any hot path.
func CountMessages() (msgs int, receipts int, err error) {
	if db == nil {
		return 0, 0, ErrClosed
	}
	iter, err := db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(logPrefix),
		UpperBound: []byte(logPrefix + "\xff"),
	})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		var m models.Message
		if json.Unmarshal(iter.Value(), &m) == nil {
			msgs++
			receipts += len(m.ReadBy)
		}
	}
	return msgs, receipts, iter.Error()
}
