package repository

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	domrepo "AlphaPulse/internal/domain/repository"
	applogger "AlphaPulse/pkg/logger"

	badger "github.com/dgraph-io/badger/v4"
)

const (
	dedupEventPrefix = "ev/"
	dedupTimePrefix  = "ts/"
)

var errAlreadyRegistered = errors.New("canonical key already registered")

// BadgerDedupStore is the durable dedup gate backed by an embedded Badger
// database. Registration is INSERT-IF-ABSENT inside one serializable
// transaction; Badger's conflict detection guarantees that among racing
// registrations for the same key exactly one commits the insert. A secondary
// time-sorted index ("ts/<nanos>/<key>") makes the retention sweep a bounded
// prefix scan instead of a full iteration.
type BadgerDedupStore struct {
	db  *badger.DB
	log *applogger.Logger
}

// NewBadgerDedupStore opens (or creates) the store at path. An empty path
// opens an in-memory store, used by tests. An open error here is treated as
// fatal by the caller: running without dedup risks duplicate alerts at scale.
func NewBadgerDedupStore(path string, log *applogger.Logger) (*BadgerDedupStore, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open dedup store: %w", err)
	}
	return &BadgerDedupStore{db: db, log: log}, nil
}

func eventKey(canonicalKey string) []byte {
	return append([]byte(dedupEventPrefix), canonicalKey...)
}

func timeKey(nanos int64, canonicalKey string) []byte {
	key := make([]byte, 0, len(dedupTimePrefix)+8+1+len(canonicalKey))
	key = append(key, dedupTimePrefix...)
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(nanos))
	key = append(key, ts[:]...)
	key = append(key, '/')
	key = append(key, canonicalKey...)
	return key
}

// Register records the first sighting of a canonical key. Exactly one of any
// set of concurrent calls for the same key returns Registered; the rest see
// Duplicate. The error return is for storage failures only; callers apply
// fail-open policy themselves.
func (s *BadgerDedupStore) Register(ctx context.Context, canonicalKey string, observedAt time.Time) (domrepo.RegisterResult, error) {
	if canonicalKey == "" {
		return domrepo.Duplicate, fmt.Errorf("empty canonical key")
	}
	if observedAt.IsZero() {
		observedAt = time.Now()
	}
	nanos := observedAt.UnixNano()

	for {
		if err := ctx.Err(); err != nil {
			return domrepo.Registered, err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(eventKey(canonicalKey))
			if err == nil {
				return errAlreadyRegistered
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			var ts [8]byte
			binary.BigEndian.PutUint64(ts[:], uint64(nanos))
			if err := txn.Set(eventKey(canonicalKey), ts[:]); err != nil {
				return err
			}
			return txn.Set(timeKey(nanos, canonicalKey), nil)
		})

		switch {
		case err == nil:
			return domrepo.Registered, nil
		case errors.Is(err, errAlreadyRegistered):
			return domrepo.Duplicate, nil
		case errors.Is(err, badger.ErrConflict):
			// Another registration for this key won the race; retry to
			// observe its insert and report Duplicate.
			continue
		default:
			return domrepo.Registered, fmt.Errorf("dedup register: %w", err)
		}
	}
}

// Unregister removes a canonical key and its time-index entry so a
// redelivered event can register again. Missing keys are a no-op.
func (s *BadgerDedupStore) Unregister(ctx context.Context, canonicalKey string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(eventKey(canonicalKey))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			if len(val) == 8 {
				nanos := int64(binary.BigEndian.Uint64(val))
				if err := txn.Delete(timeKey(nanos, canonicalKey)); err != nil {
					return err
				}
			}
			return txn.Delete(eventKey(canonicalKey))
		})

		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("dedup unregister: %w", err)
		}
		return nil
	}
}

// Seen reports whether a canonical key is currently registered.
func (s *BadgerDedupStore) Seen(ctx context.Context, canonicalKey string) (bool, error) {
	var seen bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(eventKey(canonicalKey))
		if err == nil {
			seen = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return false, fmt.Errorf("dedup seen: %w", err)
	}
	return seen, nil
}

// SweepBefore deletes entries first observed before cutoff using the time
// index, in bounded batches so one sweep cannot hold a giant transaction.
func (s *BadgerDedupStore) SweepBefore(ctx context.Context, cutoff time.Time) (int, error) {
	cutoffNanos := cutoff.UnixNano()
	total := 0

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		// Collect one batch of expired keys from the sorted index.
		type victim struct {
			indexKey     []byte
			canonicalKey string
		}
		var batch []victim
		err := s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(dedupTimePrefix)})
			defer it.Close()
			for it.Rewind(); it.Valid() && len(batch) < 256; it.Next() {
				key := it.Item().KeyCopy(nil)
				raw := key[len(dedupTimePrefix):]
				if len(raw) < 9 {
					continue
				}
				nanos := int64(binary.BigEndian.Uint64(raw[:8]))
				if nanos >= cutoffNanos {
					break // index is time-sorted, nothing older remains
				}
				batch = append(batch, victim{indexKey: key, canonicalKey: string(raw[9:])})
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("dedup sweep scan: %w", err)
		}
		if len(batch) == 0 {
			return total, nil
		}

		err = s.db.Update(func(txn *badger.Txn) error {
			for _, v := range batch {
				if err := txn.Delete(v.indexKey); err != nil {
					return err
				}
				if err := txn.Delete(eventKey(v.canonicalKey)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return total, fmt.Errorf("dedup sweep delete: %w", err)
		}
		total += len(batch)

		if s.log != nil {
			s.log.Debug("dedup sweep batch",
				applogger.Int("dropped", len(batch)),
				applogger.Time("cutoff", cutoff),
			)
		}
	}
}

// Close flushes and closes the underlying database.
func (s *BadgerDedupStore) Close() error {
	return s.db.Close()
}
