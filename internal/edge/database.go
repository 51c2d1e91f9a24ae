package edge

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/zombor/tindahan/internal/interpret"
)

const (
	transactionsBucket = "transactions"
	outboxBucket       = "outbox"
	capturesBucket     = "captures"
)

// ErrNotFound is returned when a transaction id is unknown
var ErrNotFound = errors.New("not found")

// CaptureRef points at the archived audio or image a transaction was read from
type CaptureRef struct {
	Path        string `json:"path"`
	ContentType string `json:"contentType"`
}

// DB defines the interface for the edge device's local store
type DB interface {
	// RecordTransaction saves a transaction, links its capture when there is
	// one, and queues it for the hub
	RecordTransaction(tx *interpret.TransactionOutput, capture *CaptureRef, queuedAt time.Time) error

	// GetTransaction retrieves a transaction by ID
	GetTransaction(id string) (*interpret.TransactionOutput, error)

	// GetCapture returns the capture linked to a transaction
	GetCapture(id string) (*CaptureRef, error)

	// ListTransactions returns all transactions in ID order
	ListTransactions() ([]*interpret.TransactionOutput, error)

	// ListOutbox returns the IDs still waiting for delivery, oldest first
	ListOutbox() ([]string, error)

	// RemoveOutbox marks a transaction as delivered
	RemoveOutbox(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements DB using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// outboxEntry is stored under the transaction id in the outbox bucket
type outboxEntry struct {
	QueuedAt time.Time `json:"queuedAt"`
}

// NewBoltDB opens or creates the store at path
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{transactionsBucket, outboxBucket, capturesBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// RecordTransaction writes the transaction, its capture link and its outbox entry in one update
func (b *BoltDB) RecordTransaction(out *interpret.TransactionOutput, capture *CaptureRef, queuedAt time.Time) error {
	if out.TransactionID == "" {
		return fmt.Errorf("transaction id is required")
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshaling transaction: %w", err)
	}
	entry, err := json.Marshal(outboxEntry{QueuedAt: queuedAt})
	if err != nil {
		return fmt.Errorf("marshaling outbox entry: %w", err)
	}

	var ref []byte
	if capture != nil {
		if ref, err = json.Marshal(capture); err != nil {
			return fmt.Errorf("marshaling capture: %w", err)
		}
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(out.TransactionID)
		if err := tx.Bucket([]byte(transactionsBucket)).Put(key, data); err != nil {
			return err
		}
		if ref != nil {
			if err := tx.Bucket([]byte(capturesBucket)).Put(key, ref); err != nil {
				return err
			}
		}
		return tx.Bucket([]byte(outboxBucket)).Put(key, entry)
	})
}

// GetTransaction retrieves a transaction by ID
func (b *BoltDB) GetTransaction(id string) (*interpret.TransactionOutput, error) {
	var out *interpret.TransactionOutput
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(transactionsBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetCapture returns ErrNotFound when the transaction came from text without a capture
func (b *BoltDB) GetCapture(id string) (*CaptureRef, error) {
	var ref *CaptureRef
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(capturesBucket)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("capture for %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &ref)
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// ListTransactions returns all transactions
func (b *BoltDB) ListTransactions() ([]*interpret.TransactionOutput, error) {
	outputs := make([]*interpret.TransactionOutput, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(transactionsBucket)).ForEach(func(k, v []byte) error {
			var out interpret.TransactionOutput
			if err := json.Unmarshal(v, &out); err != nil {
				return fmt.Errorf("unmarshaling transaction %s: %w", k, err)
			}
			outputs = append(outputs, &out)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return outputs, nil
}

// ListOutbox returns the pending transaction IDs sorted by key. Default IDs
// begin with the zero-padded capture time, so key order is capture order.
func (b *BoltDB) ListOutbox() ([]string, error) {
	ids := make([]string, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(outboxBucket)).ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RemoveOutbox drops the outbox entry; removing an absent id is not an error
func (b *BoltDB) RemoveOutbox(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(outboxBucket)).Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
