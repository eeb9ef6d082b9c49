// Package storage provides persistent data storage for the detection
// pipeline. It uses BoltDB as the underlying storage engine to store observed
// flows, classifier verdicts, and training-round history.
//
// The package provides thread-safe operations for storing and retrieving
// time-series data with efficient range queries and automatic bucket management.
package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/features"

	"go.etcd.io/bbolt"
)

const (
	flowsBucket     = "flows"     // Bucket name for observed flow records
	verdictsBucket  = "verdicts"  // Bucket name for classifier verdicts
	trainingsBucket = "trainings" // Bucket name for training-round history
)

// Store provides persistent storage for detection data using BoltDB.
// It manages multiple buckets for different data types and provides
// efficient time-range queries for historical analysis.
type Store struct {
	db *bbolt.DB
}

// New creates a new storage instance with the specified data path.
// It initializes the BoltDB database and creates necessary buckets.
// Returns an error if the database cannot be opened or buckets cannot be created.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "nids-data.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{flowsBucket, verdictsBucket, trainingsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// StoreFlow stores a flow record in the flows bucket. The key format is
// "source_timestamp" so per-source range scans stay cheap.
func (s *Store) StoreFlow(flow features.FlowRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(flowsBucket))

		data, err := json.Marshal(flow)
		if err != nil {
			return fmt.Errorf("marshal flow: %w", err)
		}

		key := fmt.Sprintf("%s_%d", flow.SrcAddr, flow.Timestamp.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetFlows retrieves flow records for a specific source within a time range.
// The time range is inclusive of both start and end times. Malformed records
// are skipped.
func (s *Store) GetFlows(source string, start, end time.Time) ([]features.FlowRecord, error) {
	var flows []features.FlowRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(flowsBucket))
		c := b.Cursor()

		prefix := []byte(source + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", source, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", source, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var flow features.FlowRecord
			if err := json.Unmarshal(v, &flow); err != nil {
				continue
			}
			flows = append(flows, flow)
		}
		return nil
	})

	return flows, err
}

// IterateFlows walks every stored flow in key order. The callback returning
// false stops the walk early. Malformed records are skipped.
func (s *Store) IterateFlows(fn func(features.FlowRecord) bool) error {
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(flowsBucket)).ForEach(func(k, v []byte) error {
			var flow features.FlowRecord
			if err := json.Unmarshal(v, &flow); err != nil {
				return nil
			}
			if !fn(flow) {
				return errStopIteration
			}
			return nil
		})
	})
	if errors.Is(err, errStopIteration) {
		return nil
	}
	return err
}

var errStopIteration = errors.New("stop iteration")

// CountFlows returns the number of stored flow records.
func (s *Store) CountFlows() (int, error) {
	return s.countBucket(flowsBucket)
}

func (s *Store) countBucket(name string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(name)).Stats().KeyN
		return nil
	})
	return count, err
}
