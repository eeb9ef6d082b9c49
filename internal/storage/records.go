package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// VerdictRecord is one classifier decision about a flow, kept for audit and
// offline evaluation.
type VerdictRecord struct {
	Source    string    `json:"source"`
	Dest      string    `json:"dest"`
	DstPort   int       `json:"dst_port"`
	Timestamp time.Time `json:"timestamp"`
	Predicted int       `json:"predicted"`
	Label     int       `json:"label"` // ground truth when known, -1 otherwise
	Alerted   bool      `json:"alerted"`
}

// TrainingRecord captures one ensemble training round.
type TrainingRecord struct {
	Round      uint64    `json:"round"`
	Timestamp  time.Time `json:"timestamp"`
	BatchSize  int       `json:"batch_size"`
	WindowSize int       `json:"window_size"`
	Members    int       `json:"members"`
	Strategy   string    `json:"strategy"`
}

// StoreVerdict stores a classifier verdict keyed by "source_timestamp".
func (s *Store) StoreVerdict(record VerdictRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(verdictsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal verdict: %w", err)
		}

		key := fmt.Sprintf("%s_%d", record.Source, record.Timestamp.UnixNano())
		return b.Put([]byte(key), data)
	})
}

// GetVerdicts retrieves verdicts for a specific source within a time range.
// The time range is inclusive of both start and end times.
func (s *Store) GetVerdicts(source string, start, end time.Time) ([]VerdictRecord, error) {
	var verdicts []VerdictRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(verdictsBucket))
		c := b.Cursor()

		prefix := []byte(source + "_")
		startKey := []byte(fmt.Sprintf("%s_%d", source, start.UnixNano()))
		endKey := []byte(fmt.Sprintf("%s_%d", source, end.UnixNano()))

		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var record VerdictRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			verdicts = append(verdicts, record)
		}
		return nil
	})

	return verdicts, err
}

// CountVerdicts returns the number of stored verdicts.
func (s *Store) CountVerdicts() (int, error) {
	return s.countBucket(verdictsBucket)
}

// StoreTraining stores a training-round record keyed by the round number so
// history reads back in training order.
func (s *Store) StoreTraining(record TrainingRecord) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(trainingsBucket))

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal training record: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, record.Round)
		return b.Put(key, data)
	})
}

// RecentTrainings returns up to limit training records, most recent first.
func (s *Store) RecentTrainings(limit int) ([]TrainingRecord, error) {
	var records []TrainingRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(trainingsBucket)).Cursor()
		for k, v := c.Last(); k != nil && len(records) < limit; k, v = c.Prev() {
			var record TrainingRecord
			if err := json.Unmarshal(v, &record); err != nil {
				continue
			}
			records = append(records, record)
		}
		return nil
	})

	return records, err
}
