// Package model persists versioned snapshots of the online ensemble so a
// restarted detector can resume from recent state instead of relearning from
// scratch.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/gbt"
)

const latestFile = "latest.json"

// Snapshot is one serialized ensemble with enough context to restore it.
type Snapshot struct {
	ID           string       `json:"id"`
	Version      string       `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	FeatureNames []string     `json:"feature_names"`
	Status       boost.Status `json:"status"`
	Trees        []*gbt.Tree  `json:"trees"`
}

// Members returns the snapshot's trees as ensemble members in stored order.
func (s *Snapshot) Members() []boost.TreeModel {
	members := make([]boost.TreeModel, len(s.Trees))
	for i, t := range s.Trees {
		members[i] = t
	}
	return members
}

// Manager writes and prunes snapshot files under a single directory.
// "latest.json" always mirrors the newest snapshot.
type Manager struct {
	dir       string
	retention int
}

// NewManager creates the snapshot directory if needed. retention bounds how
// many timestamped snapshots are kept.
func NewManager(dir string, retention int) (*Manager, error) {
	if retention < 1 {
		retention = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	return &Manager{dir: dir, retention: retention}, nil
}

// Save serializes the live ensemble. Members must be gbt trees; anything else
// is a wiring bug and fails loudly.
func (m *Manager) Save(members []boost.TreeModel, status boost.Status, featureNames []string) (Snapshot, error) {
	trees := make([]*gbt.Tree, len(members))
	for i, member := range members {
		tree, ok := member.(*gbt.Tree)
		if !ok {
			return Snapshot{}, fmt.Errorf("ensemble member %d is %T, not a serializable tree", i, member)
		}
		trees[i] = tree
	}

	snap := Snapshot{
		ID:           uuid.New().String(),
		Version:      time.Now().UTC().Format("20060102-150405"),
		CreatedAt:    time.Now().UTC(),
		FeatureNames: featureNames,
		Status:       status,
		Trees:        trees,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal snapshot: %w", err)
	}

	path := filepath.Join(m.dir, "snapshot-"+snap.Version+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Snapshot{}, fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.dir, latestFile), data, 0o600); err != nil {
		return Snapshot{}, fmt.Errorf("write latest snapshot: %w", err)
	}

	if err := m.prune(); err != nil {
		log.Warn().Err(err).Msg("failed to prune old snapshots")
	}

	log.Info().
		Str("version", snap.Version).
		Int("trees", len(trees)).
		Str("path", path).
		Msg("ensemble snapshot saved")
	return snap, nil
}

// LoadLatest reads latest.json. A missing file is not an error; it returns
// (nil, nil) so cold starts are distinguishable from corrupt state.
func (m *Manager) LoadLatest() (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, latestFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read latest snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse latest snapshot: %w", err)
	}
	return &snap, nil
}

// List returns the stored snapshot versions, newest first.
func (m *Manager) List() ([]string, error) {
	names, err := m.snapshotFiles()
	if err != nil {
		return nil, err
	}
	versions := make([]string, len(names))
	for i, name := range names {
		versions[i] = strings.TrimSuffix(strings.TrimPrefix(name, "snapshot-"), ".json")
	}
	return versions, nil
}

// snapshotFiles lists snapshot file names, newest first. The timestamp format
// sorts lexically, so name order is creation order.
func (m *Manager) snapshotFiles() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "snapshot-") && strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (m *Manager) prune() error {
	names, err := m.snapshotFiles()
	if err != nil {
		return err
	}
	for _, name := range names[min(len(names), m.retention):] {
		if err := os.Remove(filepath.Join(m.dir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
