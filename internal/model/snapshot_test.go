package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AxirK/Network-Intrusion-Detection-System/internal/boost"
	"github.com/AxirK/Network-Intrusion-Detection-System/internal/gbt"
)

func trainedMembers(t *testing.T, rounds int) []boost.TreeModel {
	t.Helper()
	engine := gbt.NewEngine()

	features := [][]float64{
		{0.0, 1.0}, {0.1, 0.9}, {0.2, 0.8}, {0.3, 0.7},
		{0.7, 0.3}, {0.8, 0.2}, {0.9, 0.1}, {1.0, 0.0},
	}
	labels := []float64{0, 0, 0, 0, 1, 1, 1, 1}

	members := make([]boost.TreeModel, 0, rounds)
	base := make([]float64, len(features))
	for i := 0; i < rounds; i++ {
		tree, err := engine.TrainOneRound(features, labels, base, boost.Params{LearningRate: 0.3, MaxDepth: 2})
		if err != nil {
			t.Fatalf("training failed: %v", err)
		}
		base = tree.Score(features, base, true)
		members = append(members, tree)
	}
	return members
}

func TestManager_SaveAndLoadLatest(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 5)
	if err != nil {
		t.Fatal(err)
	}

	members := trainedMembers(t, 3)
	status := boost.Status{Strategy: "replace", FeatureDim: 2, EnsembleLive: 3, Trainings: 3}
	names := []string{"f0", "f1"}

	snap, err := m.Save(members, status, names)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if snap.ID == "" || snap.Version == "" {
		t.Errorf("snapshot missing identity: %+v", snap)
	}

	loaded, err := m.LoadLatest()
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	if loaded.Status.Trainings != 3 || len(loaded.Trees) != 3 {
		t.Errorf("snapshot did not round-trip: %+v", loaded.Status)
	}
	if len(loaded.FeatureNames) != 2 || loaded.FeatureNames[0] != "f0" {
		t.Errorf("feature names did not round-trip: %v", loaded.FeatureNames)
	}

	// Restored members score identically to the originals.
	rows := [][]float64{{0.05, 0.95}, {0.95, 0.05}}
	restored := loaded.Members()
	for i := range members {
		want := members[i].Score(rows, nil, true)
		got := restored[i].Score(rows, nil, true)
		for j := range want {
			if want[j] != got[j] {
				t.Errorf("member %d row %d: restored score %f, original %f", i, j, got[j], want[j])
			}
		}
	}
}

func TestManager_LoadLatest_ColdStart(t *testing.T) {
	m, err := NewManager(t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}

	snap, err := m.LoadLatest()
	if err != nil {
		t.Fatalf("cold start should not error: %v", err)
	}
	if snap != nil {
		t.Errorf("expected nil snapshot on cold start, got %+v", snap)
	}
}

func TestManager_Retention(t *testing.T) {
	m, err := NewManager(t.TempDir(), 2)
	if err != nil {
		t.Fatal(err)
	}

	members := trainedMembers(t, 1)
	status := boost.Status{Strategy: "push", EnsembleLive: 1}

	// Saves within the same second share a version name and overwrite;
	// either way the retained set must never exceed the limit.
	for i := 0; i < 4; i++ {
		if _, err := m.Save(members, status, nil); err != nil {
			t.Fatalf("Save %d failed: %v", i, err)
		}
	}

	versions, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(versions) > 2 {
		t.Errorf("retention 2 exceeded: %v", versions)
	}

	loaded, err := m.LoadLatest()
	if err != nil || loaded == nil {
		t.Fatalf("latest must survive pruning: %v", err)
	}
}

func TestManager_RejectsForeignMembers(t *testing.T) {
	m, err := NewManager(t.TempDir(), 3)
	if err != nil {
		t.Fatal(err)
	}

	_, err = m.Save([]boost.TreeModel{fakeMember{}}, boost.Status{}, nil)
	if err == nil {
		t.Fatal("expected error for non-tree member")
	}
}

type fakeMember struct{}

func (fakeMember) Score(features [][]float64, baseMargin []float64, outputMargin bool) []float64 {
	return make([]float64, len(features))
}

func TestManager_CorruptLatest(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(dir, 3)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "latest.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := m.LoadLatest(); err == nil {
		t.Fatal("expected parse error for corrupt latest.json")
	}
}
