package job

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.json")
	s := NewStore(DefaultTemplates())
	s.Load(path)
	return s, path
}

func TestAddAssignsSequentialIds(t *testing.T) {
	s, _ := testStore(t)

	first, err := s.Add()
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := s.Add()
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if first.ID != "0" || second.ID != "1" {
		t.Errorf("ids = %q, %q, want 0, 1", first.ID, second.ID)
	}
	if first.Machine != DefaultMachine || first.Action != DefaultAction {
		t.Errorf("new job defaults = %s/%s", first.Machine, first.Action)
	}
	if len(first.Params) == 0 {
		t.Error("new job has no template params")
	}
}

func TestIdsNeverReused(t *testing.T) {
	s, _ := testStore(t)

	j, err := s.Add()
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Delete(j.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	next, err := s.Add()
	if err != nil {
		t.Fatalf("Add after delete: %v", err)
	}
	if next.ID == j.ID {
		t.Errorf("id %q reused after deletion", j.ID)
	}
}

func TestUpdateBumpsCounterPastExternalId(t *testing.T) {
	s, _ := testStore(t)

	if err := s.Update(Job{ID: "41", Machine: "gantry", Action: "home"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	j, err := s.Add()
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if j.ID != "42" {
		t.Errorf("Add after external id 41 = %q, want 42", j.ID)
	}
}

func TestUpdateRejectsEmptyId(t *testing.T) {
	s, _ := testStore(t)

	if err := s.Update(Job{}); !errors.Is(err, ErrInvalidJob) {
		t.Errorf("Update with empty id = %v, want ErrInvalidJob", err)
	}
}

func TestDeleteSemantics(t *testing.T) {
	s, _ := testStore(t)

	j, err := s.Add()
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	existed, err := s.Delete(j.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Error("Delete of existing job reported existed=false")
	}

	existed, err = s.Delete(j.ID)
	if err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if existed {
		t.Error("Delete of missing job reported existed=true")
	}

	if _, err := s.Get(j.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Get after delete = %v, want ErrJobNotFound", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	s, path := testStore(t)

	added, err := s.Add()
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	added.Machine = "actuator"
	added.Action = "screw"
	added.Params = map[string]any{"direction": "cw", "speed": 80.0}
	if err := s.Update(added); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// A fresh store over the same file sees the same jobs and continues
	// the id sequence.
	reloaded := NewStore(DefaultTemplates())
	reloaded.Load(path)

	got, err := reloaded.Get(added.ID)
	if err != nil {
		t.Fatalf("Get after reload: %v", err)
	}
	if got.Machine != "actuator" || got.Action != "screw" {
		t.Errorf("reloaded job = %s/%s", got.Machine, got.Action)
	}
	if got.Params["direction"] != "cw" {
		t.Errorf("reloaded params = %v", got.Params)
	}

	next, err := reloaded.Add()
	if err != nil {
		t.Fatalf("Add after reload: %v", err)
	}
	if next.ID != "1" {
		t.Errorf("id after reload = %q, want 1", next.ID)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(DefaultTemplates())
	s.Load(filepath.Join(t.TempDir(), "absent.json"))

	if got := s.Count(); got != 0 {
		t.Errorf("Count = %d after missing file, want 0", got)
	}
	if _, err := s.Add(); err != nil {
		t.Fatalf("Add after missing file: %v", err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("writing empty file: %v", err)
	}

	s := NewStore(DefaultTemplates())
	s.Load(path)

	if got := s.Count(); got != 0 {
		t.Errorf("Count = %d after empty file, want 0", got)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jobs.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("writing corrupt file: %v", err)
	}

	s := NewStore(DefaultTemplates())
	s.Load(path)

	if got := s.Count(); got != 0 {
		t.Errorf("Count = %d after corrupt file, want 0", got)
	}

	// The store recovers: the next save overwrites the corrupt file.
	if _, err := s.Add(); err != nil {
		t.Fatalf("Add after corrupt file: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	var jobs map[string]Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		t.Fatalf("saved file is not valid JSON: %v", err)
	}
}

func TestListOrdersNumericIds(t *testing.T) {
	s, _ := testStore(t)

	for _, id := range []string{"10", "2", "1"} {
		if err := s.Update(Job{ID: id, Machine: "gantry", Action: "home"}); err != nil {
			t.Fatalf("Update(%s): %v", id, err)
		}
	}

	var got []string
	for _, j := range s.List() {
		got = append(got, j.ID)
	}
	want := []string{"1", "2", "10"}
	if len(got) != len(want) {
		t.Fatalf("List ids = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("List ids = %v, want %v", got, want)
			break
		}
	}
}

func TestSaveWithoutPath(t *testing.T) {
	s := NewStore(DefaultTemplates())
	s.Load("")

	if _, err := s.Add(); !errors.Is(err, ErrNoSavePath) {
		t.Errorf("Add without path = %v, want ErrNoSavePath", err)
	}

	// The job was still stored in memory.
	if got := s.Count(); got != 1 {
		t.Errorf("Count = %d, want 1 (store before persist)", got)
	}
}
