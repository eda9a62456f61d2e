package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/doc"
)

// DBFactory is a function that creates a new, empty instance of a DocDB implementation
type DBFactory func() db.DocDB

// RunDocDBTests runs a comprehensive test suite for a DocDB implementation.
func RunDocDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("CreateConflict", func(t *testing.T) {
			testCreateConflict(t, factory())
		})

		t.Run("StaleRev", func(t *testing.T) {
			testStaleRev(t, factory())
		})

		t.Run("RevOnMissing", func(t *testing.T) {
			testRevOnMissing(t, factory())
		})

		t.Run("MissingID", func(t *testing.T) {
			testMissingID(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("IsolatedCopies", func(t *testing.T) {
			testIsolatedCopies(t, factory())
		})

		t.Run("ConcurrentWriters", func(t *testing.T) {
			testConcurrentWriters(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.DocDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustPut(t testing.TB, database db.DocDB, d doc.Document) string {
	t.Helper()
	rev, err := database.Put(context.Background(), d)
	if err != nil {
		t.Fatalf("Put(%s) failed: %v", d.ID(), err)
	}
	return rev
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)
	ctx := context.Background()

	rev1 := mustPut(t, database, doc.Document{"_id": "a", "val": 1.0})
	if db.RevGeneration(rev1) != 1 {
		t.Errorf("Expected first revision to have generation 1, got %s", rev1)
	}

	got, loaded, err := database.Get(ctx, "a")
	if err != nil || !loaded {
		t.Fatalf("Expected document a to exist, loaded=%v err=%v", loaded, err)
	}
	if got.Rev() != rev1 {
		t.Errorf("Expected rev %s, got %s", rev1, got.Rev())
	}
	if got["val"] != 1.0 {
		t.Errorf("Expected val 1, got %v", got["val"])
	}

	got["val"] = 2.0
	rev2 := mustPut(t, database, got)
	if rev2 == rev1 {
		t.Errorf("Expected a new revision after update")
	}
	if db.RevGeneration(rev2) != 2 {
		t.Errorf("Expected generation 2, got %s", rev2)
	}

	got, _, _ = database.Get(ctx, "a")
	if got["val"] != 2.0 {
		t.Errorf("Expected val 2 after update, got %v", got["val"])
	}

	_, loaded, err = database.Get(ctx, "nonexistent")
	if err != nil {
		t.Errorf("Get on a missing document should not fail: %v", err)
	}
	if loaded {
		t.Errorf("Expected nonexistent document to return loaded=false")
	}
}

func testCreateConflict(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	mustPut(t, database, doc.New("dup"))

	_, err := database.Put(context.Background(), doc.New("dup"))
	if !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict when creating an existing document, got %v", err)
	}
}

func testStaleRev(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	rev1 := mustPut(t, database, doc.New("s"))
	stale := doc.Document{"_id": "s", "_rev": rev1}
	mustPut(t, database, doc.Document{"_id": "s", "_rev": rev1, "n": 1.0})

	_, err := database.Put(context.Background(), stale)
	if !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict for a stale revision, got %v", err)
	}

	got, _, _ := database.Get(context.Background(), "s")
	if got["n"] != 1.0 {
		t.Errorf("Rejected write must not change the document, got %v", got)
	}
}

func testRevOnMissing(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	_, err := database.Put(context.Background(), doc.Document{"_id": "ghost", "_rev": "1-abc"})
	if !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict when updating a missing document, got %v", err)
	}
}

func testMissingID(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	_, err := database.Put(context.Background(), doc.Document{"val": 1.0})
	if !errors.Is(err, db.ErrMissingID) {
		t.Errorf("Expected ErrMissingID, got %v", err)
	}
}

func testDelete(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete)
	ctx := context.Background()

	rev := mustPut(t, database, doc.New("d"))

	if err := database.Delete(ctx, "d", "1-wrong"); !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict for delete with wrong rev, got %v", err)
	}

	if err := database.Delete(ctx, "d", rev); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, loaded, _ := database.Get(ctx, "d"); loaded {
		t.Errorf("Expected document to be gone after delete")
	}

	if err := database.Delete(ctx, "d", rev); !errors.Is(err, db.ErrConflict) {
		t.Errorf("Expected ErrConflict when deleting a missing document, got %v", err)
	}

	// the id can be created again after deletion
	mustPut(t, database, doc.New("d"))
}

func testIsolatedCopies(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)
	ctx := context.Background()

	in := doc.Document{"_id": "iso", "nested": map[string]any{"k": "v"}}
	mustPut(t, database, in)

	if in.HasRev() {
		t.Errorf("Put must not modify the document passed in")
	}
	in["nested"].(map[string]any)["k"] = "changed"

	got, _, _ := database.Get(ctx, "iso")
	if got["nested"].(map[string]any)["k"] != "v" {
		t.Errorf("Stored document changed through the caller's reference")
	}

	got["nested"].(map[string]any)["k"] = "changed"
	again, _, _ := database.Get(ctx, "iso")
	if again["nested"].(map[string]any)["k"] != "v" {
		t.Errorf("Get should return a copy, not a reference to the stored document")
	}
}

func testConcurrentWriters(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)
	ctx := context.Background()

	rev := mustPut(t, database, doc.Document{"_id": "race", "n": 0.0})

	const writers = 16
	var (
		wg        sync.WaitGroup
		winners   atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := database.Put(ctx, doc.Document{"_id": "race", "_rev": rev, "n": float64(i)})
			switch {
			case err == nil:
				winners.Add(1)
			case errors.Is(err, db.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("Expected exactly one writer to win, got %d", winners.Load())
	}
	if conflicts.Load() != writers-1 {
		t.Errorf("Expected %d conflicts, got %d", writers-1, conflicts.Load())
	}

	// many documents written in parallel
	var ok atomic.Int32
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := database.Put(ctx, doc.New(fmt.Sprintf("par-%d", i))); err == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if ok.Load() != 100 {
		t.Errorf("Expected 100 successful creates, got %d", ok.Load())
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureSave|db.FeatureLoad)
	ctx := context.Background()

	revs := make(map[string]string)
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("doc-%d", i)
		revs[id] = mustPut(t, database, doc.Document{"_id": id, "i": float64(i)})
	}

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	restored := factory()
	defer restored.Close()
	if err := restored.Load(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for id, rev := range revs {
		got, loaded, err := restored.Get(ctx, id)
		if err != nil || !loaded {
			t.Errorf("Expected %s to exist after load, loaded=%v err=%v", id, loaded, err)
			continue
		}
		if got.Rev() != rev {
			t.Errorf("Expected %s to keep rev %s, got %s", id, rev, got.Rev())
		}
	}

	// revisions stay valid after a restore
	if _, err := restored.Put(ctx, doc.Document{"_id": "doc-0", "_rev": revs["doc-0"]}); err != nil {
		t.Errorf("Update with restored revision failed: %v", err)
	}

	if err := restored.Load(bytes.NewReader([]byte("garbage\n"))); err == nil {
		t.Errorf("Expected Load to reject an invalid snapshot")
	}
}

func testInfo(t *testing.T, database db.DocDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut)

	for i := 0; i < 3; i++ {
		mustPut(t, database, doc.New(fmt.Sprintf("info-%d", i)))
	}

	info := database.GetInfo()
	if info.DocCount != 3 {
		t.Errorf("Expected DocCount 3, got %d", info.DocCount)
	}
	if info.DbType == "" {
		t.Errorf("Expected DbType to be set")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Feature %s listed in info but not supported", f)
		}
	}
}
