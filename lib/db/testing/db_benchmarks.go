package testing

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dTxn/lib/db"
	"github.com/ValentinKolb/dTxn/lib/doc"
)

// RunDocDBBenchmarks runs all benchmarks for a document database implementation
func RunDocDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Create", func(b *testing.B) {
		benchmarkCreate(b, factory())
	})

	b.Run("Update", func(b *testing.B) {
		benchmarkUpdate(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

func benchmarkCreate(b *testing.B, database db.DocDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	var counter atomic.Int64
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			id := fmt.Sprintf("create-%d", counter.Add(1))
			_, _ = database.Put(ctx, doc.Document{"_id": id, "val": "x"})
		}
	})
}

// Sequential read-modify-write on a single document
func benchmarkUpdate(b *testing.B, database db.DocDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	ctx := context.Background()
	rev, err := database.Put(ctx, doc.New("hot"))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rev, err = database.Put(ctx, doc.Document{"_id": "hot", "_rev": rev, "n": float64(i)})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkGet(b *testing.B, database db.DocDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)

	ctx := context.Background()
	const docs = 1000
	for i := 0; i < docs; i++ {
		_, _ = database.Put(ctx, doc.Document{"_id": fmt.Sprintf("get-%d", i), "val": float64(i)})
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _, _ = database.Get(ctx, fmt.Sprintf("get-%d", i%docs))
			i++
		}
	})
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureSave|db.FeatureLoad)

	ctx := context.Background()
	for i := 0; i < 10000; i++ {
		_, _ = database.Put(ctx, doc.Document{"_id": fmt.Sprintf("snap-%d", i), "val": float64(i)})
	}

	var buf bytes.Buffer
	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			buf.Reset()
			if err := database.Save(&buf); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(buf.Bytes())); err != nil {
				b.Fatal(err)
			}
		}
	})
}
