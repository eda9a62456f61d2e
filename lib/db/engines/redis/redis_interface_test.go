package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ValentinKolb/dTxn/lib/db"
	dbtesting "github.com/ValentinKolb/dTxn/lib/db/testing"
)

// The suite needs a running redis server; set DTXN_REDIS_ADDR to enable it.
func Test(t *testing.T) {
	addr := os.Getenv("DTXN_REDIS_ADDR")
	if addr == "" {
		t.Skip("DTXN_REDIS_ADDR not set")
	}

	run := time.Now().UnixNano()
	counter := 0
	dbtesting.RunDocDBTests(t, "RedisDB", func() db.DocDB {
		counter++
		database := NewRedisDB(&DBOptions{
			Addr:    addr,
			Prefix:  fmt.Sprintf("dtxn-test:%d:%d:", run, counter),
			Timeout: time.Second,
		})
		if err := Ping(context.Background(), database); err != nil {
			t.Fatalf("redis not reachable: %v", err)
		}
		return database
	})
}

func TestFeatures(t *testing.T) {
	database := NewRedisDB(nil)
	defer database.Close()

	if database.SupportsFeature(db.FeatureSave) || database.SupportsFeature(db.FeatureLoad) {
		t.Errorf("redis engine must not claim snapshot support")
	}
	if !database.SupportsFeature(db.FeaturePut | db.FeatureGet | db.FeatureDelete) {
		t.Errorf("redis engine must support Put, Get and Delete")
	}
	if err := database.Save(nil); err != db.ErrUnsupported {
		t.Errorf("Expected ErrUnsupported from Save, got %v", err)
	}
}
