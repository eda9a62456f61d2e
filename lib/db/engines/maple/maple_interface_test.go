package maple

import (
	"context"
	"testing"

	"github.com/ValentinKolb/dTxn/lib/db"
	dbtesting "github.com/ValentinKolb/dTxn/lib/db/testing"
	"github.com/ValentinKolb/dTxn/lib/doc"
)

func Test(t *testing.T) {
	dbtesting.RunDocDBTests(t, "MapleDB", func() db.DocDB {
		return NewMapleDB(nil)
	})
}

func TestClosed(t *testing.T) {
	database := NewMapleDB(nil)
	_ = database.Close()
	if _, err := database.Put(context.Background(), doc.New("x")); err == nil {
		t.Errorf("Expected Put on a closed database to fail")
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunDocDBBenchmarks(b, "MapleDB", func() db.DocDB {
		return NewMapleDB(&DBOptions{InitialCapacity: 1024})
	})
}
