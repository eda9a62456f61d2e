// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.DocDB interface.
//
// The suite checks the revision contract every engine must honour:
// creates conflict on existing ids, updates need the current _rev,
// concurrent writers with the same _rev produce exactly one winner,
// and documents handed out are private copies.
//
// Example usage:
//
//	factory := func() db.DocDB {
//		return NewMyDatabase()
//	}
//
//	dbtesting.RunDocDBTests(t, "MyDatabase", factory)
//	dbtesting.RunDocDBBenchmarks(b, "MyDatabase", factory)
package testing
