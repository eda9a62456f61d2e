package doc

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dTxn/cmd/util"
	document "github.com/ValentinKolb/dTxn/lib/doc"
	"github.com/ValentinKolb/dTxn/lib/txn"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for document transactions",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix  = "__test"
	perfNumThreads = 10
	perfKeySpread  = 100
	perfSkip       = make([]string, 0)
)

// benchResult is a benchmark result together with the client side latency and conflict metrics
type benchResult struct {
	testing.BenchmarkResult
	timer     metrics.Timer
	conflicts metrics.Counter
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. create,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different documents to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for document transactions")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Database: %s\n", util.GetDatabase())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	registry := metrics.NewRegistry()
	results := make(map[string]benchResult)
	tests := []struct {
		name   string
		keys   int
		seed   bool
		create bool
		op     txn.Operation
	}{
		{name: "create", keys: perfKeySpread, create: true, op: noopOp},
		{name: "update", keys: perfKeySpread, seed: true, op: incrementOp},
		{name: "update-contended", keys: 1, seed: true, op: incrementOp},
		{name: "noop", keys: perfKeySpread, seed: true, op: noopOp},
	}

	for _, tt := range tests {
		res := benchmarkTxn(registry, tt.name, tt.keys, tt.seed, tt.create, tt.op)
		results[tt.name] = res
		printBenchResult(tt.name, res)
	}

	res := benchmarkGet(registry)
	results["get"] = res
	printBenchResult("get", res)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

func noopOp(context.Context, document.Document) (document.Document, error) {
	return nil, nil
}

func incrementOp(_ context.Context, d document.Document) (document.Document, error) {
	n, _ := d["n"].(float64)
	d["n"] = n + 1
	return nil, nil
}

// benchmarkTxn runs op as transactions spread over keys documents
func benchmarkTxn(registry metrics.Registry, test string, keys int, seed, create bool, op txn.Operation) benchResult {
	res := benchResult{
		timer:     metrics.GetOrRegisterTimer("txn."+test, registry),
		conflicts: metrics.GetOrRegisterCounter("conflicts."+test, registry),
	}
	cfg := txnConfig.With(
		txn.WithCreate(create),
		txn.WithObserver(func(ev txn.Event) {
			if ev.Type == txn.EventConflict {
				res.conflicts.Inc(1)
			}
		}),
	)

	res.BenchmarkResult = testing.Benchmark(func(b *testing.B) {
		if shouldSkip(test) {
			return
		}

		// prepare keys
		getKey, iter := getKeys(test, keys)

		// create documents
		if seed {
			iter(func(k string) {
				if _, err := txn.Do(context.Background(), txn.Request{ID: k}, noopOp, cfg.With(txn.WithCreate(true))); err != nil {
					Logger.Errorf("(%s) - error creating doc: %v", test, err)
				}
			})
		}

		// cleanup
		b.Cleanup(func() {
			iter(func(k string) {
				if err := deleteDoc(context.Background(), k, ""); err != nil && !isNotFound(err) {
					Logger.Errorf("(%s) - error deleting doc: %v", test, err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				_, err := txn.Do(context.Background(), txn.Request{ID: getKey(counter)}, op, cfg)
				res.timer.UpdateSince(start)
				if err != nil {
					Logger.Errorf("(%s) - transaction failed: %v", test, err)
				}
				counter++
			}
		})
	})
	return res
}

// benchmarkGet measures plain document reads without a transaction
func benchmarkGet(registry metrics.Registry) benchResult {
	res := benchResult{
		timer:     metrics.GetOrRegisterTimer("txn.get", registry),
		conflicts: metrics.GetOrRegisterCounter("conflicts.get", registry),
	}

	res.BenchmarkResult = testing.Benchmark(func(b *testing.B) {
		if shouldSkip("get") {
			return
		}

		getKey, iter := getKeys("get", perfKeySpread)
		cfg := txnConfig.With(txn.WithCreate(true))
		iter(func(k string) {
			if _, err := txn.Do(context.Background(), txn.Request{ID: k}, noopOp, cfg); err != nil {
				Logger.Errorf("(get) - error creating doc: %v", err)
			}
		})

		b.Cleanup(func() {
			iter(func(k string) {
				if err := deleteDoc(context.Background(), k, ""); err != nil {
					Logger.Errorf("(get) - error deleting doc: %v", err)
				}
			})
		})

		b.SetParallelism(perfNumThreads)

		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				_, err := request(context.Background(), "GET", docPath(getKey(counter)), nil)
				res.timer.UpdateSince(start)
				if err != nil {
					Logger.Errorf("(get) - error getting doc: %v", err)
				}
				counter++
			}
		})
	})
	return res
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, txn.ErrNotFound)
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string, n int) (func(int) string, func(func(string))) {
	keys := make([]string, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%n]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printBenchResult prints the result of a benchmark test in a formatted way
func printBenchResult(test string, result benchResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	p := result.timer.Percentiles([]float64{0.5, 0.99})

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p99=%s\tconflicts=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(p[0]), time.Duration(p[1]), result.conflicts.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]benchResult) error {
	config := util.GetClientConfig()

	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50", "P99", "Conflicts", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Database", "Threads", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		p := result.timer.Percentiles([]float64{0.5, 0.99})

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			time.Duration(p[0]).String(),
			time.Duration(p[1]).String(),
			strconv.FormatInt(result.conflicts.Count(), 10),
			skipped,
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			util.GetDatabase(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
