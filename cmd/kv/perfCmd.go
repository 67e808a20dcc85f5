package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/lkv/cmd/util"
	"github.com/ValentinKolb/lkv/rpc/common"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for lkv servers",
		Long:    "Runs parallel set and get benchmarks against an lkv server and reports throughput and latency percentiles.",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 32
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)

	percentiles = []float64{0.5, 0.9, 0.99}
)

// perfResult is the outcome of a single benchmark
type perfResult struct {
	bench   testing.BenchmarkResult
	latency gometrics.Timer
	errors  gometrics.Counter
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 32, util.WrapString("How large the value for the set-large test should be (in KB, must fit into the max line length of the server)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = max(1, viper.GetInt("threads"))
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for lkv servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	ctx := context.Background()
	results := make(map[string]perfResult)

	// set
	results["set"] = benchmark("set", func(getKey func(int) string) func(int) error {
		return func(i int) error {
			return lineStore.Set(ctx, getKey(i), "test")
		}
	})

	// set-large
	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)
	results["set-large"] = benchmark("set-large", func(getKey func(int) string) func(int) error {
		return func(i int) error {
			return lineStore.Set(ctx, getKey(i), largeValue)
		}
	})

	// get (keys exist)
	results["get"] = benchmark("get", func(getKey func(int) string) func(int) error {
		iterateKeys("get", func(k string) {
			if err := lineStore.Set(ctx, k, "test"); err != nil {
				log.Printf("(get) - error preparing key: %v\n", err)
			}
		})
		return func(i int) error {
			_, _, err := lineStore.Get(ctx, getKey(i))
			return err
		}
	})

	// get-missing (keys are never set)
	results["get-missing"] = benchmark("get-missing", func(getKey func(int) string) func(int) error {
		return func(i int) error {
			_, _, err := lineStore.Get(ctx, getKey(i))
			return err
		}
	})

	// mixed (every second op is a set)
	results["mixed"] = benchmark("mixed", func(getKey func(int) string) func(int) error {
		return func(i int) error {
			if i%2 == 0 {
				return lineStore.Set(ctx, getKey(i), "test")
			}
			_, _, err := lineStore.Get(ctx, getKey(i))
			return err
		}
	})

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// benchmark runs op in parallel and measures the latency of every call.
// setup is called once per benchmark run and returns the operation for the i-th call of a goroutine.
func benchmark(test string, setup func(getKey func(int) string) func(int) error) perfResult {
	result := perfResult{
		latency: gometrics.NewTimer(),
		errors:  gometrics.NewCounter(),
	}
	if shouldSkip(test) {
		printResult(test, result)
		return result
	}

	result.bench = testing.Benchmark(func(b *testing.B) {
		getKey := getKeys(test)
		op := setup(getKey)

		// the benchmark function runs several times with growing b.N, only keep the last run
		result.latency = gometrics.NewTimer()
		result.errors.Clear()

		b.SetParallelism(perfNumThreads)
		b.ResetTimer()

		b.RunParallel(func(pb *testing.PB) {
			counter := 0
			for pb.Next() {
				start := time.Now()
				if err := op(counter); err != nil {
					result.errors.Inc(1)
					log.Printf("(%s) - error: %v\n", test, err)
				}
				result.latency.UpdateSince(start)
				counter++
			}
		})
	})

	printResult(test, result)
	return result
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// getKeys returns a function to get a test key by index (with wraparound)
func getKeys(prefix string) func(int) string {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	return func(i int) string {
		return keys[i%perfKeySpread]
	}
}

// iterateKeys applies fn to every test key with the given prefix
func iterateKeys(prefix string, fn func(string)) {
	getKey := getKeys(prefix)
	for i := 0; i < perfKeySpread; i++ {
		fn(getKey(i))
	}
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.bench.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.bench.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)
	ps := result.latency.Percentiles(percentiles)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\tp50=%s p90=%s p99=%s max=%s\terrors=%d\n",
		test, nsPerOp, time.Duration(nsPerOp), opsPerSec,
		time.Duration(ps[0]), time.Duration(ps[1]), time.Duration(ps[2]), time.Duration(result.latency.Max()),
		result.errors.Count())
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"P50Ns", "P90Ns", "P99Ns", "MaxNs", "Errors",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.bench.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.bench.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}
		ps := result.latency.Percentiles(percentiles)

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			fmt.Sprintf("%.0f", ps[2]),
			strconv.FormatInt(result.latency.Max(), 10),
			strconv.FormatInt(result.errors.Count(), 10),
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
