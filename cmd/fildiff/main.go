// Command fildiff replays a catalogue of Filecoin JSON-RPC calls against a
// candidate node and a reference node and reports every divergence as a
// Markdown table.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/fildiff/fildiff/chain"
	"github.com/fildiff/fildiff/compare"
	"github.com/fildiff/fildiff/rpc"
)

var (
	version = "v0.1.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("fildiff", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: fildiff [flags] [snapshot.car[.zst] ...]\n\n")
		fs.PrintDefaults()
	}

	// Endpoint flags.
	candidateSpec := fs.String("candidate", "/ip4/127.0.0.1/tcp/2345/http", "Candidate node endpoint ([token:]multiaddr)")
	referenceSpec := fs.String("reference", "/ip4/127.0.0.1/tcp/1234/http", "Reference node endpoint ([token:]multiaddr)")

	// Selection flags.
	filterSpec := fs.String("filter", "", "Method substring filter, ! prefix rejects")
	filterFile := fs.String("filter-file", "", "Path to a filter list file (#, ! and blank lines)")
	runMode := fs.String("run-ignored", "default", "Which tests run: default, ignored, all")
	nTipsets := fs.Int("n-tipsets", 20, "How many tipsets to walk back from the snapshot head")

	// Execution flags.
	concurrency := fs.Int("concurrency", 8, "Maximum number of concurrent tests")
	failFast := fs.Bool("fail-fast", false, "Stop scheduling new tests after the first divergence")
	drain := fs.Bool("drain", false, "With -fail-fast, wait for in-flight tests instead of abandoning them")
	callTimeout := fs.Duration("timeout", rpc.DefaultCallTimeout, "Per-call timeout")
	verbosity := fs.Int("verbosity", 3, "Log level 0-5 (0=silent, 5=trace)")
	showVersion := fs.Bool("version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *showVersion {
		fmt.Printf("fildiff %s (%s)\n", version, commit)
		return 0
	}

	setupLogging(*verbosity)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	candidate, err := rpc.ParseEndpoint(*candidateSpec)
	if err != nil {
		log.Error("Invalid candidate endpoint", "err", err)
		return 1
	}
	reference, err := rpc.ParseEndpoint(*referenceSpec)
	if err != nil {
		log.Error("Invalid reference endpoint", "err", err)
		return 1
	}
	transport, err := rpc.DeriveTransport(candidate, reference)
	if err != nil {
		log.Error("Endpoint transports do not match", "err", err)
		return 1
	}

	mode, err := compare.ParseRunMode(*runMode)
	if err != nil {
		log.Error("Invalid run mode", "err", err)
		return 1
	}
	filter, err := buildFilter(*filterSpec, *filterFile)
	if err != nil {
		log.Error("Invalid filter", "err", err)
		return 1
	}

	tests := compare.StaticTests()
	if paths := fs.Args(); len(paths) > 0 {
		snapTests, err := snapshotTests(ctx, paths, *nTipsets)
		if err != nil {
			log.Error("Snapshot test generation failed", "err", err)
			return 1
		}
		tests = append(tests, snapTests...)
	}
	if transport == rpc.TransportWS {
		tests = append(tests, compare.WebsocketTests()...)
	}
	compare.SortTests(tests)

	log.Info("Starting comparison",
		"version", version,
		"tests", len(tests),
		"transport", transport,
		"concurrency", *concurrency,
	)

	candidateClient, err := rpc.Dial(ctx, candidate, *callTimeout)
	if err != nil {
		log.Error("Dialing candidate failed", "err", err)
		return 1
	}
	defer candidateClient.Close()
	referenceClient, err := rpc.Dial(ctx, reference, *callTimeout)
	if err != nil {
		log.Error("Dialing reference failed", "err", err)
		return 1
	}
	defer referenceClient.Close()

	results, err := compare.Run(ctx, tests, candidateClient, referenceClient, compare.Options{
		Filter:      filter,
		FailFast:    *failFast,
		Drain:       *drain,
		RunMode:     mode,
		Concurrency: *concurrency,
	})
	if err != nil {
		log.Error("Run aborted", "err", err)
		return 1
	}

	if err := results.WriteReport(os.Stdout); err != nil {
		if errors.Is(err, compare.ErrTestsFailed) {
			return 1
		}
		log.Error("Writing report failed", "err", err)
		return 1
	}
	return 0
}

func snapshotTests(ctx context.Context, paths []string, nTipsets int) ([]compare.RpcTest, error) {
	start := time.Now()
	snap, err := chain.OpenSnapshot(ctx, paths)
	if err != nil {
		return nil, err
	}
	log.Info("Loaded snapshots", "count", len(paths), "elapsed", time.Since(start))
	return compare.SnapshotTests(ctx, snap, nTipsets)
}

func buildFilter(inline, file string) (compare.FilterList, error) {
	if file != "" {
		return compare.LoadFilterList(file)
	}
	return compare.NewFilterList(inline), nil
}

func setupLogging(verbosity int) {
	var lvl slog.Level
	switch {
	case verbosity <= 1:
		lvl = slog.LevelError
	case verbosity == 2:
		lvl = slog.LevelWarn
	case verbosity == 3:
		lvl = slog.LevelInfo
	case verbosity == 4:
		lvl = slog.LevelDebug
	default:
		lvl = log.LevelTrace
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}
