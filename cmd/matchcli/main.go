package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/nidhogg/findit/internal/api"
	"github.com/nidhogg/findit/internal/embedding"
	"github.com/nidhogg/findit/internal/events"
	"github.com/nidhogg/findit/internal/match"
	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "", "JSON file with {query, candidates}; - reads stdin")
	server := flag.String("server", "", "findit server URL; empty scores offline")
	preset := flag.String("preset", "", "scoring preset ("+strings.Join(match.PresetNames(), ", ")+")")
	threshold := flag.Float64("threshold", -1, "minimum score 0-100 (default from preset config)")
	dim := flag.Int("dim", 256, "hash embedding dimension for offline scoring")
	watch := flag.String("watch", "", "redis URL; print match events as they arrive")
	verbose := flag.Bool("v", false, "log scoring details")
	flag.Parse()

	if *watch != "" {
		if err := watchEvents(*watch); err != nil {
			printError("%v", err)
			os.Exit(1)
		}
		return
	}
	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	req, err := readRequest(*file)
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}
	if *preset != "" {
		req.Preset = *preset
	}
	if *threshold >= 0 {
		req.Threshold = threshold
	}

	var results []match.Result
	if *server != "" {
		results, err = postMatch(*server, req)
	} else {
		results, err = scoreOffline(req, *dim, *verbose)
	}
	if err != nil {
		printError("%v", err)
		os.Exit(1)
	}
	printResults(os.Stdout, results)
}

func readRequest(path string) (api.MatchRequest, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return api.MatchRequest{}, err
		}
		defer f.Close()
		r = f
	}
	var req api.MatchRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return api.MatchRequest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return req, nil
}

// scoreOffline runs the engine in process with deterministic hash
// embeddings. Only identical descriptions get a meaningful semantic score.
func scoreOffline(req api.MatchRequest, dim int, verbose bool) ([]match.Result, error) {
	logger := zap.NewNop()
	if verbose {
		logger, _ = zap.NewDevelopment()
	}
	query, candidates, opts, err := req.Decode()
	if err != nil {
		return nil, err
	}
	cache, err := embedding.NewCache(embedding.DefaultCacheSize, nil, logger)
	if err != nil {
		return nil, err
	}
	embedder := embedding.NewEmbedder(embedding.NewHashProvider(dim), cache, logger)
	engine, err := match.NewEngine(embedder, match.DefaultConfig(), logger)
	if err != nil {
		return nil, err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return engine.FindMatches(ctx, query, candidates, opts...)
}

func postMatch(server string, req api.MatchRequest) ([]match.Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(strings.TrimRight(server, "/")+"/api/match", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("post match: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	var results []match.Result
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return results, nil
}

func printResults(w io.Writer, results []match.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No matches above threshold.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tCANDIDATE\tSCORE\tPRESET\tBREAKDOWN")
	for i, r := range results {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\t%s\n", i+1, r.CandidateID, r.Score, r.Preset, breakdown(r.Breakdown))
	}
	tw.Flush()
}

func breakdown(b match.Breakdown) string {
	parts := make([]string, 0, len(b.Signals)+len(b.Attributes))
	for _, s := range match.Signals {
		if v, ok := b.Signals[s]; ok {
			parts = append(parts, fmt.Sprintf("%s=%.2f", s, v))
		}
	}
	attrs := make([]string, 0, len(b.Attributes))
	for name := range b.Attributes {
		attrs = append(attrs, name)
	}
	sort.Strings(attrs)
	for _, name := range attrs {
		parts = append(parts, fmt.Sprintf("%s=%.2f", name, b.Attributes[name]))
	}
	return strings.Join(parts, " ")
}

func watchEvents(redisURL string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := events.Dial(ctx, redisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", events.Stream)
	for ev := range events.NewBus(rdb, 0, nil).Subscribe(ctx) {
		switch ev.Type {
		case events.TypeMatchesFound:
			fmt.Printf("[%s] %s item %s: %d candidate(s)\n",
				ev.Timestamp.Format(time.TimeOnly), ev.Kind, ev.ItemID, len(ev.Candidates))
			for _, c := range ev.Candidates {
				fmt.Printf("    %-36s %5.1f\n", c.CandidateID, c.Score)
			}
		case events.TypeStatusChanged:
			fmt.Printf("[%s] match %s is now %s\n", ev.Timestamp.Format(time.TimeOnly), ev.PairKey, ev.Status)
		}
	}
	return nil
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31mError: "+format+"\033[0m\n", args...)
}
