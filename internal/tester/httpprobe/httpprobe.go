// Package httpprobe is a read-only runtime tester that probes the HTTP
// endpoints of a live system for availability and latency.
package httpprobe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/varalys/auditkit/internal/logging"
	"github.com/varalys/auditkit/internal/tester"
	"github.com/varalys/auditkit/internal/types"
)

// Name is the registration name of the tester.
const Name = "httpprobe"

// LatencyThreshold is the Config.Thresholds key bounding response time in
// milliseconds.
const LatencyThreshold = "latency_ms"

// Tester issues a GET against every endpoint of the system.
type Tester struct {
	Client *http.Client
	Log    *zap.Logger
}

// New returns a probe using http.DefaultClient.
func New(log *zap.Logger) *Tester {
	return &Tester{Client: http.DefaultClient, Log: logging.OrNop(log)}
}

func (t *Tester) Name() string             { return Name }
func (t *Tester) Category() types.Category { return types.CatAPI }
func (t *Tester) ReadOnly() bool           { return true }

// Run probes endpoints in name order. It stops early with ctx's error when
// the context ends, returning results gathered so far.
func (t *Tester) Run(ctx context.Context, sys tester.System, cfg tester.Config) ([]types.TestResult, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	log := logging.OrNop(t.Log)
	limit, hasLimit := cfg.Thresholds[LatencyThreshold]

	names := make([]string, 0, len(sys.Endpoints))
	for n := range sys.Endpoints {
		names = append(names, n)
	}
	sort.Strings(names)

	results := make([]types.TestResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		url := sys.Endpoints[name]
		status, latency, err := probe(ctx, client, url)
		ms := float64(latency.Microseconds()) / 1000
		metrics := map[string]float64{LatencyThreshold: ms, "status": float64(status)}
		log.Debug("probe", zap.String("endpoint", name), zap.Int("status", status), zap.Duration("latency", latency))

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			results = append(results, tester.Fail(types.SevHigh, types.CatAPI, "Endpoint unreachable", name,
				fmt.Sprintf("GET %s: %v", url, err), metrics))
		case status < 200 || status > 299:
			results = append(results, tester.Fail(types.SevHigh, types.CatAPI, "Endpoint returned error status", name,
				fmt.Sprintf("GET %s returned %d", url, status), metrics))
		case hasLimit && ms > limit:
			results = append(results, tester.Fail(types.SevMed, types.CatAPI, "Endpoint latency above threshold", name,
				fmt.Sprintf("GET %s took %.1fms (limit %gms)", url, ms, limit), metrics))
		default:
			results = append(results, tester.Pass(types.CatAPI, "Endpoint healthy", name, metrics))
		}
	}
	return results, nil
}

func probe(ctx context.Context, client *http.Client, url string) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, time.Since(start), err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, time.Since(start), nil
}
