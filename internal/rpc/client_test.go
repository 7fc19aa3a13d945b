package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// fakeTransport fails with the scripted errors in order, then succeeds with
// a fixed raw result.
type fakeTransport struct {
	errs   []error
	result string
	calls  int
}

func (f *fakeTransport) CallContext(ctx context.Context, result any, method string, args ...any) error {
	call := f.calls
	f.calls++
	if call < len(f.errs) && f.errs[call] != nil {
		return f.errs[call]
	}
	if raw, ok := result.(*json.RawMessage); ok {
		*raw = json.RawMessage(f.result)
	}
	return nil
}

func (f *fakeTransport) Close() {}

func newRetryTestClient(transport *fakeTransport, maxRetries int) *EVMClient {
	return &EVMClient{
		rpcClient:      transport,
		chain:          "ethereum",
		requestTimeout: time.Second,
		retry: RetryConfig{
			MaxRetries:      maxRetries,
			BaseDelay:       time.Millisecond,
			MaxDelay:        2 * time.Millisecond,
			ExponentialBase: 2.0,
		},
		limiter: rate.NewLimiter(rate.Inf, 1),
		logger:  zap.NewNop(),
	}
}

func TestMakeRequest_RetriesTransientFailures(t *testing.T) {
	transport := &fakeTransport{
		errs:   []error{errors.New("connection reset"), errors.New("timeout")},
		result: `"0x10"`,
	}
	c := newRetryTestClient(transport, 3)

	var out string
	if err := c.MakeRequest(context.Background(), &out, "eth_blockNumber"); err != nil {
		t.Fatalf("MakeRequest() error: %v", err)
	}
	if out != "0x10" {
		t.Errorf("result = %q, want 0x10", out)
	}
	if transport.calls != 3 {
		t.Errorf("transport saw %d calls, want 3", transport.calls)
	}
}

func TestMakeRequest_ExhaustionSurfacesLastError(t *testing.T) {
	transport := &fakeTransport{
		errs: []error{
			errors.New("first failure"),
			errors.New("second failure"),
			errors.New("final failure"),
		},
	}
	c := newRetryTestClient(transport, 2)

	err := c.MakeRequest(context.Background(), nil, "eth_blockNumber")
	if err == nil {
		t.Fatal("MakeRequest() succeeded after exhausting retries")
	}
	if transport.calls != 3 {
		t.Errorf("transport saw %d calls, want MaxRetries+1 = 3", transport.calls)
	}
	if !strings.Contains(err.Error(), "final failure") {
		t.Errorf("error = %q, want the last attempt's error surfaced", err)
	}
}

func TestMakeRequest_TooManyResultsSkipsRetry(t *testing.T) {
	transport := &fakeTransport{
		errs: []error{errors.New("query returned more than 10000 results. Try with this block range [0x100, 0x200]")},
	}
	c := newRetryTestClient(transport, 5)

	err := c.MakeRequest(context.Background(), nil, "eth_getLogs")
	if !IsTooManyResults(err) {
		t.Fatalf("error = %v, want a too-many-results error", err)
	}
	if transport.calls != 1 {
		t.Errorf("transport saw %d calls, want 1 for a non-retryable error", transport.calls)
	}
}

func TestMakeRequest_CancelledContextStopsRetrying(t *testing.T) {
	transport := &fakeTransport{
		errs: []error{errors.New("boom"), errors.New("boom"), errors.New("boom")},
	}
	c := newRetryTestClient(transport, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.MakeRequest(ctx, nil, "eth_blockNumber")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
