package datadog

import (
	"errors"
	"reflect"
	"testing"

	"github.com/Sayyad-Abdul-Bari/ETL-pipeline-from-Mongo-JSON-To-Postgre/internal/metrics"
)

type call struct {
	kind  string
	name  string
	value float64
	tags  []string
}

type fakeClient struct {
	calls    []call
	flushErr error
	closed   bool
}

func (f *fakeClient) Count(name string, value int64, tags []string, rate float64) error {
	f.calls = append(f.calls, call{"count", name, float64(value), tags})
	return nil
}

func (f *fakeClient) Histogram(name string, value float64, tags []string, rate float64) error {
	f.calls = append(f.calls, call{"histogram", name, value, tags})
	return nil
}

func (f *fakeClient) Flush() error { return f.flushErr }
func (f *fakeClient) Close() error { f.closed = true; return nil }

func TestNewBackend_RequiresAddr(t *testing.T) {
	t.Parallel()

	if _, err := NewBackend(Config{}); err == nil {
		t.Fatalf("NewBackend() with empty Addr: error = nil, want non-nil")
	}
}

func TestBackendForwardsWithTags(t *testing.T) {
	t.Parallel()

	fc := &fakeClient{}
	b := &Backend{client: fc}

	b.IncCounter(metrics.DocumentsTotal, 2, metrics.Labels{"status": "NEW", "job": "j"})
	b.ObserveHistogram(metrics.StepDurationSeconds, 0.25, metrics.Labels{"step": "persist"})

	want := []call{
		{"count", metrics.DocumentsTotal, 2, []string{"job:j", "status:NEW"}},
		{"histogram", metrics.StepDurationSeconds, 0.25, []string{"step:persist"}},
	}
	if !reflect.DeepEqual(fc.calls, want) {
		t.Fatalf("calls = %+v, want %+v", fc.calls, want)
	}

	if err := b.Flush(); err != nil || !fc.closed {
		t.Fatalf("Flush() = %v, closed = %v; want nil, true", err, fc.closed)
	}
}

func TestFlushError(t *testing.T) {
	t.Parallel()

	want := errors.New("agent down")
	fc := &fakeClient{flushErr: want}
	if err := (&Backend{client: fc}).Flush(); !errors.Is(err, want) {
		t.Fatalf("Flush() = %v, want %v", err, want)
	}
	if fc.closed {
		t.Fatalf("client closed after failed flush")
	}
}

func TestNilClientIsNoop(t *testing.T) {
	t.Parallel()

	b := &Backend{}
	b.IncCounter("x", 1, nil)
	b.ObserveHistogram("x", 1, nil)
	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() = %v", err)
	}
}

func TestLabelsToTags(t *testing.T) {
	t.Parallel()

	if got := labelsToTags(nil); got != nil {
		t.Fatalf("labelsToTags(nil) = %v, want nil", got)
	}
}
