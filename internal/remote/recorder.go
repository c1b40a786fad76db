package remote

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

// Operation names recorded by Recorder.
const (
	OpDrilldown            = "drilldown"
	OpCreateItem           = "item_create"
	OpGetItem              = "item_get"
	OpUpdateItem           = "item_update"
	OpDeleteItem           = "item_delete"
	OpGetOrCreateContainer = "container_get_or_create"
	OpItemMetadata         = "item_metadata"
)

// Call is one recorded service invocation. Args hold only strings, string
// maps and slices so a trace can be canonically encoded.
type Call struct {
	Op    string         `json:"op"`
	Args  map[string]any `json:"args"`
	Error string         `json:"error,omitempty"`
}

// Recorder wraps a Service, logging and recording every call.
// It is safe for concurrent use.
type Recorder struct {
	svc    Service
	logger *slog.Logger

	mu    sync.Mutex
	calls []Call
}

// NewRecorder wraps svc. A nil logger disables logging.
func NewRecorder(svc Service, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Recorder{svc: svc, logger: logger}
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Len returns the number of recorded calls.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// Since returns the calls recorded after the first n.
func (r *Recorder) Since(n int) []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n >= len(r.calls) {
		return nil
	}
	return append([]Call(nil), r.calls[n:]...)
}

// Count returns how many calls of op were recorded.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *Recorder) record(ctx context.Context, op string, args map[string]any, err error) {
	c := Call{Op: op, Args: args}
	if err != nil {
		c.Error = err.Error()
		r.logger.WarnContext(ctx, "remote call failed", "op", op, "error", err)
	} else {
		r.logger.DebugContext(ctx, "remote call", "op", op)
	}
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func encodePairs(pairs []Pair) []any {
	out := make([]any, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, []string{p.Path, p.Value})
	}
	return out
}

func copyValues(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *Recorder) Drilldown(ctx context.Context, category string, selection []Pair) (DrillResult, error) {
	res, err := r.svc.Drilldown(ctx, category, selection)
	r.record(ctx, OpDrilldown, map[string]any{
		"category":  category,
		"selection": encodePairs(selection),
	}, err)
	return res, err
}

func (r *Recorder) CreateItem(ctx context.Context, containerID, category string, key []Pair, values map[string]string, opts ItemOptions) (string, error) {
	id, err := r.svc.CreateItem(ctx, containerID, category, key, values, opts)
	r.record(ctx, OpCreateItem, map[string]any{
		"container": containerID,
		"category":  category,
		"key":       encodePairs(key),
		"values":    copyValues(values),
		"id":        id,
	}, err)
	return id, err
}

func (r *Recorder) GetItem(ctx context.Context, ref ItemRef) (Item, error) {
	item, err := r.svc.GetItem(ctx, ref)
	r.record(ctx, OpGetItem, map[string]any{"container": ref.ContainerID, "id": ref.ID}, err)
	return item, err
}

func (r *Recorder) UpdateItem(ctx context.Context, ref ItemRef, values map[string]string, opts ItemOptions) error {
	err := r.svc.UpdateItem(ctx, ref, values, opts)
	r.record(ctx, OpUpdateItem, map[string]any{
		"container": ref.ContainerID,
		"id":        ref.ID,
		"values":    copyValues(values),
	}, err)
	return err
}

func (r *Recorder) DeleteItem(ctx context.Context, ref ItemRef) error {
	err := r.svc.DeleteItem(ctx, ref)
	r.record(ctx, OpDeleteItem, map[string]any{"container": ref.ContainerID, "id": ref.ID}, err)
	return err
}

func (r *Recorder) GetOrCreateContainer(ctx context.Context) (string, error) {
	id, err := r.svc.GetOrCreateContainer(ctx)
	r.record(ctx, OpGetOrCreateContainer, map[string]any{"id": id}, err)
	return id, err
}

// ItemMetadata delegates when the wrapped service is a MetadataSource and
// returns no metadata otherwise.
func (r *Recorder) ItemMetadata(ctx context.Context, ref ItemRef) (map[string]string, error) {
	ms, ok := r.svc.(MetadataSource)
	if !ok {
		return nil, nil
	}
	md, err := ms.ItemMetadata(ctx, ref)
	r.record(ctx, OpItemMetadata, map[string]any{"container": ref.ContainerID, "id": ref.ID}, err)
	return md, err
}
