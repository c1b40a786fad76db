package testutil

import (
	"context"
	"sync"

	"github.com/roach88/calcsync/internal/remote"
)

// FaultyService wraps a remote.Service and fails chosen operations. Ops
// are the remote.Op* names used by remote.Recorder.
type FaultyService struct {
	remote.Service

	mu     sync.Mutex
	faults map[string]fault
}

type fault struct {
	err       error
	remaining int // < 0 fails forever
}

// NewFaultyService wraps svc with no faults installed.
func NewFaultyService(svc remote.Service) *FaultyService {
	return &FaultyService{Service: svc, faults: make(map[string]fault)}
}

// Fail makes every call to op return err until Heal is called.
func (s *FaultyService) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault{err: err, remaining: -1}
}

// FailTimes makes the next n calls to op return err.
func (s *FaultyService) FailTimes(op string, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = fault{err: err, remaining: n}
}

// Heal removes every installed fault.
func (s *FaultyService) Heal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]fault)
}

func (s *FaultyService) check(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.faults[op]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(s.faults, op)
		} else {
			s.faults[op] = f
		}
	}
	return f.err
}

func (s *FaultyService) Drilldown(ctx context.Context, category string, selection []remote.Pair) (remote.DrillResult, error) {
	if err := s.check(remote.OpDrilldown); err != nil {
		return remote.DrillResult{}, err
	}
	return s.Service.Drilldown(ctx, category, selection)
}

func (s *FaultyService) CreateItem(ctx context.Context, containerID, category string, key []remote.Pair, values map[string]string, opts remote.ItemOptions) (string, error) {
	if err := s.check(remote.OpCreateItem); err != nil {
		return "", err
	}
	return s.Service.CreateItem(ctx, containerID, category, key, values, opts)
}

func (s *FaultyService) GetItem(ctx context.Context, ref remote.ItemRef) (remote.Item, error) {
	if err := s.check(remote.OpGetItem); err != nil {
		return remote.Item{}, err
	}
	return s.Service.GetItem(ctx, ref)
}

func (s *FaultyService) UpdateItem(ctx context.Context, ref remote.ItemRef, values map[string]string, opts remote.ItemOptions) error {
	if err := s.check(remote.OpUpdateItem); err != nil {
		return err
	}
	return s.Service.UpdateItem(ctx, ref, values, opts)
}

func (s *FaultyService) DeleteItem(ctx context.Context, ref remote.ItemRef) error {
	if err := s.check(remote.OpDeleteItem); err != nil {
		return err
	}
	return s.Service.DeleteItem(ctx, ref)
}

func (s *FaultyService) GetOrCreateContainer(ctx context.Context) (string, error) {
	if err := s.check(remote.OpGetOrCreateContainer); err != nil {
		return "", err
	}
	return s.Service.GetOrCreateContainer(ctx)
}

// ItemMetadata forwards to the wrapped service when it is a
// remote.MetadataSource.
func (s *FaultyService) ItemMetadata(ctx context.Context, ref remote.ItemRef) (map[string]string, error) {
	if err := s.check(remote.OpItemMetadata); err != nil {
		return nil, err
	}
	if ms, ok := s.Service.(remote.MetadataSource); ok {
		return ms.ItemMetadata(ctx, ref)
	}
	return nil, nil
}
