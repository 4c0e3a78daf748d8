package handler

import (
	"bytes"
	"context"
	"log/slog"
	"sync"

	"github.com/hitoshi/castradar/internal/model"
	"github.com/hitoshi/castradar/internal/sample"
	jobsnapshot "github.com/hitoshi/castradar/internal/worker/snapshot"
)

type mockJobRunner struct {
	mu    sync.Mutex
	calls []jobsnapshot.RunOptions
	runFn func(ctx context.Context, opts jobsnapshot.RunOptions) jobsnapshot.Outcome
}

func (m *mockJobRunner) Run(ctx context.Context, opts jobsnapshot.RunOptions) jobsnapshot.Outcome {
	m.mu.Lock()
	m.calls = append(m.calls, opts)
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(ctx, opts)
	}
	return jobsnapshot.Outcome{Status: jobsnapshot.StatusSuccess, State: jobsnapshot.StateDone}
}

func (m *mockJobRunner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockSnapshotReader struct {
	getLatestFn func(ctx context.Context, n int) ([]*model.Snapshot, error)
	getByDateFn func(ctx context.Context, date string) (*model.Snapshot, error)
	calls       int
}

func (m *mockSnapshotReader) GetLatest(ctx context.Context, n int) ([]*model.Snapshot, error) {
	m.calls++
	if m.getLatestFn != nil {
		return m.getLatestFn(ctx, n)
	}
	return nil, nil
}

func (m *mockSnapshotReader) GetByDate(ctx context.Context, date string) (*model.Snapshot, error) {
	m.calls++
	if m.getByDateFn != nil {
		return m.getByDateFn(ctx, date)
	}
	return nil, nil
}

type mockCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	purged  int
}

func (m *mockCache) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(m.purged)
}

func (m *mockCache) SetIfVersion(key string, value []byte, version uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint64(m.purged) != version {
		return false
	}
	m.entries[key] = value
	return true
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (m *mockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

func (m *mockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
}

func (m *mockCache) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string][]byte)
	m.purged++
}

type mockSeeder struct {
	seedFn func(ctx context.Context) (*sample.Result, error)
}

func (m *mockSeeder) Seed(ctx context.Context) (*sample.Result, error) {
	return m.seedFn(ctx)
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

func newTestLogger() *slog.Logger {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type staticChannels []string

func (s staticChannels) ListChannels(ctx context.Context) []string { return s }

type emptyFetcher struct{}

func (emptyFetcher) FetchChannelCasts(ctx context.Context, channelID string, limit int) []model.Cast {
	return nil
}

type nopBuilder struct{}

func (nopBuilder) Build(date string, rankings []model.ChannelRanking, globalBest *model.Cast) *model.Snapshot {
	return &model.Snapshot{Date: date, TopChannels: rankings, GlobalMostLiked: globalBest}
}

type failingStore struct {
	insertErr error
}

func (f *failingStore) Exists(ctx context.Context, date string) (bool, error)        { return false, nil }
func (f *failingStore) Insert(ctx context.Context, s *model.Snapshot) error          { return f.insertErr }
func (f *failingStore) DeleteByDate(ctx context.Context, date string) (int64, error) { return 0, nil }
