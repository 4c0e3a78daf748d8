package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/castradar/internal/model"
)

// MemorySnapshotRepo はプロセス内メモリにスナップショットを保持するリポジトリ。
// STORE_DRIVER=memory のローカル開発とテストで使用する。プロセス終了で内容は失われる。
type MemorySnapshotRepo struct {
	mu        sync.RWMutex
	snapshots map[string]*model.Snapshot
	now       func() time.Time
}

// NewMemorySnapshotRepo はMemorySnapshotRepoを生成する。
func NewMemorySnapshotRepo() *MemorySnapshotRepo {
	return &MemorySnapshotRepo{
		snapshots: make(map[string]*model.Snapshot),
		now:       time.Now,
	}
}

// Exists は指定日付のスナップショットが存在するかを返す。
func (r *MemorySnapshotRepo) Exists(_ context.Context, date string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.snapshots[date]
	return ok, nil
}

// Insert はスナップショットを保存する。同一日付が既に存在する場合は競合エラーを返す。
func (r *MemorySnapshotRepo) Insert(_ context.Context, snapshot *model.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshots[snapshot.Date]; ok {
		return &model.StorageError{Op: "insert", Err: model.ErrSnapshotConflict}
	}

	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	snapshot.CreatedAt = r.now().UTC()

	stored := cloneSnapshot(snapshot)
	if stored.TopChannels == nil {
		stored.TopChannels = []model.ChannelRanking{}
	}
	r.snapshots[snapshot.Date] = stored
	return nil
}

// DeleteOlderThan はcutoffDateより前の日付のスナップショットを削除する。
// 日付はYYYY-MM-DD形式のため文字列比較で前後を判定できる。
func (r *MemorySnapshotRepo) DeleteOlderThan(_ context.Context, cutoffDate string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for date := range r.snapshots {
		if date < cutoffDate {
			delete(r.snapshots, date)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteByDate は指定日付のスナップショットを削除する。
func (r *MemorySnapshotRepo) DeleteByDate(_ context.Context, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshots[date]; !ok {
		return 0, nil
	}
	delete(r.snapshots, date)
	return 1, nil
}

// GetLatest は新しい日付順に最大n件のスナップショットを返す。
func (r *MemorySnapshotRepo) GetLatest(_ context.Context, n int) ([]*model.Snapshot, error) {
	if n <= 0 {
		return []*model.Snapshot{}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	dates := make([]string, 0, len(r.snapshots))
	for date := range r.snapshots {
		dates = append(dates, date)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	if n < len(dates) {
		dates = dates[:n]
	}

	out := make([]*model.Snapshot, 0, len(dates))
	for _, date := range dates {
		out = append(out, cloneSnapshot(r.snapshots[date]))
	}
	return out, nil
}

// GetByDate は指定日付のスナップショットを取得する。見つからない場合はnilを返す。
func (r *MemorySnapshotRepo) GetByDate(_ context.Context, date string) (*model.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return cloneSnapshot(r.snapshots[date]), nil
}
