// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/castradar/internal/model"
)

// SnapshotRepository は日次スナップショットの永続化インターフェース。
// 日付（UTC, YYYY-MM-DD）ごとに最大1件のレコードを保持する。
type SnapshotRepository interface {
	// Exists は指定日付のスナップショットが存在するかを返す。
	Exists(ctx context.Context, date string) (bool, error)

	// Insert はスナップショットを保存する。IDが空の場合は採番し、CreatedAtは保存時刻で上書きする。
	// 同一日付のレコードが既に存在する場合は model.ErrSnapshotConflict を含む *model.StorageError を返す。
	Insert(ctx context.Context, snapshot *model.Snapshot) error

	// DeleteOlderThan はcutoffDateより前の日付のスナップショットを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoffDate string) (int64, error)

	// DeleteByDate は指定日付のスナップショットを削除する。強制再生成でのみ使用する。
	DeleteByDate(ctx context.Context, date string) (int64, error)

	// GetLatest は新しい日付順に最大n件のスナップショットを返す。
	GetLatest(ctx context.Context, n int) ([]*model.Snapshot, error)

	// GetByDate は指定日付のスナップショットを取得する。見つからない場合はnilを返す。
	GetByDate(ctx context.Context, date string) (*model.Snapshot, error)
}

// cloneSnapshot はスナップショットのディープコピーを返す。
func cloneSnapshot(s *model.Snapshot) *model.Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.TopChannels = make([]model.ChannelRanking, len(s.TopChannels))
	for i, r := range s.TopChannels {
		c.TopChannels[i] = r
		if r.MostLikedCast != nil {
			cast := *r.MostLikedCast
			c.TopChannels[i].MostLikedCast = &cast
		}
	}
	if s.GlobalMostLiked != nil {
		cast := *s.GlobalMostLiked
		c.GlobalMostLiked = &cast
	}
	return &c
}
