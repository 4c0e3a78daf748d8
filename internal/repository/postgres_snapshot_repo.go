package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/castradar/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// PostgresSnapshotRepo はPostgreSQLを使用したスナップショットリポジトリ。
// チャンネルランキングとグローバル最多いいねキャストはJSONBカラムに保存する。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// Exists は指定日付のスナップショットが存在するかを返す。
func (r *PostgresSnapshotRepo) Exists(ctx context.Context, date string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM snapshots WHERE date = $1)`,
		date,
	).Scan(&exists)
	if err != nil {
		return false, &model.StorageError{Op: "exists", Err: err}
	}
	return exists, nil
}

// Insert はスナップショットを保存する。
// 一意制約違反（23505）は model.ErrSnapshotConflict として返す。
func (r *PostgresSnapshotRepo) Insert(ctx context.Context, snapshot *model.Snapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}

	topChannels := snapshot.TopChannels
	if topChannels == nil {
		topChannels = []model.ChannelRanking{}
	}
	topJSON, err := json.Marshal(topChannels)
	if err != nil {
		return &model.StorageError{Op: "insert", Err: fmt.Errorf("top_channelsのエンコードに失敗: %w", err)}
	}

	// グローバル最多いいねキャストがない場合はNULLを保存する
	var globalJSON sql.NullString
	if snapshot.GlobalMostLiked != nil {
		b, err := json.Marshal(snapshot.GlobalMostLiked)
		if err != nil {
			return &model.StorageError{Op: "insert", Err: fmt.Errorf("most_liked_castのエンコードに失敗: %w", err)}
		}
		globalJSON = sql.NullString{String: string(b), Valid: true}
	}

	err = r.db.QueryRowContext(ctx,
		`INSERT INTO snapshots (id, date, top_channels, most_liked_cast)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		snapshot.ID, snapshot.Date, string(topJSON), globalJSON,
	).Scan(&snapshot.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return &model.StorageError{Op: "insert", Err: model.ErrSnapshotConflict}
		}
		return &model.StorageError{Op: "insert", Err: err}
	}
	return nil
}

// DeleteOlderThan はcutoffDateより前の日付のスナップショットを削除する。
func (r *PostgresSnapshotRepo) DeleteOlderThan(ctx context.Context, cutoffDate string) (int64, error) {
	return r.exec(ctx, "prune", `DELETE FROM snapshots WHERE date < $1`, cutoffDate)
}

// DeleteByDate は指定日付のスナップショットを削除する。
func (r *PostgresSnapshotRepo) DeleteByDate(ctx context.Context, date string) (int64, error) {
	return r.exec(ctx, "delete", `DELETE FROM snapshots WHERE date = $1`, date)
}

func (r *PostgresSnapshotRepo) exec(ctx context.Context, op, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, &model.StorageError{Op: op, Err: err}
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, &model.StorageError{Op: op, Err: err}
	}
	return n, nil
}

// GetLatest は新しい日付順に最大n件のスナップショットを返す。
func (r *PostgresSnapshotRepo) GetLatest(ctx context.Context, n int) ([]*model.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, top_channels, most_liked_cast, created_at
		 FROM snapshots
		 ORDER BY date DESC
		 LIMIT $1`,
		n,
	)
	if err != nil {
		return nil, &model.StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	snapshots := make([]*model.Snapshot, 0, n)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, &model.StorageError{Op: "list", Err: err}
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "list", Err: err}
	}
	return snapshots, nil
}

// GetByDate は指定日付のスナップショットを取得する。見つからない場合はnilを返す。
func (r *PostgresSnapshotRepo) GetByDate(ctx context.Context, date string) (*model.Snapshot, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, top_channels, most_liked_cast, created_at
		 FROM snapshots WHERE date = $1`,
		date,
	)

	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	return s, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*model.Snapshot, error) {
	var (
		s          model.Snapshot
		date       time.Time
		topJSON    []byte
		globalJSON []byte
	)
	if err := row.Scan(&s.ID, &date, &topJSON, &globalJSON, &s.CreatedAt); err != nil {
		return nil, err
	}

	s.Date = date.Format(model.DateLayout)
	if err := decodeSnapshotJSON(&s, topJSON, globalJSON); err != nil {
		return nil, err
	}
	return &s, nil
}

// decodeSnapshotJSON はJSONBカラムの内容をスナップショットに展開する。
func decodeSnapshotJSON(s *model.Snapshot, topJSON, globalJSON []byte) error {
	s.TopChannels = []model.ChannelRanking{}
	if len(topJSON) > 0 {
		if err := json.Unmarshal(topJSON, &s.TopChannels); err != nil {
			return fmt.Errorf("top_channelsのデコードに失敗: %w", err)
		}
	}
	if len(globalJSON) > 0 && string(globalJSON) != "null" {
		var c model.Cast
		if err := json.Unmarshal(globalJSON, &c); err != nil {
			return fmt.Errorf("most_liked_castのデコードに失敗: %w", err)
		}
		s.GlobalMostLiked = &c
	}
	return nil
}
