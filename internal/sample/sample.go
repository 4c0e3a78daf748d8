// Package sample は動作確認用のサンプルスナップショットを生成する。
// SAMPLE_DATA_ENABLED が有効な場合にのみ使用され、実データの代わりに自動で使われることはない。
package sample

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/castradar/internal/model"
	"github.com/hitoshi/castradar/internal/ranking"
)

// Store はサンプル投入に使用する永続化操作。
type Store interface {
	DeleteByDate(ctx context.Context, date string) (int64, error)
	Insert(ctx context.Context, snapshot *model.Snapshot) error
}

// Builder はランキング結果からスナップショットを組み立てる。
type Builder interface {
	Build(date string, rankings []model.ChannelRanking, globalBest *model.Cast) *model.Snapshot
}

// Result はサンプル投入の結果。
type Result struct {
	Date     string `json:"date"`
	Channels int    `json:"channels"`
	Message  string `json:"message"`
}

// Generator は当日分をサンプルスナップショットで置き換える。
type Generator struct {
	store   Store
	builder Builder
	logger  *slog.Logger
	now     func() time.Time
}

// NewGenerator はGeneratorを生成する。
func NewGenerator(store Store, builder Builder, logger *slog.Logger) *Generator {
	return &Generator{
		store:   store,
		builder: builder,
		logger:  logger,
		now:     time.Now,
	}
}

// Seed は当日分のスナップショットを削除し、サンプルデータを保存する。
func (g *Generator) Seed(ctx context.Context) (*Result, error) {
	today := model.DateOf(g.now())

	if _, err := g.store.DeleteByDate(ctx, today); err != nil {
		return nil, fmt.Errorf("当日分の削除に失敗: %w", err)
	}

	rankings := Rankings()
	tracker := ranking.NewGlobalTracker()
	for _, r := range rankings {
		tracker.Observe(r)
	}

	snap := g.builder.Build(today, rankings, tracker.Best())
	if err := g.store.Insert(ctx, snap); err != nil {
		return nil, fmt.Errorf("サンプルデータの保存に失敗: %w", err)
	}

	g.logger.Info("サンプルスナップショットを保存しました",
		slog.String("date", today),
		slog.Int("channel_count", len(snap.TopChannels)),
	)

	return &Result{
		Date:     today,
		Channels: len(snap.TopChannels),
		Message:  "sample data created",
	}, nil
}

// Rankings は固定のサンプルランキングを返す。呼び出しごとに新しいスライスを返す。
func Rankings() []model.ChannelRanking {
	entries := []struct {
		channel  string
		total    int
		hash     string
		text     string
		username string
		fid      int64
		likes    int
	}{
		{"memes", 87, "0xa1b2c3d4e5f6789012345678901234567890abcd", "when you realize farcaster is the future of social media 🚀", "dwr", 3, 42},
		{"crypto", 64, "0xb2c3d4e5f6789012345678901234567890abcdef", "building the future of decentralized social networks", "vitalik", 5650, 38},
		{"degen", 73, "0xc3d4e5f6789012345678901234567890abcdef12", "gm to all the builders in the farcaster ecosystem!", "jacob", 8, 35},
		{"base", 56, "0xd4e5f6789012345678901234567890abcdef1234", "shipping fast and building onchain 🔵", "jesse", 99, 31},
		{"founders", 49, "0xe5f6789012345678901234567890abcdef12345", "the best time to build is now. lets keep shipping!", "balajis", 6833, 29},
	}

	out := make([]model.ChannelRanking, len(entries))
	for i, e := range entries {
		out[i] = model.ChannelRanking{
			Channel:    e.channel,
			TotalCasts: e.total,
			MostLikedCast: &model.Cast{
				Hash:      e.hash,
				Text:      e.text,
				Author:    model.Author{Username: e.username, FID: e.fid},
				LikeCount: e.likes,
			},
		}
	}
	return out
}
