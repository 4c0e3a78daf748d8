// Package channel は集計対象チャンネルの一覧を決定する。
// 設定された取得元を順に試し、どれも結果を返さない場合は固定の一覧を使用する。
package channel

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// DefaultMaxChannels は1回の実行で扱うチャンネル数の既定上限。
const DefaultMaxChannels = 8

// DefaultChannels は取得元がすべて結果を返さない場合に使用する固定の一覧。
var DefaultChannels = []string{"memes", "crypto", "degen", "base", "founders", "art", "music", "tech"}

var channelIDPattern = regexp.MustCompile(`^[a-z0-9-]{1,64}$`)

// Source はチャンネル一覧の取得元。
type Source interface {
	Name() string
	List(ctx context.Context) ([]string, error)
}

// Resolver は取得元を合成してチャンネル一覧を返す。
type Resolver struct {
	sources     []Source
	fallback    []string
	maxChannels int
	logger      *slog.Logger
}

// NewResolver はResolverを生成する。sourcesは指定順に試行される。
// maxChannelsが0以下の場合はDefaultMaxChannelsを使用する。
func NewResolver(logger *slog.Logger, maxChannels int, sources ...Source) *Resolver {
	if maxChannels <= 0 {
		maxChannels = DefaultMaxChannels
	}
	return &Resolver{
		sources:     sources,
		fallback:    DefaultChannels,
		maxChannels: maxChannels,
		logger:      logger,
	}
}

// ListChannels は集計対象のチャンネルIDを順序付きで返す。
// 最初に空でない結果を返した取得元を採用し、すべて失敗した場合は固定の一覧を返す。
// 結果は常にmaxChannels件以下で、重複を含まない。
func (r *Resolver) ListChannels(ctx context.Context) []string {
	for _, src := range r.sources {
		ids, err := src.List(ctx)
		if err != nil {
			r.logger.Warn("チャンネル一覧の取得に失敗しました",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}

		channels := Normalize(ids, r.maxChannels)
		if len(channels) == 0 {
			r.logger.Info("チャンネル一覧の取得元が空の結果を返しました",
				slog.String("source", src.Name()),
			)
			continue
		}

		r.logger.Info("チャンネル一覧を取得しました",
			slog.String("source", src.Name()),
			slog.Int("channel_count", len(channels)),
		)
		return channels
	}

	return Normalize(r.fallback, r.maxChannels)
}

// Normalize はチャンネルIDを正規化（前後空白除去・小文字化）し、
// 不正なIDを除外、重複は先頭を残して除去した上でmax件に切り詰める。
func Normalize(ids []string, max int) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if len(out) >= max {
			break
		}
		id = strings.ToLower(strings.TrimSpace(id))
		if !channelIDPattern.MatchString(id) || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// TrendingFetcher はトレンドチャンネルの取得インターフェース。
type TrendingFetcher interface {
	FetchTrendingChannels(ctx context.Context, limit int) ([]string, error)
}

type trendingSource struct {
	fetcher TrendingFetcher
	limit   int
}

// NewTrendingSource はNeynarのトレンドチャンネルを取得元とするSourceを生成する。
func NewTrendingSource(fetcher TrendingFetcher, limit int) Source {
	return &trendingSource{fetcher: fetcher, limit: limit}
}

func (s *trendingSource) Name() string { return "trending" }

func (s *trendingSource) List(ctx context.Context) ([]string, error) {
	return s.fetcher.FetchTrendingChannels(ctx, s.limit)
}
