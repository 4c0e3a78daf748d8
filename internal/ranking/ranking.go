// Package ranking はチャンネルごとの最多いいねキャストの選定を提供する。
// 同数の場合は先に出現したキャストを採用する（決定的なタイブレーク）。
package ranking

import "github.com/hitoshi/castradar/internal/model"

// RankChannel は1チャンネル分のキャストからランキングを算出する。
// 1パスで最大いいね数を追跡し、厳密な大小比較（>）で更新するため
// 同数のキャストは先頭のものが残る。castsが空の場合はMostLikedCastがnilになる。
func RankChannel(channel string, casts []model.Cast) model.ChannelRanking {
	maxLikes := -1
	var best *model.Cast

	for i := range casts {
		if casts[i].LikeCount > maxLikes {
			maxLikes = casts[i].LikeCount
			best = &casts[i]
		}
	}

	ranking := model.ChannelRanking{
		Channel:    channel,
		TotalCasts: len(casts),
	}
	if best != nil {
		c := *best
		ranking.MostLikedCast = &c
	}
	return ranking
}

// GlobalTracker は1回のジョブ実行で処理したチャンネル全体の最多いいねキャストを追跡する。
// チャンネルの処理順に Observe を呼び出すこと。勝者となった時点で取得元チャンネルを記録する。
type GlobalTracker struct {
	maxLikes int
	best     *model.Cast
}

// NewGlobalTracker は空のGlobalTrackerを生成する。
func NewGlobalTracker() *GlobalTracker {
	return &GlobalTracker{maxLikes: -1}
}

// Observe はチャンネルのランキング結果を取り込む。
// キャストがないランキングは無視する。
func (g *GlobalTracker) Observe(ranking model.ChannelRanking) {
	if ranking.MostLikedCast == nil {
		return
	}
	if ranking.MostLikedCast.LikeCount > g.maxLikes {
		c := *ranking.MostLikedCast
		c.Channel = ranking.Channel
		g.maxLikes = c.LikeCount
		g.best = &c
	}
}

// Best は現時点の最多いいねキャストを返す。1件も取り込んでいない場合はnil。
func (g *GlobalTracker) Best() *model.Cast {
	if g.best == nil {
		return nil
	}
	c := *g.best
	return &c
}

// MaxLikes は現時点の最大いいね数を返す。1件も取り込んでいない場合は-1。
func (g *GlobalTracker) MaxLikes() int {
	return g.maxLikes
}
