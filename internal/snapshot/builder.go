// Package snapshot は日次スナップショットレコードの組み立てを提供する。
// I/Oを行わず、入力を変更しない純粋な変換のみを扱う。
package snapshot

import (
	"sort"

	"github.com/hitoshi/castradar/internal/model"
)

// TextSanitizer はキャスト本文の正規化インターフェース。
type TextSanitizer interface {
	Sanitize(text string) string
}

// Builder はランキング結果からスナップショットを組み立てる。
type Builder struct {
	sanitizer TextSanitizer
}

// NewBuilder はBuilderを生成する。sanitizerがnilの場合は本文をそのまま保存する。
func NewBuilder(sanitizer TextSanitizer) *Builder {
	return &Builder{sanitizer: sanitizer}
}

// Build は指定日付のスナップショットを組み立てる。
// チャンネルはTotalCastsの降順に並べ、同数の場合は入力順を保持する（安定ソート）。
// チャンネル別の最多いいねキャストにはチャンネルタグを付けず、globalBestのみタグを保持する。
func (b *Builder) Build(date string, rankings []model.ChannelRanking, globalBest *model.Cast) *model.Snapshot {
	top := make([]model.ChannelRanking, len(rankings))
	for i, r := range rankings {
		top[i] = model.ChannelRanking{
			Channel:    r.Channel,
			TotalCasts: r.TotalCasts,
		}
		if r.MostLikedCast != nil {
			c := b.normalize(*r.MostLikedCast)
			c.Channel = ""
			top[i].MostLikedCast = &c
		}
	}

	sort.SliceStable(top, func(i, j int) bool {
		return top[i].TotalCasts > top[j].TotalCasts
	})

	s := &model.Snapshot{
		Date:        date,
		TopChannels: top,
	}
	if globalBest != nil {
		c := b.normalize(*globalBest)
		s.GlobalMostLiked = &c
	}
	return s
}

func (b *Builder) normalize(c model.Cast) model.Cast {
	if b.sanitizer != nil {
		c.Text = b.sanitizer.Sanitize(c.Text)
	}
	return c
}
