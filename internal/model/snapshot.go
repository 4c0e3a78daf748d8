// Package model はドメインモデルを定義する。
package model

import "time"

// DateLayout はスナップショットの日付キーの書式（UTCのカレンダー日付）。
const DateLayout = "2006-01-02"

// Author はキャストの投稿者を表す。
type Author struct {
	Username string `json:"username"`
	FID      int64  `json:"fid"`
}

// Cast は外部ネットワークから取得した1件の投稿を表す。
// いいね数のみを保持し、リアクションしたユーザーの情報は集計後に破棄する。
type Cast struct {
	Hash      string `json:"hash"`
	Text      string `json:"text"`
	Author    Author `json:"author"`
	LikeCount int    `json:"likeCount"`
	Channel   string `json:"channel,omitempty"` // 取得元チャンネル（グローバル最多いいねのみ保存）
}

// ChannelRanking は1チャンネル・1日分のランキング結果。
type ChannelRanking struct {
	Channel       string `json:"channel"`
	TotalCasts    int    `json:"totalCasts"`    // その日に観測したキャスト数（取得上限で頭打ち）
	MostLikedCast *Cast  `json:"mostLikedCast"` // キャストが0件の場合はnil
}

// Snapshot は1日分の集計結果。日付（UTC）ごとに最大1件だけ永続化される。
type Snapshot struct {
	ID              string
	Date            string
	TopChannels     []ChannelRanking // TotalCasts降順（同数は処理順を維持）
	GlobalMostLiked *Cast            // Channelが設定された全チャンネル中の最多いいねキャスト
	CreatedAt       time.Time        // INSERT時にサーバー側で設定され、以後変更されない
}

// DateOf は指定時刻のUTCカレンダー日付を返す。
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate はスナップショットの日付キーを検証して解析する。
func ParseDate(date string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, date, time.UTC)
}

// RetentionCutoff は保持期間の下限日付（now - days日、UTC）を返す。
// この日付より前のスナップショットが削除対象となる。
func RetentionCutoff(now time.Time, days int) string {
	return DateOf(now.UTC().AddDate(0, 0, -days))
}
