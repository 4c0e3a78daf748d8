package neynar

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"

	"github.com/hitoshi/castradar/internal/model"
)

// feedResponse は /feed/channels と /feed のレスポンス。
// castsキーが存在しないペイロードは不正として扱うためポインタで受ける。
type feedResponse struct {
	Casts *[]castDTO `json:"casts"`
}

type castDTO struct {
	Hash      string       `json:"hash"`
	Text      string       `json:"text"`
	Author    authorDTO    `json:"author"`
	Reactions reactionsDTO `json:"reactions"`
}

type authorDTO struct {
	FID      int64  `json:"fid"`
	Username string `json:"username"`
}

type reactionsDTO struct {
	LikesCount *int         `json:"likes_count"`
	Likes      []reactorDTO `json:"likes"`
}

type reactorDTO struct {
	FID int64 `json:"fid"`
}

// likeCount はlikes_countを優先し、なければlikes配列の要素数を返す。
func (r reactionsDTO) likeCount() int {
	if r.LikesCount != nil {
		return *r.LikesCount
	}
	return len(r.Likes)
}

// castCheck はキャスト1件の検証対象フィールド。
type castCheck struct {
	Hash      string `validate:"required"`
	Username  string `validate:"required"`
	FID       int64  `validate:"min:0"`
	LikeCount int    `validate:"min:0"`
}

// trendingResponse は /channel/trending のレスポンス。
type trendingResponse struct {
	Channels []struct {
		Channel struct {
			ID string `json:"id"`
		} `json:"channel"`
	} `json:"channels"`
}

// reactionsResponse は /reactions/cast のレスポンス。
type reactionsResponse struct {
	Reactions *[]struct {
		ReactionType string `json:"reaction_type"`
	} `json:"reactions"`
	Next *struct {
		Cursor string `json:"cursor"`
	} `json:"next"`
}

// decodeFeed はフィードレスポンスをデコード・検証してドメインのキャストに変換する。
// 1件でも不正なキャストがあればペイロード全体を拒否する（件数が変わるため部分採用しない）。
func decodeFeed(body []byte) ([]model.Cast, error) {
	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Reason: ReasonDecode, Err: err}
	}
	if resp.Casts == nil {
		return nil, &FetchError{Reason: ReasonInvalidPayload, Err: fmt.Errorf("casts field is missing")}
	}

	casts := make([]model.Cast, 0, len(*resp.Casts))
	for i, d := range *resp.Casts {
		likes := d.Reactions.likeCount()

		v := validate.Struct(&castCheck{
			Hash:      d.Hash,
			Username:  d.Author.Username,
			FID:       d.Author.FID,
			LikeCount: likes,
		})
		if !v.Validate() {
			return nil, &FetchError{
				Reason: ReasonInvalidPayload,
				Err:    fmt.Errorf("cast[%d]: %s", i, v.Errors.One()),
			}
		}

		casts = append(casts, model.Cast{
			Hash: d.Hash,
			Text: d.Text,
			Author: model.Author{
				Username: d.Author.Username,
				FID:      d.Author.FID,
			},
			LikeCount: likes,
		})
	}
	return casts, nil
}

// decodeTrending はトレンドチャンネルのIDを出現順に返す。
func decodeTrending(body []byte) ([]string, error) {
	var resp trendingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &FetchError{Reason: ReasonDecode, Err: err}
	}

	ids := make([]string, 0, len(resp.Channels))
	for _, ch := range resp.Channels {
		if ch.Channel.ID != "" {
			ids = append(ids, ch.Channel.ID)
		}
	}
	return ids, nil
}

// decodeReactionPage はリアクション一覧の1ページ分のいいね件数と次ページのカーソルを返す。
// リアクションしたユーザーの情報は保持しない。
func decodeReactionPage(body []byte) (count int, next string, err error) {
	var resp reactionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, "", &FetchError{Reason: ReasonDecode, Err: err}
	}
	if resp.Reactions == nil {
		return 0, "", &FetchError{Reason: ReasonInvalidPayload, Err: fmt.Errorf("reactions field is missing")}
	}

	for _, r := range *resp.Reactions {
		if r.ReactionType == "" || r.ReactionType == "like" {
			count++
		}
	}
	if resp.Next != nil {
		next = resp.Next.Cursor
	}
	return count, next, nil
}
