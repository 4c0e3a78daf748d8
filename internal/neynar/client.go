// Package neynar はNeynar v2 APIを利用したFarcasterチャンネルのキャスト取得を提供する。
// 取得失敗はログとメトリクスに記録した上で空の結果として扱い、呼び出し元にはエラーを返さない。
package neynar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/castradar/internal/metrics"
	"github.com/hitoshi/castradar/internal/model"
)

const (
	// DefaultBaseURL はNeynar v2 Farcaster APIのベースURL。
	DefaultBaseURL = "https://api.neynar.com/v2/farcaster"
	// MaxCastLimit は1回の取得で要求できる最大キャスト数。カーソルによる追加取得は行わない。
	MaxCastLimit = 100
	// maxTrendingLimit はトレンドチャンネル取得の上限。
	maxTrendingLimit = 25
	// maxReactionPages はキャスト1件あたりに辿るリアクション一覧の最大ページ数。
	maxReactionPages = 50
	// DefaultReactionTimeout はチャンネル1件分のリアクション取得全体に許す既定の時間。
	DefaultReactionTimeout = 60 * time.Second
	// maxBodySize はレスポンスボディの最大読み取りサイズ（4MB）。
	maxBodySize = 4 << 20

	userAgent = "CastRadar/1.0"
)

// MetricsRecorder はクライアントが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordFetchSuccess(channel string)
	RecordFetchFailure(channel string, reason string)
	RecordAPIStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
	RecordCastsFetched(count int)
}

// Options はクライアントの設定。
type Options struct {
	BaseURL    string
	APIKey     string
	RatePerSec float64
	// ResolveReactions が有効な場合、いいね数をキャストごとのリアクション取得で求める。
	ResolveReactions bool
	// ReactionTimeout はチャンネル1件分のリアクション取得に許す時間。
	// フィード取得のタイムアウトとは独立に適用する。0以下の場合はDefaultReactionTimeout。
	ReactionTimeout time.Duration
}

// Client はNeynar APIのクライアント。
// グローバル状態を持たず、明示的に生成してジョブに注入する。
type Client struct {
	httpClient       *http.Client
	logger           *slog.Logger
	metrics          MetricsRecorder
	limiter          *rate.Limiter
	baseURL          string
	apiKey           string
	resolveReactions bool
	reactionTimeout  time.Duration
}

// NewClient はClientの新しいインスタンスを生成する。
// metricsがnilの場合は記録しない。RatePerSecが0以下の場合はペーシングしない。
func NewClient(httpClient *http.Client, logger *slog.Logger, m MetricsRecorder, opts Options) *Client {
	if m == nil {
		m = metrics.NopCollector{}
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSec > 0 {
		burst := int(opts.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}

	reactionTimeout := opts.ReactionTimeout
	if reactionTimeout <= 0 {
		reactionTimeout = DefaultReactionTimeout
	}

	return &Client{
		httpClient:       httpClient,
		logger:           logger,
		metrics:          m,
		limiter:          limiter,
		baseURL:          baseURL,
		apiKey:           opts.APIKey,
		resolveReactions: opts.ResolveReactions,
		reactionTimeout:  reactionTimeout,
	}
}

// ClampLimit は取得件数を1〜MaxCastLimitの範囲に収める。
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > MaxCastLimit {
		return MaxCastLimit
	}
	return limit
}

// FetchChannelCasts はチャンネルの直近のキャストを最大limit件取得する。
// 通信エラー、200以外のステータス、デコード不能または不正なペイロードはいずれも
// 一時的な失敗としてログに記録し、空のスライスを返す。
func (c *Client) FetchChannelCasts(ctx context.Context, channelID string, limit int) []model.Cast {
	start := time.Now()
	limit = ClampLimit(limit)

	casts, err := c.fetchChannelCasts(ctx, channelID, limit)
	c.metrics.RecordFetchLatency(time.Since(start))

	if err != nil {
		reason := ReasonTransport
		var fe *FetchError
		if errors.As(err, &fe) {
			reason = fe.Reason
		}
		c.logger.Warn("チャンネルのキャスト取得に失敗しました",
			slog.String("channel", channelID),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordFetchFailure(channelID, reason)
		return []model.Cast{}
	}

	c.metrics.RecordFetchSuccess(channelID)
	c.metrics.RecordCastsFetched(len(casts))
	c.logger.Debug("チャンネルのキャストを取得しました",
		slog.String("channel", channelID),
		slog.Int("cast_count", len(casts)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return casts
}

func (c *Client) fetchChannelCasts(ctx context.Context, channelID string, limit int) ([]model.Cast, error) {
	primary := c.endpoint("/feed/channels", url.Values{
		"channel_ids":  {channelID},
		"limit":        {strconv.Itoa(limit)},
		"with_recasts": {"false"},
	})

	body, err := c.get(ctx, primary)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) || fe.Reason != ReasonHTTPStatus {
			return nil, err
		}

		// 主エンドポイントが200以外を返した場合は代替エンドポイントで1回だけ再試行する
		c.logger.Info("代替エンドポイントで再試行します",
			slog.String("channel", channelID),
			slog.Int("http_status", fe.StatusCode),
		)
		alternate := c.endpoint("/feed", url.Values{
			"filter_type": {"channel_id"},
			"channel_id":  {channelID},
			"limit":       {strconv.Itoa(limit)},
		})
		body, err = c.get(ctx, alternate)
		if err != nil {
			return nil, err
		}
	}

	casts, err := decodeFeed(body)
	if err != nil {
		return nil, err
	}

	if c.resolveReactions {
		c.resolveLikeCounts(ctx, channelID, casts)
	}

	return casts, nil
}

// resolveLikeCounts はリアクション一覧を辿っていいね数を求め直す。
// フィード取得の期限ではなくreactionTimeoutの範囲で実行し、親のキャンセルには従う。
// 取得に失敗した、または時間切れになったキャストはペイロード上の件数を使用する。
func (c *Client) resolveLikeCounts(ctx context.Context, channelID string, casts []model.Cast) {
	rctx, cancel := withDetachedDeadline(ctx, c.reactionTimeout)
	defer cancel()

	unresolved := 0
	for i := range casts {
		count, complete, err := c.countLikes(rctx, casts[i].Hash)
		if err != nil {
			unresolved++
			c.logger.Debug("リアクションの取得に失敗しました",
				slog.String("channel", channelID),
				slog.String("hash", casts[i].Hash),
				slog.String("error", err.Error()),
			)
			continue
		}
		// ページ上限で打ち切った場合は下限値でしかないため、ペイロードの件数を下回らせない
		if complete || count > casts[i].LikeCount {
			casts[i].LikeCount = count
		}
	}

	if unresolved > 0 {
		c.logger.Info("一部のキャストはペイロード上のいいね数を使用しました",
			slog.String("channel", channelID),
			slog.Int("unresolved", unresolved),
			slog.Int("cast_count", len(casts)),
		)
	}
}

// countLikes はキャストのいいね数をリアクション一覧のページを辿って数える。
// completeは最終ページまで数えた場合にtrueとなる。
func (c *Client) countLikes(ctx context.Context, hash string) (int, bool, error) {
	count := 0
	cursor := ""
	for page := 0; page < maxReactionPages; page++ {
		q := url.Values{
			"hash":  {hash},
			"types": {"likes"},
			"limit": {strconv.Itoa(MaxCastLimit)},
		}
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		body, err := c.get(ctx, c.endpoint("/reactions/cast", q))
		if err != nil {
			return 0, false, err
		}
		n, next, err := decodeReactionPage(body)
		if err != nil {
			return 0, false, err
		}

		count += n
		if next == "" {
			return count, true, nil
		}
		cursor = next
	}
	return count, false, nil
}

// withDetachedDeadline は親の期限を引き継がずにtimeoutを期限とするコンテキストを返す。
// 親がキャンセルされた場合（期限切れを除く）は子もキャンセルする。
func withDetachedDeadline(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	stop := context.AfterFunc(parent, func() {
		if errors.Is(parent.Err(), context.Canceled) {
			cancel()
		}
	})
	return ctx, func() {
		stop()
		cancel()
	}
}

// FetchTrendingChannels は直近1日のトレンドチャンネルIDを取得する。
func (c *Client) FetchTrendingChannels(ctx context.Context, limit int) ([]string, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > maxTrendingLimit {
		limit = maxTrendingLimit
	}

	u := c.endpoint("/channel/trending", url.Values{
		"time_window": {"1d"},
		"limit":       {strconv.Itoa(limit)},
	})

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	return decodeTrending(body)
}

func (c *Client) endpoint(path string, query url.Values) string {
	return c.baseURL + path + "?" + query.Encode()
}

// get はレート制限に従ってGETリクエストを送信し、200のレスポンスボディを返す。
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{Endpoint: path, Reason: ReasonTransport, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Endpoint: path, Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.RecordAPIStatus(resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		// 接続の再利用のためボディを読み捨てる
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &FetchError{Endpoint: path, Reason: ReasonHTTPStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Endpoint: path, Reason: ReasonTransport, Err: err}
	}
	return body, nil
}
