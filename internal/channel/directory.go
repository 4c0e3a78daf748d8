package channel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/castradar/internal/security"
)

// maxDirectorySize はディレクトリフィードの最大読み取りサイズ（1MB）。
const maxDirectorySize = 1 << 20

// Directory はRSS/Atom/JSON Feedで公開されたチャンネルディレクトリを取得元とするSource。
// 各アイテムのカテゴリ、/~/channel/<id> 形式のリンク、タイトルの順にチャンネルIDを取り出す。
// カテゴリとタイトルはマークアップを含みうるため、タグを除去してから使用する。
type Directory struct {
	url        string
	httpClient *http.Client
	parser     *gofeed.Parser
}

// NewDirectory はDirectoryを生成する。
func NewDirectory(url string, httpClient *http.Client) *Directory {
	return &Directory{
		url:        url,
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
	}
}

func (d *Directory) Name() string { return "directory" }

// List はディレクトリフィードを取得し、出現順のチャンネルIDを返す。
func (d *Directory) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "CastRadar/1.0")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml, */*")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ディレクトリの取得に失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ディレクトリがステータス %d を返しました", resp.StatusCode)
	}

	feed, err := d.parser.Parse(io.LimitReader(resp.Body, maxDirectorySize))
	if err != nil {
		return nil, fmt.Errorf("ディレクトリのパースに失敗: %w", err)
	}

	ids := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if id := channelIDFromItem(item); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func channelIDFromItem(item *gofeed.Item) string {
	for _, c := range item.Categories {
		if c = security.StripMarkup(c); c != "" {
			return c
		}
	}
	if id := channelIDFromLink(item.Link); id != "" {
		return id
	}
	return security.StripMarkup(item.Title)
}

// channelIDFromLink は https://warpcast.com/~/channel/<id> 形式のリンクからIDを取り出す。
func channelIDFromLink(link string) string {
	const marker = "/~/channel/"

	i := strings.Index(link, marker)
	if i < 0 {
		return ""
	}
	rest := link[i+len(marker):]
	if j := strings.IndexAny(rest, "/?#"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
