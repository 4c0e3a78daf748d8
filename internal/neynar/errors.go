package neynar

import "fmt"

// 取得失敗の理由。メトリクスのラベルとログに使用する。
const (
	ReasonTransport      = "transport"
	ReasonHTTPStatus     = "http_status"
	ReasonDecode         = "decode"
	ReasonInvalidPayload = "invalid_payload"
)

// FetchError はNeynar APIからの取得で発生した一時的な失敗。
// チャンネル取得ではこのエラーは呼び出し元に返さず、ログとメトリクスに記録した上で空の結果として扱う。
type FetchError struct {
	Endpoint   string
	Reason     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	prefix := "neynar"
	if e.Endpoint != "" {
		prefix += " " + e.Endpoint
	}

	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", prefix, e.Reason, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.Reason, e.Err)
	default:
		return fmt.Sprintf("%s: %s", prefix, e.Reason)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
