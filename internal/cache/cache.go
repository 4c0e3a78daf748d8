// Package cache はスナップショット読み取りAPIのためのインメモリキャッシュを提供する。
package cache

import (
	"sync"
	"time"

	"github.com/coocood/freecache"
)

// MetricsRecorder はキャッシュ参照結果を記録する。
type MetricsRecorder interface {
	RecordCacheLookup(hit bool)
}

// SnapshotCache はエンコード済みレスポンスをキーごとに保持するキャッシュ。
type SnapshotCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	// Version はPurgeのたびに増加する世代番号を返す。
	Version() uint64
	// SetIfVersion はversionの取得以降にPurgeが行われていない場合のみ値を保存する。
	// 読み取り中に作成・再生成されたスナップショットの古いレスポンスを保存しないために使用する。
	SetIfVersion(key string, value []byte, version uint64) bool
	// Purge は全エントリを削除する。スナップショットの作成・再生成後に呼び出す。
	Purge()
}

// freeCache はfreecacheを使用したSnapshotCacheの実装。
type freeCache struct {
	cache   *freecache.Cache
	ttl     int
	metrics MetricsRecorder

	// mu はPurgeとSetIfVersionの世代確認・保存を排他にする
	mu      sync.RWMutex
	version uint64
}

// New はSnapshotCacheを生成する。sizeMBが0以下の場合は何もキャッシュしない実装を返す。
// TTLは秒単位に切り上げ、最低1秒とする。
func New(sizeMB int, ttl time.Duration, m MetricsRecorder) SnapshotCache {
	if sizeMB <= 0 {
		return noopCache{}
	}

	ttlSec := int((ttl + time.Second - 1) / time.Second)
	if ttlSec < 1 {
		ttlSec = 1
	}

	return &freeCache{
		cache:   freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:     ttlSec,
		metrics: m,
	}
}

func (c *freeCache) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get([]byte(key))
	hit := err == nil
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(hit)
	}
	if !hit {
		return nil, false
	}
	return val, true
}

func (c *freeCache) Set(key string, value []byte) {
	// 値がセグメントサイズを超える場合はキャッシュしない
	_ = c.cache.Set([]byte(key), value, c.ttl)
}

func (c *freeCache) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *freeCache) SetIfVersion(key string, value []byte, version uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.version != version {
		return false
	}
	return c.cache.Set([]byte(key), value, c.ttl) == nil
}

func (c *freeCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	c.cache.Clear()
}

type noopCache struct{}

func (noopCache) Get(string) ([]byte, bool)                { return nil, false }
func (noopCache) Set(string, []byte)                       {}
func (noopCache) Version() uint64                          { return 0 }
func (noopCache) SetIfVersion(string, []byte, uint64) bool { return false }
func (noopCache) Purge()                                   {}
