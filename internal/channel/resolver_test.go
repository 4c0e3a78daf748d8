package channel

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"reflect"
	"testing"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// mockSource はSourceのテスト用モック。
type mockSource struct {
	name   string
	listFn func(ctx context.Context) ([]string, error)
	calls  int
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) List(ctx context.Context) ([]string, error) {
	m.calls++
	return m.listFn(ctx)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		ids  []string
		max  int
		want []string
	}{
		{"trim and lower", []string{" Memes ", "DEGEN"}, 8, []string{"memes", "degen"}},
		{"dedup keeps first", []string{"base", "art", "base"}, 8, []string{"base", "art"}},
		{"invalid dropped", []string{"ok-1", "has space", "", "emoji🎩", "under_score"}, 8, []string{"ok-1"}},
		{"truncate", []string{"a", "b", "c", "d"}, 2, []string{"a", "b"}},
		{"truncate after dedup", []string{"a", "a", "b", "c"}, 2, []string{"a", "b"}},
		{"empty", nil, 8, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.ids, tt.max)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%v, %d) = %v, want %v", tt.ids, tt.max, got, tt.want)
			}
		})
	}
}

func TestResolver_FirstNonEmptySourceWins(t *testing.T) {
	var buf bytes.Buffer

	failing := &mockSource{name: "trending", listFn: func(context.Context) ([]string, error) {
		return nil, errors.New("402 payment required")
	}}
	empty := &mockSource{name: "empty", listFn: func(context.Context) ([]string, error) {
		return []string{}, nil
	}}
	dir := &mockSource{name: "directory", listFn: func(context.Context) ([]string, error) {
		return []string{"farcaster", "dev"}, nil
	}}
	never := &mockSource{name: "never", listFn: func(context.Context) ([]string, error) {
		return []string{"x"}, nil
	}}

	r := NewResolver(newTestLogger(&buf), 8, failing, empty, dir, never)
	got := r.ListChannels(context.Background())

	if !reflect.DeepEqual(got, []string{"farcaster", "dev"}) {
		t.Errorf("ListChannels() = %v", got)
	}
	if never.calls != 0 {
		t.Errorf("採用後の取得元は呼ばれないはず: calls = %d", never.calls)
	}
}

func TestResolver_FallsBackToDefaultChannels(t *testing.T) {
	var buf bytes.Buffer

	r := NewResolver(newTestLogger(&buf), 8)
	got := r.ListChannels(context.Background())

	want := []string{"memes", "crypto", "degen", "base", "founders", "art", "music", "tech"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListChannels() = %v, want %v", got, want)
	}
}

func TestResolver_BoundsToMaxChannels(t *testing.T) {
	var buf bytes.Buffer

	src := &mockSource{name: "big", listFn: func(context.Context) ([]string, error) {
		ids := make([]string, 30)
		for i := range ids {
			ids[i] = "ch-" + string(rune('a'+i%26)) + string(rune('a'+i/26))
		}
		return ids, nil
	}}

	r := NewResolver(newTestLogger(&buf), 5, src)
	if got := r.ListChannels(context.Background()); len(got) != 5 {
		t.Errorf("len(ListChannels()) = %d, want 5", len(got))
	}

	fallback := NewResolver(newTestLogger(&buf), 3)
	if got := fallback.ListChannels(context.Background()); !reflect.DeepEqual(got, []string{"memes", "crypto", "degen"}) {
		t.Errorf("fallback = %v", got)
	}
}

type fakeTrending struct {
	gotLimit int
}

func (f *fakeTrending) FetchTrendingChannels(_ context.Context, limit int) ([]string, error) {
	f.gotLimit = limit
	return []string{"memes"}, nil
}

func TestTrendingSource_PassesLimit(t *testing.T) {
	f := &fakeTrending{}
	src := NewTrendingSource(f, 8)

	ids, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if f.gotLimit != 8 || len(ids) != 1 {
		t.Errorf("limit = %d, ids = %v", f.gotLimit, ids)
	}
	if src.Name() != "trending" {
		t.Errorf("Name() = %q", src.Name())
	}
}
