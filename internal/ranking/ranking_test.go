package ranking

import (
	"testing"

	"github.com/hitoshi/castradar/internal/model"
)

func castsWithLikes(prefix string, likes ...int) []model.Cast {
	casts := make([]model.Cast, len(likes))
	for i, l := range likes {
		casts[i] = model.Cast{
			Hash:      prefix + string(rune('0'+i)),
			Text:      "cast",
			Author:    model.Author{Username: "alice", FID: 1},
			LikeCount: l,
		}
	}
	return casts
}

func TestRankChannel_PicksMaxLikes(t *testing.T) {
	casts := castsWithLikes("0x", 1, 9, 4)

	r := RankChannel("memes", casts)

	if r.Channel != "memes" {
		t.Errorf("Channel = %q, want %q", r.Channel, "memes")
	}
	if r.TotalCasts != 3 {
		t.Errorf("TotalCasts = %d, want 3", r.TotalCasts)
	}
	if r.MostLikedCast == nil || r.MostLikedCast.Hash != "0x1" {
		t.Errorf("MostLikedCast = %+v, want hash 0x1", r.MostLikedCast)
	}
}

func TestRankChannel_TieBreakFirstWins(t *testing.T) {
	casts := castsWithLikes("0x", 3, 5, 5)

	for i := 0; i < 10; i++ {
		r := RankChannel("a", casts)
		if r.MostLikedCast == nil || r.MostLikedCast.Hash != "0x1" {
			t.Fatalf("同数の場合は先頭のキャストが選ばれるべき: got %+v", r.MostLikedCast)
		}
	}
}

func TestRankChannel_AllZeroLikes_PicksFirst(t *testing.T) {
	casts := castsWithLikes("0x", 0, 0)

	r := RankChannel("a", casts)
	if r.MostLikedCast == nil || r.MostLikedCast.Hash != "0x0" {
		t.Errorf("MostLikedCast = %+v, want hash 0x0", r.MostLikedCast)
	}
}

func TestRankChannel_Empty(t *testing.T) {
	r := RankChannel("b", nil)

	if r.TotalCasts != 0 {
		t.Errorf("TotalCasts = %d, want 0", r.TotalCasts)
	}
	if r.MostLikedCast != nil {
		t.Errorf("MostLikedCast = %+v, want nil", r.MostLikedCast)
	}
}

func TestRankChannel_DoesNotAliasInput(t *testing.T) {
	casts := castsWithLikes("0x", 7)

	r := RankChannel("a", casts)
	casts[0].Text = "mutated"

	if r.MostLikedCast.Text != "cast" {
		t.Errorf("ランキング結果が入力スライスを参照している: Text = %q", r.MostLikedCast.Text)
	}
}

func TestGlobalTracker_TagsChannelAndKeepsFirstOnTie(t *testing.T) {
	g := NewGlobalTracker()

	g.Observe(RankChannel("a", castsWithLikes("a", 2, 5)))
	g.Observe(RankChannel("b", castsWithLikes("b", 5)))
	g.Observe(RankChannel("c", castsWithLikes("c", 1)))

	best := g.Best()
	if best == nil {
		t.Fatal("Best() = nil")
	}
	if best.Hash != "a1" {
		t.Errorf("Best().Hash = %q, want %q", best.Hash, "a1")
	}
	if best.Channel != "a" {
		t.Errorf("Best().Channel = %q, want %q", best.Channel, "a")
	}
	if g.MaxLikes() != 5 {
		t.Errorf("MaxLikes() = %d, want 5", g.MaxLikes())
	}
}

func TestGlobalTracker_LaterStrictlyGreaterWins(t *testing.T) {
	g := NewGlobalTracker()

	g.Observe(RankChannel("a", castsWithLikes("a", 2)))
	g.Observe(RankChannel("b", castsWithLikes("b", 3)))

	if best := g.Best(); best == nil || best.Channel != "b" {
		t.Errorf("Best() = %+v, want channel b", best)
	}
}

func TestGlobalTracker_IgnoresEmptyRanking(t *testing.T) {
	g := NewGlobalTracker()

	g.Observe(RankChannel("b", nil))

	if g.Best() != nil {
		t.Errorf("Best() = %+v, want nil", g.Best())
	}
	if g.MaxLikes() != -1 {
		t.Errorf("MaxLikes() = %d, want -1", g.MaxLikes())
	}
}
