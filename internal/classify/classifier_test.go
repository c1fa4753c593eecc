package classify

import (
	"testing"

	"VideoScanner/internal/domain"
)

func TestClassifyDefaultTable(t *testing.T) {
	t.Parallel()

	c := New(nil)
	cases := []struct {
		title, desc, source string
		want                Result
	}{
		{"Movie X Official Trailer", "", "verified_house", Result{domain.CategoryOfficialTrailer, 5, true}},
		{"Movie X Teaser | In cinemas soon", "", "", Result{domain.CategoryTeaser, 5, true}},
		{"Movie X Trailer 2", "", "", Result{domain.CategoryTrailer, 4, true}},
		{"Chuttamalle Lyrical", "", "", Result{domain.CategorySong, 4, true}},
		{"Grand Pre Release Event LIVE", "", "", Result{domain.CategoryEvent, 3, false}},
		{"Breaking: shoot wraps", "", "", Result{domain.CategoryNews, 3, false}},
		{"Director interview", "", "", Result{domain.CategoryInterview, 2, false}},
		{"Behind the scenes", "", "", Fallback},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.title, tc.desc, tc.source); got != tc.want {
			t.Fatalf("%q: expected %+v, got %+v", tc.title, tc.want, got)
		}
	}
}

func TestClassifyFirstMatchWins(t *testing.T) {
	t.Parallel()

	c := New(nil)
	// "official trailer" and "song" both match; the earlier rule wins.
	got := c.Classify("Song Making Video", "watch the official trailer", "")
	if got.Category != domain.CategoryOfficialTrailer {
		t.Fatalf("expected official_trailer, got %s", got.Category)
	}

	reordered := New([]Rule{
		{Category: domain.CategorySong, Keywords: []string{"song"}, BasePriority: 4, AutoEligible: true},
		{Category: domain.CategoryOfficialTrailer, Keywords: []string{"official trailer"}, BasePriority: 5, AutoEligible: true},
	})
	if got := reordered.Classify("Song Making Video", "watch the official trailer", ""); got.Category != domain.CategorySong {
		t.Fatalf("rule order must decide precedence, got %s", got.Category)
	}
}

func TestClassifyUsesSourceNameAndIgnoresCase(t *testing.T) {
	t.Parallel()

	c := New(nil)
	if got := c.Classify("Episode 4", "", "Daily NEWS Channel"); got.Category != domain.CategoryNews {
		t.Fatalf("expected news via source name, got %s", got.Category)
	}
}

func TestNewClampsPriorities(t *testing.T) {
	t.Parallel()

	c := New([]Rule{{Category: "x", Keywords: []string{" X "}, BasePriority: 9}, {Category: "y", Keywords: []string{"y"}, BasePriority: -2}})
	if got := c.Classify("x", "", ""); got.BasePriority != 5 {
		t.Fatalf("expected clamp to 5, got %d", got.BasePriority)
	}
	if got := c.Classify("y", "", ""); got.BasePriority != 1 {
		t.Fatalf("expected clamp to 1, got %d", got.BasePriority)
	}
	if len(c.Rules()) != 2 {
		t.Fatalf("expected 2 rules")
	}
}
