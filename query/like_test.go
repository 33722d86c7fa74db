package query

import (
	"fmt"
	"testing"

	"github.com/vegasq/pxcat/value"
)

func TestLikeMatch(t *testing.T) {
	tests := []struct {
		pattern string
		escape  rune
		str     string
		want    bool
	}{
		{"abc", 0, "abc", true},
		{"abc", 0, "abcd", false},
		{"a_c", 0, "abc", true},
		{"a_c", 0, "ac", false},
		{"%", 0, "", true},
		{"%", 0, "anything", true},
		{"a%", 0, "alabama", true},
		{"%a", 0, "alabama", true},
		{"%b%", 0, "alabama", true},
		{"%abc", 0, "abcabc", true},
		{"abc%abc", 0, "abc", false},
		{"abc%abc", 0, "abcabc", true},
		{"%New%York%", 0, "New York City", true},
		{"N_w%", 0, "Newark", true},
		{"%_", 0, "", false},
		{"é_", 0, "éa", true},
		{"100!%", '!', "100%", true},
		{"100!%", '!', "1000", false},
		{"a!_c", '!', "abc", false},
		{"a!_c", '!', "a_c", true},
		{"case", 0, "CASE", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.str, func(t *testing.T) {
			p, err := compileLike(tt.pattern, tt.escape)
			if err != nil {
				t.Fatalf("compileLike(%q) error = %v", tt.pattern, err)
			}
			if got := p.match(tt.str); got != tt.want {
				t.Errorf("match(%q, %q) = %v, want %v", tt.pattern, tt.str, got, tt.want)
			}
		})
	}
}

func TestLikeTrailingEscape(t *testing.T) {
	if _, err := compileLike("abc!", '!'); err == nil {
		t.Error("compileLike() succeeded with a trailing escape, want error")
	}
}

func TestLikePatternCache(t *testing.T) {
	ev := newEvaluator(nil, []value.Value{value.String("x%")})
	col := func(i int) *BoundExpr { return &BoundExpr{Kind: BoundColumn, Index: i} }

	fromColumn := &BoundExpr{Kind: BoundLike, Args: []*BoundExpr{col(0), col(1)}}
	for i := 0; i < 100; i++ {
		row := []value.Value{value.String(fmt.Sprintf("row%d", i)), value.String(fmt.Sprintf("row%d%%", i))}
		got, err := ev.eval(fromColumn, &env{row: row})
		if err != nil {
			t.Fatal(err)
		}
		if !got.AsBool() {
			t.Fatalf("row %d did not match its own pattern", i)
		}
	}
	if n := len(ev.likes); n != 0 {
		t.Errorf("cached %d column patterns, want 0", n)
	}

	fromConst := &BoundExpr{Kind: BoundLike, Args: []*BoundExpr{col(0), {Kind: BoundConst, Value: value.String("r%")}}}
	fromParam := &BoundExpr{Kind: BoundLike, Args: []*BoundExpr{col(0), {Kind: BoundParam, Index: 0}}}
	for i := 0; i < 10; i++ {
		en := &env{row: []value.Value{value.String(fmt.Sprintf("row%d", i))}}
		if _, err := ev.eval(fromConst, en); err != nil {
			t.Fatal(err)
		}
		if _, err := ev.eval(fromParam, en); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(ev.likes); n != 2 {
		t.Errorf("cached %d patterns, want 2", n)
	}
}
