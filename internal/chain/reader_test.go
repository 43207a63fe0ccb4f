package chain

import (
	"errors"
	"testing"
)

func TestContainsCaseInsensitive(t *testing.T) {
	t.Parallel()
	cases := []struct {
		s, substr string
		want      bool
	}{
		{"Query returned more than 10000 results", "query returned more", true},
		{"block range is too large", "too large", true},
		{"BLOCK RANGE TOO WIDE", "block range", true},
		{"internal server error", "too large", false},
		{"", "x", false},
		{"x", "", true},
	}
	for _, c := range cases {
		if got := contains(c.s, c.substr); got != c.want {
			t.Errorf("contains(%q, %q) = %v, want %v", c.s, c.substr, got, c.want)
		}
	}
}

func TestIsRangeTooLargeErrMatchesKnownPhrases(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want bool
	}{
		{errors.New("eth_getLogs: too many results"), true},
		{errors.New("query returned more than 10000 results"), true},
		{errors.New("block range is too large, max is 2000"), true},
		{errors.New("limit exceeded for this request"), true},
		{errors.New("connection reset by peer"), false},
	}
	for _, c := range cases {
		if got := isRangeTooLargeErr(c.err); got != c.want {
			t.Errorf("isRangeTooLargeErr(%q) = %v, want %v", c.err, got, c.want)
		}
	}
}
