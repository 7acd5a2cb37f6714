package milvus

import "testing"

func TestEscapeFilterValue(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "feed-1", "feed-1"},
		{"quote", `a"b`, `a\"b`},
		{"backslash", `a\b`, `a\\b`},
		{"escaped quote", `a\"b`, `a\\\"b`},
		{"injection", `x" || feed_id != "`, `x\" || feed_id != \"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := escapeFilterValue(tc.in); got != tc.want {
				t.Fatalf("escapeFilterValue(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
