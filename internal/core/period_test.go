package core

import "testing"

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in    string
		month int
		ok    bool
	}{
		{"2024-03-01", 3, true},
		{"2024-11-01T00:00:00Z", 11, true},
		{"01.2024", 1, true},
		{"12-2023", 12, true},
		{"06/2024", 6, true},
		{"202405", 5, true},
		{"2024-07", 7, true},
		{"13.2024", 0, false},
		{"33.202405", 5, true},
		{"00.2024", 0, false},
		{"2024", 0, false},
		{"", 0, false},
		{"garbage", 0, false},
	}
	for _, tc := range cases {
		m, ok := ParseMonth(tc.in)
		if ok != tc.ok || m != tc.month {
			t.Fatalf("%q expected (%d,%v), got (%d,%v)", tc.in, tc.month, tc.ok, m, ok)
		}
	}
}

func TestQuarter(t *testing.T) {
	for m := 1; m <= 12; m++ {
		want := 1
		switch {
		case m >= 10:
			want = 4
		case m >= 7:
			want = 3
		case m >= 4:
			want = 2
		}
		if got := Quarter(m); got != want {
			t.Fatalf("month %d expected Q%d, got Q%d", m, want, got)
		}
	}
	if Quarter(0) != 0 || Quarter(13) != 0 {
		t.Fatalf("out-of-range months map to 0")
	}
	if QuarterLabel(3) != "Q3" {
		t.Fatalf("unexpected label %q", QuarterLabel(3))
	}
}
