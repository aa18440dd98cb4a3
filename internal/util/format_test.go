package util

import (
	"math"
	"testing"
	"unicode/utf8"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{500, "500 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
		{1099511627776, "1.0 TiB"},
		{1125899906842624, "1.0 PiB"},
		{-1, "0 B"},
		{-100, "0 B"},
	}

	for _, tt := range tests {
		got := FormatSize(tt.bytes)
		if got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFormatCount(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0K"},
		{1500, "1.5K"},
		{1000000, "1.0M"},
		{1500000, "1.5M"},
		{1000000000, "1.0B"},
		{2000000000, "2.0B"},
	}

	for _, tt := range tests {
		got := FormatCount(tt.n)
		if got != tt.want {
			t.Errorf("FormatCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		part, total int64
		want        float64
	}{
		{0, 0, 0},
		{50, 100, 50},
		{100, 100, 100},
		{150, 100, 150},
		{1, 3, 100.0 / 3.0},
	}

	for _, tt := range tests {
		got := Percent(tt.part, tt.total)
		diff := got - tt.want
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.001 {
			t.Errorf("Percent(%d, %d) = %f, want %f", tt.part, tt.total, got, tt.want)
		}
	}
}

func TestFormatDelta(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "+512 B"},
		{-2048, "-2.0 KiB"},
		{math.MinInt64, "-8192.0 PiB"},
	}

	for _, tt := range tests {
		got := FormatDelta(tt.bytes)
		if got != tt.want {
			t.Errorf("FormatDelta(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestTruncatePath(t *testing.T) {
	tests := []struct {
		path   string
		maxLen int
		want   string
	}{
		{"/a/b", 10, "/a/b"},
		{"/a/b", 0, ""},
		{"/home/user/projects/deep/nested/dir/file.txt", 30, "/home/.../dir/file.txt"},
		{"/averyveryverylongname", 10, "...ongname"},
		{"/a/b/cccccccccccccccccccc/dddddddddddddddddddd", 20, "/a/b/ccc...ddddddddd"},
		{"/srv/データ/とても長いディレクトリ名/ファイル", 12, "/srv.../ファイル"},
		{"/abcdef", 3, "def"},
	}

	for _, tt := range tests {
		got := TruncatePath(tt.path, tt.maxLen)
		if got != tt.want {
			t.Errorf("TruncatePath(%q, %d) = %q, want %q", tt.path, tt.maxLen, got, tt.want)
		}
		if n := utf8.RuneCountInString(got); n > tt.maxLen {
			t.Errorf("TruncatePath(%q, %d) returned %d runes", tt.path, tt.maxLen, n)
		}
	}
}
