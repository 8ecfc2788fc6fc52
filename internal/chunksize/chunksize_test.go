package chunksize

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		option string
		want   int64
	}{
		{"no value uses default", "-chunked", 1024 * 1024},
		{"plain bytes", "-chunked:12345", 12345},
		{"kilo", "-chunked:4567k", 4567 * 1000},
		{"mega", "-chunked:7890m", 7890 * 1000 * 1000},
		{"kibi", "-chunked:987ki", 987 * 1024},
		{"mebi", "-chunked:654mi", 654 * 1024 * 1024},
		{"upper case unit", "-chunked:2MI", 2 * 1024 * 1024},
		{"upper case option", "-CHUNKED:3K", 3000},
		{"trailing b", "-chunked:10kb", 10000},
		{"space before unit", "-chunked:5 ki", 5 * 1024},
		{"decimal value truncates", "-chunked:1.5ki", 1536},
		{"decimal mebi", "-chunked:0.5mi", 512 * 1024},
		{"zero", "-chunked:0", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.option)
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.option, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %d, want %d", tt.option, got, tt.want)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	invalid := []string{
		"-chunked:3mike",
		"-chunked:",
		"-chunked:abc",
		"-chunked:10g",
		"-chunked:-5",
		"chunked:5",
		"-chunk",
		"",
		"-chunked:99999999999999999999",
		"-chunked:9999999999999mi",
	}

	for _, option := range invalid {
		t.Run(option, func(t *testing.T) {
			got, err := Parse(option)
			if err == nil {
				t.Fatalf("Parse(%q) = %d, expected error", option, got)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Parse(%q) error = %v, want ErrInvalid", option, err)
			}
			if got != 0 {
				t.Errorf("Parse(%q) = %d on error, want 0", option, got)
			}
		})
	}
}

func TestPattern_AnchorsUnit(t *testing.T) {
	if Pattern.MatchString("-chunked:3mike") {
		t.Error("Pattern should not match trailing text after a unit")
	}
	if !Pattern.MatchString("-chunked:3mi") {
		t.Error("Pattern should match a bare mi unit")
	}
}

func TestFromFlag(t *testing.T) {
	tests := []struct {
		value   string
		want    int64
		wantErr bool
	}{
		{"", Default, false},
		{"default", Default, false},
		{"4mi", 4 * 1024 * 1024, false},
		{" 100k ", 100000, false},
		{"3mike", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := FromFlag(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromFlag(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FromFlag(%q) = %d, want %d", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		arg     string
		want    int64
		wantErr bool
	}{
		{"-chunked", Default, false},
		{"-CHUNKED:2k", 2000, false},
		{"2k", 2000, false},
		{"", Default, false},
		{"-chunked:3mike", 0, true},
		{"chunked:2k", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := ParseArg(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseArg(%q) error = %v, wantErr %v", tt.arg, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseArg(%q) = %d, want %d", tt.arg, got, tt.want)
			}
		})
	}
}
