package label

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestTagName(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
		want string
	}{
		{
			name: "root manifest",
			tag:  Tag{Coordinate: MustCoordinate("acme/core"), Version: "1.2.0-SNAPSHOT", SHA: "abc1234def"},
			want: "voom--acme%core--1.2.0-SNAPSHOT----abc1234",
		},
		{
			name: "nested path",
			tag:  Tag{Coordinate: MustCoordinate("acme/web"), Version: "0.1.0", Path: "modules/web", SHA: "0123456"},
			want: "voom--acme%web--0.1.0--modules%web--0123456",
		},
		{
			name: "root commit",
			tag:  Tag{Coordinate: MustCoordinate("solo"), Version: "1", SHA: "fedcba9", NoParent: true},
			want: "voom--solo%solo--1----fedcba9--no-parent",
		},
		{
			name: "deletion marker",
			tag:  Tag{Path: "old/lib", SHA: "1111111"},
			want: "voom------old%lib--1111111",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.tag.Name()
			if err != nil {
				t.Fatalf("Name() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Name() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTagNameInvalid(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
	}{
		{"short sha", Tag{Coordinate: MustCoordinate("a/b"), Version: "1", SHA: "abc"}},
		{"non-hex sha", Tag{Coordinate: MustCoordinate("a/b"), Version: "1", SHA: "zzzzzzz"}},
		{"version without coordinate", Tag{Version: "1", SHA: "abc1234"}},
		{"coordinate without version", Tag{Coordinate: MustCoordinate("a/b"), SHA: "abc1234"}},
		{"version with separator", Tag{Coordinate: MustCoordinate("a/b"), Version: "1--2", SHA: "abc1234"}},
		{"version with trailing dash", Tag{Coordinate: MustCoordinate("a/b"), Version: "1-", SHA: "abc1234"}},
		{"path with separator", Tag{Coordinate: MustCoordinate("a/b"), Version: "1", Path: "x--y", SHA: "abc1234"}},
		{"path with percent", Tag{Coordinate: MustCoordinate("a/b"), Version: "1", Path: "x%y", SHA: "abc1234"}},
		{"path with empty segment", Tag{Coordinate: MustCoordinate("a/b"), Version: "1", Path: "x//y", SHA: "abc1234"}},
		{"path leading dash", Tag{Coordinate: MustCoordinate("a/b"), Version: "1", Path: "-x", SHA: "abc1234"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if name, err := tt.tag.Name(); err == nil {
				t.Errorf("Name() = %q, want error", name)
			}
		})
	}
}

func TestParseTag(t *testing.T) {
	tests := []struct {
		input   string
		want    Tag
		wantErr bool
	}{
		{
			input: "voom--acme%core--1.2.0--modules%core--abc1234",
			want:  Tag{Coordinate: Coordinate{"acme", "core"}, Version: "1.2.0", Path: "modules/core", SHA: "abc1234"},
		},
		{
			input: "voom--acme%core--1.2.0----abc1234--no-parent",
			want:  Tag{Coordinate: Coordinate{"acme", "core"}, Version: "1.2.0", SHA: "abc1234", NoParent: true},
		},
		{
			input: "voom------lib--abc1234",
			want:  Tag{Path: "lib", SHA: "abc1234"},
		},
		{input: "voom-branch--main", wantErr: true},
		{input: "release-1.0", wantErr: true},
		{input: "voom--acme%core--1.2.0--abc1234", wantErr: true},
		{input: "voom--acme%core--1.2.0----abc1234--bogus", wantErr: true},
		{input: "voom--acmecore--1.2.0----abc1234", wantErr: true},
		{input: "voom--acme%core--1.2.0----xyz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTag(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseTag(%q) = %+v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTag(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseTag(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
			if got.IsDeletion() != tt.want.Coordinate.IsEmpty() {
				t.Errorf("ParseTag(%q).IsDeletion() = %v", tt.input, got.IsDeletion())
			}
		})
	}
}

func TestTagRoundTrip(t *testing.T) {
	const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_.+-"
	const hex = "0123456789abcdef"
	r := rand.New(rand.NewPCG(1, 2))

	word := func() string {
		for {
			n := 1 + r.IntN(10)
			b := make([]byte, n)
			for i := range b {
				b[i] = alphabet[r.IntN(len(alphabet))]
			}
			s := string(b)
			if tagVersionRegex.MatchString(s) && !strings.Contains(s, fieldSeparator) && !strings.Contains(s, "..") {
				return s
			}
		}
	}

	for i := range 2000 {
		sha := make([]byte, ShortSHALength)
		for j := range sha {
			sha[j] = hex[r.IntN(len(hex))]
		}
		tag := Tag{SHA: string(sha), NoParent: r.IntN(5) == 0}
		if r.IntN(8) != 0 {
			tag.Coordinate = Coordinate{Group: word(), Name: word()}
			tag.Version = word()
		}
		for range r.IntN(4) {
			if tag.Path != "" {
				tag.Path += "/"
			}
			tag.Path += word()
		}

		t.Run(fmt.Sprint(i), func(t *testing.T) {
			name, err := tag.Name()
			if err != nil {
				t.Fatalf("Name(%+v) error = %v", tag, err)
			}
			got, err := ParseTag(name)
			if err != nil {
				t.Fatalf("ParseTag(%q) error = %v", name, err)
			}
			if got != tag {
				t.Errorf("ParseTag(%q) = %+v, want %+v", name, got, tag)
			}
		})
	}
}

func TestTagLongSHAIsAbbreviated(t *testing.T) {
	tag := Tag{Coordinate: MustCoordinate("a/b"), Version: "1.0", SHA: "0123456789abcdef0123456789abcdef01234567"}
	got, err := ParseTag(tag.MustName())
	if err != nil {
		t.Fatal(err)
	}
	if got.SHA != "0123456" {
		t.Errorf("ParseTag().SHA = %q, want %q", got.SHA, "0123456")
	}
}

func TestBranchSentinel(t *testing.T) {
	for _, branch := range []string{"origin/main", "upstream/feature/x", "main"} {
		name := BranchSentinel(branch)
		if IsTagName(name) {
			t.Errorf("IsTagName(%q) = true, want false", name)
		}
		got, ok := ParseBranchSentinel(name)
		if !ok || got != branch {
			t.Errorf("ParseBranchSentinel(%q) = %q, %v, want %q, true", name, got, ok, branch)
		}
	}
	if _, ok := ParseBranchSentinel("voom--a%b--1----abc1234"); ok {
		t.Error("ParseBranchSentinel accepted a version tag")
	}
	if _, ok := ParseBranchSentinel("voom-branch--"); ok {
		t.Error("ParseBranchSentinel accepted an empty branch")
	}
}
