package label

import (
	"encoding/json"
	"testing"
)

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		input   string
		want    Coordinate
		wantErr bool
	}{
		{"acme/core", Coordinate{"acme", "core"}, false},
		{"org.clojure/clojure", Coordinate{"org.clojure", "clojure"}, false},
		{"ring", Coordinate{"ring", "ring"}, false},
		{"acme/core-api", Coordinate{"acme", "core-api"}, false},
		{"", Coordinate{}, true},
		{"acme/", Coordinate{}, true},
		{"/core", Coordinate{}, true},
		{"acme/core--x", Coordinate{}, true},
		{"acme/core-", Coordinate{}, true},
		{"acme/co%re", Coordinate{}, true},
		{"a/b/c", Coordinate{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCoordinate(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseCoordinate(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCoordinate(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseCoordinate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCoordinateString(t *testing.T) {
	if got := (Coordinate{}).String(); got != "" {
		t.Errorf("zero Coordinate.String() = %q, want empty", got)
	}
	if got := MustCoordinate("ring").String(); got != "ring/ring" {
		t.Errorf("String() = %q, want %q", got, "ring/ring")
	}
}

func TestCoordinateJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Coordinate{"c": MustCoordinate("acme/core")})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"c":"acme/core"}` {
		t.Errorf("Marshal() = %s", data)
	}
	var got map[string]Coordinate
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["c"] != MustCoordinate("acme/core") {
		t.Errorf("Unmarshal() = %v", got)
	}
	if err := json.Unmarshal([]byte(`"a/b/c"`), new(Coordinate)); err == nil {
		t.Error("Unmarshal(a/b/c) succeeded, want error")
	}
}
