package dataset

import (
	"reflect"
	"testing"
)

func TestStringify(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{"nil is blank", nil, ""},
		{"string passes through", "hello", "hello"},
		{"whole float drops decimals", float64(42), "42"},
		{"fractional float", 3.5, "3.5"},
		{"bool", true, "true"},
		{"int", 7, "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Stringify(tt.in); got != tt.want {
				t.Errorf("Stringify(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBlanked(t *testing.T) {
	row := Blanked([]string{"a", "b"})
	if len(row) != 2 {
		t.Fatalf("Blanked returned %d keys, want 2", len(row))
	}
	for k, v := range row {
		if v != "" {
			t.Errorf("Blanked[%q] = %v, want empty string", k, v)
		}
	}
}

func TestUnionKeys(t *testing.T) {
	a := Row{"id": 1, "name": "x"}
	b := Row{"id": 2, "city": "y"}

	got := UnionKeys(a, b)
	want := []string{"city", "id", "name"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnionKeys = %v, want %v", got, want)
	}
}

func TestColumnUnion(t *testing.T) {
	rows := []Row{
		{"a": 1},
		{"b": 2},
		{"a": 3, "c": 4},
	}
	got := ColumnUnion(rows)
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ColumnUnion = %v, want %v", got, want)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := Row{"id": "A"}
	clone := orig.Clone()
	clone["id"] = "B"

	if orig["id"] != "A" {
		t.Errorf("mutating clone changed original: %v", orig)
	}
}
