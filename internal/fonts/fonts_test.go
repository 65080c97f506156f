package fonts

import (
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil uses catalog", nil, DefaultCatalog()},
		{"keeps order", []string{"TakaoMincho", "IPAexGothic"}, []string{"TakaoMincho", "IPAexGothic"}},
		{"drops blanks", []string{" IPAexGothic", "", "Noto Sans CJK JP"}, []string{"IPAexGothic", "Noto Sans CJK JP"}},
		{"keeps repeats", []string{"IPAexGothic", "IPAexGothic "}, []string{"IPAexGothic", "IPAexGothic"}},
		{"empty stays empty", []string{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDefaultCatalogIsACopy(t *testing.T) {
	c := DefaultCatalog()
	if len(c) != 7 {
		t.Fatalf("catalog has %d fonts, want 7", len(c))
	}
	c[0] = "mutated"
	if DefaultCatalog()[0] != "IPAexGothic" {
		t.Error("DefaultCatalog must not expose shared state")
	}
}
