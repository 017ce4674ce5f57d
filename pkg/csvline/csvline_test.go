package csvline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain fields", "a,b,c", []string{"a", "b", "c"}},
		{"quoted comma", `a,"b,c",d`, []string{"a", "b,c", "d"}},
		{"escaped quote", `a,"b""c"`, []string{"a", `b"c`}},
		{"empty input", "", []string{""}},
		{"trailing comma", "a,", []string{"a", ""}},
		{"whitespace trimmed", "  a , b ", []string{"a", "b"}},
		{"quotes preserve inner spacing", `" a b ",c`, []string{"a b", "c"}},
		{"unbalanced quote runs to end of line", `a,"b,c`, []string{"a", "b,c"}},
		{"quote opening mid-field", `a"b,c",d`, []string{"ab,c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Split(tt.line))
		})
	}
}
