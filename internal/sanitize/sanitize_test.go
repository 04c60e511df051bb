package sanitize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgard/ion/internal/sanitize"
)

func TestPolicy_Text(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace", in: "  \n ", want: ""},
		{name: "plain", in: "hello world", want: "hello world"},
		{name: "emphasis", in: "this is **bold** and *italic*", want: "this is bold and italic"},
		{name: "heading", in: "# Title\n\nbody", want: "Title\n\nbody"},
		{name: "entities", in: "a & b < c", want: "a & b < c"},
		{name: "inline html", in: "x <b>y</b> z", want: "x y z"},
		{name: "code span", in: "run `go test`", want: "run go test"},
		{name: "list", in: "- one\n- two", want: "- one\n- two"},
	}

	p := sanitize.NewPlainTextPolicy()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, p.Text(tt.in))
		})
	}
}
