package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQuery(t *testing.T) {
	cases := []struct {
		name    string
		filters map[string]any
		want    string
	}{
		{"nil map", nil, ""},
		{"empty map", map[string]any{}, ""},
		{"all nil values", map[string]any{"a": nil, "b": nil}, ""},
		{
			"nil dropped, falsy preserved",
			map[string]any{"a": nil, "b": 0, "c": "x"},
			"?b=0&c=x",
		},
		{
			"zero and false survive",
			map[string]any{"page": 0, "inStock": false, "q": ""},
			"?inStock=false&page=0&q=",
		},
		{
			"json float renders as int",
			map[string]any{"limit": float64(20)},
			"?limit=20",
		},
		{
			"fractional float kept",
			map[string]any{"maxPrice": 19.99},
			"?maxPrice=19.99",
		},
		{
			"values escaped",
			map[string]any{"q": "corner sofa & table"},
			"?q=corner+sofa+%26+table",
		},
		{
			"int64",
			map[string]any{"since": int64(1700000000000)},
			"?since=1700000000000",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, BuildQuery(tc.filters))
		})
	}
}
