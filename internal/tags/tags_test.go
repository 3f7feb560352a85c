package tags

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		code       string
		entityType string
		entityName string
		want       []string
	}{
		{
			name:       "plain public function",
			code:       "def helper():\n    return 1",
			entityType: "function",
			entityName: "helper",
			want:       []string{"function", "public"},
		},
		{
			name:       "private async generator",
			code:       "async def _stream(self):\n    yield 1",
			entityType: "method",
			entityName: "_stream",
			want:       []string{"async", "generator", "method", "private"},
		},
		{
			name:       "decorators",
			code:       "@property\n@staticmethod\n@classmethod\ndef x(): pass",
			entityType: "method",
			entityName: "x",
			want:       []string{"classmethod", "method", "property", "public", "staticmethod"},
		},
		{
			name:       "exported go test",
			code:       "func TestRun(t *testing.T) {}",
			entityType: "function",
			entityName: "TestRun",
			want:       []string{"exported", "function", "public", "test"},
		},
		{
			name:       "yield as substring is not a generator",
			code:       "def f():\n    return yielded",
			entityType: "function",
			entityName: "f",
			want:       []string{"function", "public"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferTags(tt.code, tt.entityType, tt.entityName)
			assert.Equal(t, tt.want, got)
			assert.True(t, sort.StringsAreSorted(got))
		})
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, Merge([]string{"c", "a"}, []string{"b", "a", ""}))
	assert.Equal(t, []string{}, Merge())
}
