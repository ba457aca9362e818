package testing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShellWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain", "tmux has-session -t =x", []string{"tmux", "has-session", "-t", "=x"}},
		{"single quotes", "echo 'a b'  c", []string{"echo", "a b", "c"}},
		{"escaped single quote", `echo 'it'"'"'s'`, []string{"echo", "it's"}},
		{"double quote concat", `echo "__TNR_""OK_x__"`, []string{"echo", "__TNR_OK_x__"}},
		{"backslash", `echo a\ b`, []string{"echo", "a b"}},
		{"empty quoted", `echo ''`, []string{"echo", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := SplitShellWords(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SplitShellWords("echo 'open")
	assert.Error(t, err)
}
