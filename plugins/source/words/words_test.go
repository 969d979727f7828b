package words

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/speadcap/internal/core"
	"firestige.xyz/speadcap/pkg/plugin"
)

const dump = `# two packets
0x5304020600000001
0x8004000000000008   # length 8
81985529216486895

---
0x5304020600000001
# annotated header
0x8004000000000008
0x0123_4567_89ab_cdef
`

func TestParse(t *testing.T) {
	seqs, err := Parse(context.Background(), strings.NewReader(dump), BaseAuto)
	require.NoError(t, err)

	want := [][]core.Word{
		{0x5304020600000001, 0x8004000000000008, 0x0123456789abcdef},
		{0x5304020600000001, 0x8004000000000008, 0x0123456789abcdef},
	}
	assert.Equal(t, want, seqs)
}

func TestParseBlankLineSeparates(t *testing.T) {
	seqs, err := Parse(context.Background(), strings.NewReader("1 2\n3\n\n\n4\n"), BaseDec)
	require.NoError(t, err)
	assert.Equal(t, [][]core.Word{{1, 2, 3}, {4}}, seqs)
}

func TestParseWord(t *testing.T) {
	tests := []struct {
		in      string
		base    Base
		want    core.Word
		wantErr bool
	}{
		{"0x10", BaseAuto, 16, false},
		{"10", BaseAuto, 10, false},
		{"10", BaseHex, 16, false},
		{"0X1f", BaseHex, 31, false},
		{"0x10", BaseDec, 0, true},
		{"ffffffffffffffff", BaseHex, 0xffffffffffffffff, false},
		{"18446744073709551616", BaseDec, 0, true},
		{"zz", BaseAuto, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseWord(tt.in, tt.base)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseReportsLine(t *testing.T) {
	_, err := Parse(context.Background(), strings.NewReader("0x1\n\nbogus\n"), BaseAuto)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func TestWordsSourceRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.txt")
	require.NoError(t, os.WriteFile(path, []byte(dump), 0o644))

	src, err := plugin.NewSource(Name, map[string]any{"path": path})
	require.NoError(t, err)
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop(context.Background())

	seqs, err := src.Read(context.Background())
	require.NoError(t, err)
	assert.Len(t, seqs, 2)
}

func TestWordsSourceInit(t *testing.T) {
	assert.ErrorIs(t, NewWordsSource().Init(nil), core.ErrConfigInvalid)
	assert.ErrorIs(t, NewWordsSource().Init(map[string]any{"path": "x", "base": "oct"}), core.ErrConfigInvalid)
	assert.NoError(t, NewWordsSource().Init(map[string]any{"path": "x", "base": "hex"}))
}

func TestWordsSourceMissingFile(t *testing.T) {
	src := NewWordsSource()
	require.NoError(t, src.Init(map[string]any{"path": filepath.Join(t.TempDir(), "none.txt")}))
	_, err := src.Read(context.Background())
	assert.Error(t, err)
}
