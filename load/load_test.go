package load

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocol(t *testing.T) {
	doc := `# 往复加载
.value peak 0.05
0, %peak, -%peak   # 第一圈
0.1 -0.1	0 // 第二圈

1e-1,,
`
	targets, err := Protocol(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.05, -0.05, 0.1, -0.1, 0, 0.1}, targets)

	targets, err = Protocol(strings.NewReader("# 空文件\n"))
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestProtocolErrors(t *testing.T) {
	cases := map[string]string{
		"0 1\n0.5 x\n":   "第 2 行",
		"%peak\n":        "peak",
		".value peak\n":  "第 1 行",
		"1 NaN\n":        "NaN",
		"1 Inf\n":        "Inf",
		".value p abc\n": "abc",
	}
	for doc, want := range cases {
		_, err := Protocol(strings.NewReader(doc))
		require.ErrorIs(t, err, ErrSyntax, doc)
		assert.Contains(t, err.Error(), want, doc)
	}
}

func TestParseList(t *testing.T) {
	targets, err := ParseList("0,1.0,-1.0,0")
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, -1, 0}, targets)
}

func TestProtocolFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "cyclic.txt")
	require.NoError(t, os.WriteFile(name, []byte("0 0.2 -0.2\n"), 0o644))
	targets, err := ProtocolFile(name)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.2, -0.2}, targets)

	_, err = ProtocolFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, os.WriteFile(name, []byte("0 y\n"), 0o644))
	_, err = ProtocolFile(name)
	assert.ErrorContains(t, err, "cyclic.txt")
}
