package cluster_test

import (
	"testing"

	"github.com/LincolnBryant/slate-client-server/internal/service/cluster"
	"github.com/LincolnBryant/slate-client-server/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnescapeConfig(t *testing.T) {
	assert.Equal(t, "a\nb", cluster.UnescapeConfig(`a\nb`))
	assert.Equal(t, "a\tb", cluster.UnescapeConfig(`a\tb`))
	assert.Equal(t, `a"b`, cluster.UnescapeConfig(`a\"b`))
	assert.Equal(t, `a\b`, cluster.UnescapeConfig(`a\\b`))
	// 未知转义序列原样保留
	assert.Equal(t, `a\xb`, cluster.UnescapeConfig(`a\xb`))
	// 结尾的反斜杠原样保留
	assert.Equal(t, `a\`, cluster.UnescapeConfig(`a\`))
	assert.Equal(t, "plain", cluster.UnescapeConfig("plain"))
}

func TestExtractSystemNamespace(t *testing.T) {
	ns, err := cluster.ExtractSystemNamespace(testutil.TestKubeconfig)
	require.NoError(t, err)
	assert.Equal(t, "kube-system", ns)

	// 无命名空间
	ns, err = cluster.ExtractSystemNamespace(`apiVersion: v1
kind: Config
clusters: []
contexts:
- context:
    cluster: c
    user: u
  name: ctx
current-context: ctx
users: []
`)
	require.NoError(t, err)
	assert.Empty(t, ns)

	// 非YAML
	_, err = cluster.ExtractSystemNamespace("{not: yaml")
	assert.Error(t, err)
}

func TestExtractSystemNamespaceEscapedTransport(t *testing.T) {
	escaped := `apiVersion: v1\nkind: Config\nclusters:\n- cluster:\n    server: https://x:6443\n  name: c\ncontexts:\n- context:\n    cluster: c\n    user: u\n    namespace: slate-system\n  name: ctx\ncurrent-context: ctx\nusers:\n- name: u\n  user:\n    token: zzz\n`
	ns, err := cluster.ExtractSystemNamespace(cluster.UnescapeConfig(escaped))
	require.NoError(t, err)
	assert.Equal(t, "slate-system", ns)
}
