package cluster

import (
	"strings"

	"k8s.io/client-go/tools/clientcmd"
)

// UnescapeConfig 还原客户端传输时对kubeconfig做的转义，保证其为合法YAML
func UnescapeConfig(s string) string {
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			out.WriteByte(s[i])
			continue
		}
		switch s[i+1] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case '"':
			out.WriteByte('"')
		case '\\':
			out.WriteByte('\\')
		default:
			out.WriteByte(s[i])
			continue
		}
		i++
	}
	return out.String()
}

// ExtractSystemNamespace 解析kubeconfig并提取默认上下文的命名空间。
// 默认上下文未命名或无命名空间时，回退到第一个带命名空间的上下文。
// 解析失败时 parseErr 非nil；解析成功但无命名空间时两个返回值均为零值。
func ExtractSystemNamespace(kubeconfig string) (namespace string, parseErr error) {
	cfg, err := clientcmd.Load([]byte(kubeconfig))
	if err != nil {
		return "", err
	}
	if cfg.CurrentContext != "" {
		if ctx, ok := cfg.Contexts[cfg.CurrentContext]; ok && ctx.Namespace != "" {
			return ctx.Namespace, nil
		}
	}
	for _, ctx := range cfg.Contexts {
		if ctx.Namespace != "" {
			return ctx.Namespace, nil
		}
	}
	return "", nil
}
