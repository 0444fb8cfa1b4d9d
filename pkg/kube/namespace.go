package kube

import "context"

// EnsureNamespace 确保命名空间存在（不存在则创建）
func EnsureNamespace(ctx context.Context, driver Driver, configPath, namespace string) CommandResult {
	check := driver.Kubectl(ctx, configPath, "get", "namespace", namespace)
	if !check.Failed() {
		return check
	}
	return driver.Kubectl(ctx, configPath, "create", "namespace", namespace)
}
