// Package kube 封装对 kubectl 和 helm 的子进程调用。
// 所有调用都以参数列表传递，不经过shell；kubeconfig以文件路径提供。
package kube

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/LincolnBryant/slate-client-server/pkg/logger"
	"github.com/LincolnBryant/slate-client-server/pkg/metrics"
)

// CommandResult 子进程执行结果
type CommandResult struct {
	Status int    `json:"status"`
	Output string `json:"output"` // stdout
	Error  string `json:"error"`  // stderr
}

// Failed 命令是否以非零状态退出
func (r CommandResult) Failed() bool { return r.Status != 0 }

// Driver 执行 kubectl/helm 命令。接口化以便测试时注入桩实现。
type Driver interface {
	// Kubectl 以给定kubeconfig执行kubectl
	Kubectl(ctx context.Context, configPath string, args ...string) CommandResult
	// KubectlWithInput 同 Kubectl，stdin 提供输入（kubectl apply -f - 等）
	KubectlWithInput(ctx context.Context, configPath, input string, args ...string) CommandResult
	// Helm 以给定kubeconfig执行helm；tillerNamespace非空时追加 --tiller-namespace
	Helm(ctx context.Context, configPath, tillerNamespace string, args ...string) CommandResult
	// DeleteNamespace 删除集群上的命名空间
	DeleteNamespace(ctx context.Context, configPath, namespace string) CommandResult
}

// ExecDriver 通过 os/exec 调用本机的 kubectl/helm
type ExecDriver struct{}

// NewExecDriver 创建子进程驱动
func NewExecDriver() *ExecDriver { return &ExecDriver{} }

func (d *ExecDriver) Kubectl(ctx context.Context, configPath string, args ...string) CommandResult {
	return runCommand(ctx, "kubectl", args, configPath, "")
}

func (d *ExecDriver) KubectlWithInput(ctx context.Context, configPath, input string, args ...string) CommandResult {
	return runCommand(ctx, "kubectl", args, configPath, input)
}

func (d *ExecDriver) Helm(ctx context.Context, configPath, tillerNamespace string, args ...string) CommandResult {
	if tillerNamespace != "" {
		args = append(args, "--tiller-namespace", tillerNamespace)
	}
	return runCommand(ctx, "helm", args, configPath, "")
}

func (d *ExecDriver) DeleteNamespace(ctx context.Context, configPath, namespace string) CommandResult {
	return runCommand(ctx, "kubectl", []string{"delete", "namespace", namespace, "--ignore-not-found"}, configPath, "")
}

// runCommand 执行子进程并收集 stdout/stderr/退出码。
// ctx取消时子进程被终止并回收。
func runCommand(ctx context.Context, command string, args []string, configPath, input string) CommandResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Env = append(os.Environ(), "KUBECONFIG="+configPath)
	if input != "" {
		cmd.Stdin = bytes.NewBufferString(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{Output: stdout.String(), Error: stderr.String()}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.Status = exitErr.ExitCode()
		} else {
			// 进程未能启动
			result.Status = -1
			if result.Error == "" {
				result.Error = err.Error()
			}
		}
	}

	outcome := "success"
	if result.Failed() {
		outcome = "failure"
		logger.Debugf("%s %v exited with status %d: %s", command, args, result.Status, result.Error)
	}
	metrics.ExternalCommandsTotal.WithLabelValues(command, outcome).Inc()
	metrics.ExternalCommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())

	return result
}

// CheckAvailable 确认命令在PATH上可用
func CheckAvailable(command string) error {
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("`%s` is not available: %w", command, err)
	}
	return nil
}

// ParseReadyFraction 解析 kubectl get pods 的 READY 列（形如 "1/1"）。
// 返回就绪数、总数；格式不符时 ok 为 false。
func ParseReadyFraction(s string) (ready, total int, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if i == 0 || i+1 == len(s) {
				return 0, 0, false
			}
			numer, err1 := strconv.Atoi(s[:i])
			denom, err2 := strconv.Atoi(s[i+1:])
			if err1 != nil || err2 != nil {
				return 0, 0, false
			}
			return numer, denom, true
		}
	}
	return 0, 0, false
}
