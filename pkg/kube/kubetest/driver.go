// Package kubetest 提供脚本化的 kube.Driver 桩实现，供测试注入 kubectl/helm 应答。
package kubetest

import (
	"context"
	"strings"
	"sync"

	"github.com/LincolnBryant/slate-client-server/pkg/kube"
)

// Call 一次驱动调用的记录
type Call struct {
	Command         string // kubectl / helm
	Args            []string
	ConfigPath      string
	Input           string
	TillerNamespace string
}

// ArgString 空格连接的参数串，便于前缀匹配
func (c Call) ArgString() string { return strings.Join(c.Args, " ") }

// Handler 应答函数；handled 为 false 时继续尝试后续handler
type Handler func(call Call) (result kube.CommandResult, handled bool)

// Driver 脚本化驱动。按注册顺序匹配handler，全部未命中时返回 Default。
type Driver struct {
	mu       sync.Mutex
	calls    []Call
	handlers []Handler

	// Default 无handler命中时的应答
	Default kube.CommandResult
}

func NewDriver() *Driver {
	return &Driver{}
}

// Handle 注册应答函数
func (d *Driver) Handle(h Handler) {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

// HandlePrefix 注册按命令名和参数串前缀匹配的固定应答
func (d *Driver) HandlePrefix(command, argPrefix string, result kube.CommandResult) {
	d.Handle(func(call Call) (kube.CommandResult, bool) {
		if call.Command == command && strings.HasPrefix(call.ArgString(), argPrefix) {
			return result, true
		}
		return kube.CommandResult{}, false
	})
}

// Calls 已记录的调用
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Call, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallsMatching 匹配给定命令名和参数串前缀的调用数
func (d *Driver) CallsMatching(command, argPrefix string) int {
	n := 0
	for _, call := range d.Calls() {
		if call.Command == command && strings.HasPrefix(call.ArgString(), argPrefix) {
			n++
		}
	}
	return n
}

func (d *Driver) dispatch(call Call) kube.CommandResult {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	handlers := make([]Handler, len(d.handlers))
	copy(handlers, d.handlers)
	defaultResult := d.Default
	d.mu.Unlock()

	for _, h := range handlers {
		if result, handled := h(call); handled {
			return result
		}
	}
	return defaultResult
}

func (d *Driver) Kubectl(_ context.Context, configPath string, args ...string) kube.CommandResult {
	return d.dispatch(Call{Command: "kubectl", Args: args, ConfigPath: configPath})
}

func (d *Driver) KubectlWithInput(_ context.Context, configPath, input string, args ...string) kube.CommandResult {
	return d.dispatch(Call{Command: "kubectl", Args: args, ConfigPath: configPath, Input: input})
}

func (d *Driver) Helm(_ context.Context, configPath, tillerNamespace string, args ...string) kube.CommandResult {
	return d.dispatch(Call{Command: "helm", Args: args, ConfigPath: configPath, TillerNamespace: tillerNamespace})
}

func (d *Driver) DeleteNamespace(_ context.Context, configPath, namespace string) kube.CommandResult {
	return d.dispatch(Call{Command: "kubectl", Args: []string{"delete", "namespace", namespace, "--ignore-not-found"}, ConfigPath: configPath})
}
