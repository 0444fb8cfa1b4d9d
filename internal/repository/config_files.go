package repository

import (
	"fmt"
	"os"
	"sync"

	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

// ConfigFileManager 将集群kubeconfig物化为临时文件供 kubectl/helm 使用。
// 文件按集群引用计数：并发读者共享同一文件，最后一个引用释放时删除。
type ConfigFileManager struct {
	clusters *ClusterRepository
	dir      string

	mu      sync.Mutex
	entries map[string]*configEntry
}

type configEntry struct {
	clusterID string
	path      string
	refs      int
	manager   *ConfigFileManager
}

// ConfigHandle 集群kubeconfig临时文件的作用域句柄。
// 用毕必须 Release；Release 幂等。
type ConfigHandle struct {
	entry *configEntry
	once  sync.Once
}

// Path kubeconfig文件路径
func (h *ConfigHandle) Path() string { return h.entry.path }

// Release 释放句柄；最后一个引用释放时删除文件
func (h *ConfigHandle) Release() {
	h.once.Do(func() {
		h.entry.manager.release(h.entry)
	})
}

func NewConfigFileManager(clusters *ClusterRepository, dir string) (*ConfigFileManager, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create kubeconfig scratch dir: %w", err)
	}
	return &ConfigFileManager{
		clusters: clusters,
		dir:      dir,
		entries:  make(map[string]*configEntry),
	}, nil
}

// Acquire 获取集群kubeconfig文件句柄。
// 文件内容与存储中的kubeconfig字节一致。
func (m *ConfigFileManager) Acquire(clusterID string) (*ConfigHandle, error) {
	m.mu.Lock()
	if entry, ok := m.entries[clusterID]; ok {
		entry.refs++
		m.mu.Unlock()
		return &ConfigHandle{entry: entry}, nil
	}
	m.mu.Unlock()

	// 存储读取不持有管理器锁
	cluster, err := m.clusters.FindByID(clusterID)
	if err != nil {
		return nil, err
	}
	if cluster == nil {
		return nil, fmt.Errorf("cluster %s not found", clusterID)
	}

	file, err := os.CreateTemp(m.dir, "kubeconfig-"+clusterID+"-*.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to create kubeconfig file: %w", err)
	}
	if _, err := file.WriteString(cluster.Kubeconfig); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, fmt.Errorf("failed to write kubeconfig file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return nil, fmt.Errorf("failed to write kubeconfig file: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[clusterID]; ok {
		// 另一个调用者抢先物化了文件，用它的
		os.Remove(file.Name())
		entry.refs++
		return &ConfigHandle{entry: entry}, nil
	}
	entry := &configEntry{clusterID: clusterID, path: file.Name(), refs: 1, manager: m}
	m.entries[clusterID] = entry
	return &ConfigHandle{entry: entry}, nil
}

func (m *ConfigFileManager) release(entry *configEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.refs--
	if entry.refs > 0 {
		return
	}
	if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
		logger.Warnf("Failed to remove kubeconfig scratch file %s: %v", entry.path, err)
	}
	if current, ok := m.entries[entry.clusterID]; ok && current == entry {
		delete(m.entries, entry.clusterID)
	}
}

// Invalidate 使集群的物化文件失效（kubeconfig更新后调用）。
// 已发出的句柄保留旧文件直到释放；后续 Acquire 重新物化。
func (m *ConfigFileManager) Invalidate(clusterID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[clusterID]
	if !ok {
		return
	}
	delete(m.entries, clusterID)
	if entry.refs == 0 {
		os.Remove(entry.path)
	}
}
