// Package testutil 测试公用的存储与实体装配。
package testutil

import (
	"testing"
	"time"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/pkg/cache"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 打开内存sqlite并迁移全部表
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// 内存库随连接存在：连接池固定为单连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	models := []interface{}{
		&model.User{},
		&model.Group{},
		&model.GroupMember{},
		&model.Cluster{},
		&model.ClusterAccess{},
		&model.ClusterAppGrant{},
		&model.ApplicationInstance{},
		&model.Secret{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			t.Fatalf("failed to migrate %T: %v", m, err)
		}
	}
	return db
}

// Store 测试用的全套仓库
type Store struct {
	DB          *gorm.DB
	Cache       cache.Cache
	TTLs        repository.CacheTTLs
	Users       *repository.UserRepository
	Groups      *repository.GroupRepository
	Clusters    *repository.ClusterRepository
	Instances   *repository.InstanceRepository
	Secrets     *repository.SecretRepository
	Access      *repository.AccessRepository
	ConfigFiles *repository.ConfigFileManager
}

// NewStore 构建仓库全家桶；缓存为进程内实现
func NewStore(t *testing.T) *Store {
	t.Helper()
	return NewStoreWithTTLs(t, repository.DefaultCacheTTLs())
}

// NewStoreWithTTLs 指定缓存TTL构建仓库
func NewStoreWithTTLs(t *testing.T, ttls repository.CacheTTLs) *Store {
	t.Helper()
	db := NewDB(t)
	c := cache.NewMemoryCache()
	t.Cleanup(func() { c.Close() })

	clusters := repository.NewClusterRepository(db, c, ttls)
	configFiles, err := repository.NewConfigFileManager(clusters, t.TempDir())
	if err != nil {
		t.Fatalf("failed to create config file manager: %v", err)
	}
	return &Store{
		DB:          db,
		Cache:       c,
		TTLs:        ttls,
		Users:       repository.NewUserRepository(db, c, ttls),
		Groups:      repository.NewGroupRepository(db, c, ttls),
		Clusters:    clusters,
		Instances:   repository.NewInstanceRepository(db, c, ttls),
		Secrets:     repository.NewSecretRepository(db, c, ttls),
		Access:      repository.NewAccessRepository(db),
		ConfigFiles: configFiles,
	}
}

// MakeUser 造一个用户
func (s *Store) MakeUser(t *testing.T, name string, admin bool) *model.User {
	t.Helper()
	user := &model.User{
		ID:    idgen.NewUserID(),
		Name:  name,
		Email: name + "@example.com",
		Token: idgen.NewUserToken(),
		Admin: admin,
		Valid: true,
	}
	if err := s.Users.Create(user); err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return user
}

// MakeGroup 造一个组并加入成员
func (s *Store) MakeGroup(t *testing.T, name string, members ...*model.User) *model.Group {
	t.Helper()
	group := &model.Group{
		ID:   idgen.NewGroupID(),
		Name: name,
	}
	if err := s.Groups.Create(group); err != nil {
		t.Fatalf("failed to create group %s: %v", name, err)
	}
	for _, member := range members {
		if err := s.Groups.AddMember(member.ID, group.ID); err != nil {
			t.Fatalf("failed to add %s to %s: %v", member.ID, group.ID, err)
		}
	}
	return group
}

// TestKubeconfig 带默认上下文命名空间的最小kubeconfig
const TestKubeconfig = `apiVersion: v1
kind: Config
clusters:
- cluster:
    server: https://cluster.example.com:6443
  name: test-cluster
contexts:
- context:
    cluster: test-cluster
    user: test-user
    namespace: kube-system
  name: test-context
current-context: test-context
users:
- name: test-user
  user:
    token: abcdef
`

// MakeCluster 造一个已注册状态的集群记录
func (s *Store) MakeCluster(t *testing.T, name string, owner *model.Group) *model.Cluster {
	t.Helper()
	cluster := &model.Cluster{
		ID:              idgen.NewClusterID(),
		Name:            name,
		OwningGroup:     owner.ID,
		SystemNamespace: "kube-system",
		Kubeconfig:      TestKubeconfig,
		Valid:           true,
	}
	if err := s.Clusters.Create(cluster); err != nil {
		t.Fatalf("failed to create cluster %s: %v", name, err)
	}
	return cluster
}

// ShortTTLs 毫秒级TTL，用于缓存过期测试
func ShortTTLs(d time.Duration) repository.CacheTTLs {
	return repository.CacheTTLs{Entity: d, Record: d, Reachability: d}
}
