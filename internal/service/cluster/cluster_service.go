// Package cluster 集群生命周期引擎：注册、验证、引导、可达性、一致性与级联删除。
package cluster

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/internal/service/instance"
	"github.com/LincolnBryant/slate-client-server/internal/service/secret"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
	"github.com/LincolnBryant/slate-client-server/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Tiller就绪轮询参数
const (
	defaultPollPeriod   = 500 * time.Millisecond
	defaultPollDeadline = 120 * time.Second
)

type ClusterService struct {
	auth        *auth.AuthService
	groups      *repository.GroupRepository
	clusters    *repository.ClusterRepository
	instances   *repository.InstanceRepository
	secrets     *repository.SecretRepository
	configFiles *repository.ConfigFileManager
	instanceSvc *instance.InstanceService
	secretSvc   *secret.SecretService
	driver      kube.Driver

	// 轮询参数可注入以便测试
	pollPeriod   time.Duration
	pollDeadline time.Duration
}

func NewClusterService(
	authService *auth.AuthService,
	groups *repository.GroupRepository,
	clusters *repository.ClusterRepository,
	instances *repository.InstanceRepository,
	secrets *repository.SecretRepository,
	configFiles *repository.ConfigFileManager,
	instanceSvc *instance.InstanceService,
	secretSvc *secret.SecretService,
	driver kube.Driver,
) *ClusterService {
	return &ClusterService{
		auth:         authService,
		groups:       groups,
		clusters:     clusters,
		instances:    instances,
		secrets:      secrets,
		configFiles:  configFiles,
		instanceSvc:  instanceSvc,
		secretSvc:    secretSvc,
		driver:       driver,
		pollPeriod:   defaultPollPeriod,
		pollDeadline: defaultPollDeadline,
	}
}

// SetPollParameters 覆盖Tiller就绪轮询参数（测试用）
func (s *ClusterService) SetPollParameters(period, deadline time.Duration) {
	s.pollPeriod = period
	s.pollDeadline = deadline
}

// RegisterRequest 集群注册请求
type RegisterRequest struct {
	Name               string
	GroupRef           string // 组名或组ID
	OwningOrganization string
	Kubeconfig         string // 客户端转义后的kubeconfig文本
}

// Register 注册集群：校验 → 暂存记录 → 接触集群 → 初始化Helm → 等待Tiller就绪。
// 任一引导步骤失败则回收暂存记录并返回 BootstrapFailed。
func (s *ClusterService) Register(ctx context.Context, user *model.User, req RegisterRequest) (*model.Cluster, *model.APIError) {
	if req.Name == "" {
		return nil, model.ErrBadRequest("Missing cluster name in request")
	}
	if req.GroupRef == "" {
		return nil, model.ErrBadRequest("Missing group in request")
	}
	if req.OwningOrganization == "" {
		return nil, model.ErrBadRequest("Missing organization name in request")
	}
	if req.Kubeconfig == "" {
		return nil, model.ErrBadRequest("Missing kubeconfig in request")
	}

	kubeconfig := UnescapeConfig(req.Kubeconfig)
	systemNamespace, err := ExtractSystemNamespace(kubeconfig)
	if err != nil {
		return nil, model.ErrBadRequest("Unable to parse kubeconfig as YAML")
	}
	if systemNamespace == "" {
		return nil, model.ErrBadRequest("Unable to determine kubernetes namespace from kubeconfig")
	}

	group, err := s.groups.Resolve(req.GroupRef)
	if err != nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		// 目标组不存在时不能代其注册
		return nil, model.ErrForbidden()
	}
	// 用户不能向自己不属于的组注册集群
	if apiErr := s.auth.RequireMembership(user, group.ID); apiErr != nil {
		return nil, apiErr
	}

	if strings.Contains(req.Name, "/") {
		return nil, model.ErrBadRequest("Cluster names may not contain slashes")
	}
	if strings.HasPrefix(req.Name, idgen.ClusterIDPrefix) {
		return nil, model.ErrBadRequest("Cluster names may not begin with %s", idgen.ClusterIDPrefix)
	}
	existing, err := s.clusters.FindByName(req.Name)
	if err != nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}
	if existing != nil {
		return nil, model.ErrConflict("Cluster name is already in use")
	}

	cluster := &model.Cluster{
		ID:                 idgen.NewClusterID(),
		Name:               req.Name,
		OwningGroup:        group.ID,
		OwningOrganization: req.OwningOrganization,
		Kubeconfig:         kubeconfig,
		SystemNamespace:    systemNamespace,
		Valid:              true,
	}

	logger.Infof("%s creating cluster %s (%s)", user.ID, cluster.ID, cluster.Name)
	if err := s.clusters.Create(cluster); err != nil {
		return nil, model.ErrStore(err, "cluster registration failed")
	}

	if apiErr := s.bootstrap(ctx, cluster); apiErr != nil {
		logger.Infof("Failure bootstrapping %s; deleting its record", cluster.ID)
		metrics.ClusterBootstrapsTotal.WithLabelValues("failure").Inc()
		s.removeTentativeRecord(cluster)
		return nil, apiErr
	}

	metrics.ClusterBootstrapsTotal.WithLabelValues("success").Inc()
	logger.Infof("Created cluster %s owned by %s on behalf of %s", cluster.ID, cluster.OwningGroup, user.ID)
	return cluster, nil
}

func (s *ClusterService) removeTentativeRecord(cluster *model.Cluster) {
	if err := s.clusters.Delete(cluster.ID); err != nil {
		logger.Errorf("Failed to remove tentative record for %s: %v", cluster.ID, err)
	}
	s.configFiles.Invalidate(cluster.ID)
}

// bootstrap 验证命名空间/ServiceAccount并初始化Helm/Tiller
func (s *ClusterService) bootstrap(ctx context.Context, cluster *model.Cluster) *model.APIError {
	handle, err := s.configFiles.Acquire(cluster.ID)
	if err != nil {
		return model.ErrBootstrapFailed("Cluster registration failed: unable to materialize kubeconfig")
	}
	defer handle.Release()
	configPath := handle.Path()

	// 接触集群：默认命名空间必须可列出ServiceAccount，且包含default和系统命名空间同名账号
	logger.Infof("Attempting to access %s", cluster.ID)
	info := s.driver.Kubectl(ctx, configPath, "get", "serviceaccounts", "-o=jsonpath={.items[*].metadata.name}")
	if info.Failed() || !strings.Contains(info.Output, "default") {
		logger.Errorf("Failure contacting %s: %s", cluster.ID, info.Error)
		return model.ErrBootstrapFailed("Cluster registration failed: Unable to contact cluster with kubectl")
	}
	serviceAccounts := kube.SplitColumns(info.Output)
	if len(serviceAccounts) == 0 {
		return model.ErrBootstrapFailed("Cluster registration failed: Found no ServiceAccounts in the default namespace")
	}
	found := false
	for _, sa := range serviceAccounts {
		if sa == cluster.SystemNamespace {
			found = true
			break
		}
	}
	if !found {
		return model.ErrBootstrapFailed("Cluster registration failed: Unable to find matching service account in default namespace")
	}

	// 复核该ServiceAccount的Namespace确实与系统命名空间一致
	describe := s.driver.Kubectl(ctx, configPath, "describe", "serviceaccount", cluster.SystemNamespace)
	if describe.Failed() {
		logger.Errorf("Failure confirming namespace name: %s", describe.Error)
		return model.ErrBootstrapFailed("Cluster registration failed: Checking default namespace name failed")
	}
	okay := false
	badline := ""
	for _, line := range kube.SplitLines(describe.Output) {
		items := kube.SplitColumns(line)
		if len(items) != 2 {
			continue
		}
		if items[0] == "Namespace:" {
			if items[1] == cluster.SystemNamespace {
				okay = true
			} else {
				badline = line
			}
		}
	}
	if !okay {
		logger.Errorf("Default namespace does not appear to match ServiceAccount: %s", badline)
		return model.ErrBootstrapFailed("Cluster registration failed: Default namespace does not appear to match default ServiceAccount: %s, ServiceAccount: %s", badline, cluster.SystemNamespace)
	}

	// 只要还在用helm 2，集群上就需要运行Tiller
	initResult := s.driver.Helm(ctx, configPath, "",
		"init", "--service-account", cluster.SystemNamespace,
		"--tiller-namespace", cluster.SystemNamespace)
	installed := strings.Contains(initResult.Output, "has been installed")
	already := strings.Contains(initResult.Output, "is already installed")
	if initResult.Failed() || (!installed && !already) {
		logger.Infof("Problem initializing helm on %s", cluster.ID)
		return model.ErrBootstrapFailed("Cluster registration failed: Unable to initialize helm")
	}
	if strings.Contains(initResult.Output, "Warning: Tiller is already installed") {
		// 确认Tiller在我们的命名空间，而不是其他地方（比如kube-system）
		deployments := s.driver.Kubectl(ctx, configPath,
			"get", "deployments", "--namespace", cluster.SystemNamespace,
			"-o=jsonpath={.items[*].metadata.name}")
		okay := false
		if !deployments.Failed() {
			for _, deployment := range kube.SplitColumns(deployments.Output) {
				if deployment == "tiller-deploy" {
					okay = true
				}
			}
		}
		if !okay {
			logger.Infof("Cannot install tiller correctly because it is already installed (probably in the kube-system namespace)")
			return model.ErrBootstrapFailed("Cluster registration failed: Unable to initialize helm")
		}
	}

	return s.waitForTiller(ctx, cluster, configPath)
}

// waitForTiller 轮询直到 tiller-deploy pod 报告 N/N 就绪
func (s *ClusterService) waitForTiller(ctx context.Context, cluster *model.Cluster, configPath string) *model.APIError {
	logger.Infof("Checking for running tiller on %s", cluster.ID)
	deadline := time.Now().Add(s.pollDeadline)
	for {
		result := s.driver.Kubectl(ctx, configPath, "get", "pods", "--namespace", cluster.SystemNamespace)
		if result.Failed() {
			logger.Errorf("Checking tiller status on %s failed: %s", cluster.ID, result.Error)
			return model.ErrBootstrapFailed("Cluster registration failed: Unable to check tiller status")
		}
		for _, line := range kube.SplitLines(result.Output) {
			tokens := kube.SplitColumns(line)
			if len(tokens) < 3 || !strings.HasPrefix(tokens[0], "tiller-deploy") {
				continue
			}
			ready, total, ok := kube.ParseReadyFraction(tokens[1])
			if ok && ready > 0 && ready == total {
				logger.Infof("Tiller ready on %s", cluster.ID)
				return nil
			}
		}

		if time.Now().After(deadline) {
			logger.Errorf("Waiting for tiller readiness on %s (%s) timed out", cluster.ID, cluster.SystemNamespace)
			return model.ErrBootstrapFailed("Cluster registration failed: Tiller readiness timed out after %s", s.pollDeadline)
		}
		select {
		case <-ctx.Done():
			return model.ErrBootstrapFailed("Cluster registration failed: cancelled while waiting for tiller")
		case <-time.After(s.pollPeriod):
		}
	}
}

// probe 接触集群：默认命名空间的ServiceAccount探测
func (s *ClusterService) probe(ctx context.Context, cluster *model.Cluster) bool {
	handle, err := s.configFiles.Acquire(cluster.ID)
	if err != nil {
		logger.Errorf("Unable to materialize kubeconfig for %s: %v", cluster.ID, err)
		return false
	}
	defer handle.Release()

	info := s.driver.Kubectl(ctx, handle.Path(), "get", "serviceaccounts", "-o=jsonpath={.items[*].metadata.name}")
	if info.Failed() || !strings.Contains(info.Output, "default") {
		logger.Infof("Unable to contact %s", cluster.ID)
		return false
	}
	logger.Infof("Success contacting %s", cluster.ID)
	return true
}

// Ping 集群可达性。useCache 时优先消费TTL内的缓存结果；
// 否则执行探测并刷新缓存。
func (s *ClusterService) Ping(ctx context.Context, clusterID string, useCache bool) (bool, *model.APIError) {
	cluster, err := s.clusters.FindByID(clusterID)
	if err != nil {
		return false, model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return false, model.ErrNotFound("Cluster not found")
	}

	if useCache {
		if reachable, ok := s.clusters.GetCachedReachability(cluster.ID); ok {
			return reachable, nil
		}
	}
	reachable := s.probe(ctx, cluster)
	s.clusters.CacheReachability(cluster.ID, reachable)
	return reachable, nil
}

// UpdateRequest 集群更新请求；nil字段保持现值
type UpdateRequest struct {
	OwningOrganization *string
	Kubeconfig         *string
	Locations          *[]model.GeoLocation
}

// Update 更新集群。kubeconfig变更后重新执行接触探测；
// 探测失败返回 BadRequest，但已写入的配置不回滚。
func (s *ClusterService) Update(ctx context.Context, user *model.User, clusterID string, req UpdateRequest) *model.APIError {
	cluster, err := s.clusters.FindByID(clusterID)
	if err != nil {
		return model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return model.ErrNotFound("Cluster not found")
	}
	if apiErr := s.auth.RequireMembership(user, cluster.OwningGroup); apiErr != nil {
		return apiErr
	}

	updateMainRecord := false
	updateConfig := false
	if req.Kubeconfig != nil {
		cluster.Kubeconfig = UnescapeConfig(*req.Kubeconfig)
		// 能解析出新的系统命名空间就跟着换
		if ns, err := ExtractSystemNamespace(cluster.Kubeconfig); err == nil && ns != "" {
			cluster.SystemNamespace = ns
		}
		updateMainRecord = true
		updateConfig = true
	}
	if req.OwningOrganization != nil {
		cluster.OwningOrganization = *req.OwningOrganization
		updateMainRecord = true
	}

	if !updateMainRecord && req.Locations == nil {
		logger.Infof("Requested update to %s is trivial", cluster.ID)
		return nil
	}

	logger.Infof("%s updating cluster %s", user.ID, cluster.ID)
	if updateMainRecord {
		if err := s.clusters.Update(cluster); err != nil {
			return model.ErrStore(err, "cluster update failed")
		}
	}
	if req.Locations != nil {
		if err := s.clusters.SetLocations(cluster.ID, *req.Locations); err != nil {
			return model.ErrStore(err, "cluster update failed")
		}
	}

	if updateConfig {
		s.configFiles.Invalidate(cluster.ID)
		if !s.probe(ctx, cluster) {
			return model.ErrBadRequest("Unable to contact cluster with kubectl after configuration update")
		}
	}
	return nil
}

// Get 查询集群
func (s *ClusterService) Get(clusterID string) (*model.Cluster, *model.APIError) {
	cluster, err := s.clusters.FindByID(clusterID)
	if err != nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return nil, model.ErrNotFound("Cluster not found")
	}
	return cluster, nil
}

// List 列出集群；groupRef 非空时仅列归属该组的
func (s *ClusterService) List(groupRef string) ([]model.Cluster, *model.APIError) {
	if groupRef != "" {
		group, err := s.groups.Resolve(groupRef)
		if err != nil {
			return nil, model.ErrStore(err, "group lookup failed")
		}
		if group == nil {
			return nil, model.ErrNotFound("Group not found")
		}
		clusters, err := s.clusters.ListByGroup(group.ID)
		if err != nil {
			return nil, model.ErrStore(err, "cluster listing failed")
		}
		return clusters, nil
	}
	clusters, err := s.clusters.List()
	if err != nil {
		return nil, model.ErrStore(err, "cluster listing failed")
	}
	return clusters, nil
}

// Delete 级联删除集群。顺序强制：
// 实例（串行，helm同集群release操作不可并发）→ Secret（并发）→
// 租户命名空间（并发，失败只记日志）→ 集群记录。
// helm release 引用 secret 和命名空间，先删命名空间会遗留helm孤儿状态。
func (s *ClusterService) Delete(ctx context.Context, user *model.User, clusterID string, force bool) *model.APIError {
	cluster, err := s.clusters.FindByID(clusterID)
	if err != nil {
		return model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return model.ErrNotFound("Cluster not found")
	}
	if apiErr := s.auth.RequireMembership(user, cluster.OwningGroup); apiErr != nil {
		return apiErr
	}

	logger.Infof("%s deleting cluster %s (%s)", user.ID, cluster.ID, cluster.Name)

	// 阶段1：串行删除实例
	instances, err := s.instances.List("", cluster.ID)
	if err != nil {
		return model.ErrStore(err, "instance listing failed")
	}
	for i := range instances {
		inst := instances[i]
		if apiErr := s.instanceSvc.DeleteRecord(ctx, &inst, force); apiErr != nil {
			if !force {
				metrics.ClusterCascadeStagesTotal.WithLabelValues("instances", "failure").Inc()
				return model.ErrCascadeFailure("Failed to delete cluster due to failure deleting instance: %s", apiErr.Message)
			}
			logger.Warnf("Ignoring failure deleting instance %s during forced cascade: %v", inst.ID, apiErr)
		}
	}
	metrics.ClusterCascadeStagesTotal.WithLabelValues("instances", "success").Inc()

	// 阶段2：并发删除Secret，全部完成后再推进
	secrets, err := s.secrets.List("", cluster.ID)
	if err != nil {
		return model.ErrStore(err, "secret listing failed")
	}
	var eg errgroup.Group
	for i := range secrets {
		sec := secrets[i]
		eg.Go(func() error {
			if apiErr := s.secretSvc.DeleteRecord(ctx, &sec, force); apiErr != nil {
				if !force {
					return apiErr
				}
				logger.Warnf("Ignoring failure deleting secret %s during forced cascade: %v", sec.ID, apiErr)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		metrics.ClusterCascadeStagesTotal.WithLabelValues("secrets", "failure").Inc()
		return model.ErrCascadeFailure("Failed to delete cluster due to failure deleting secret: %v", err)
	}
	metrics.ClusterCascadeStagesTotal.WithLabelValues("secrets", "success").Inc()

	// 阶段3：并发删除各组命名空间；个别失败记日志，不中止
	groups, err := s.groups.List()
	if err != nil {
		return model.ErrStore(err, "group listing failed")
	}
	handle, err := s.configFiles.Acquire(cluster.ID)
	if err != nil {
		logger.Errorf("Unable to materialize kubeconfig for %s during cascade: %v", cluster.ID, err)
	} else {
		logger.Infof("Deleting namespaces on cluster %s", cluster.ID)
		var wg sync.WaitGroup
		for i := range groups {
			group := groups[i]
			wg.Add(1)
			go func() {
				defer wg.Done()
				result := s.driver.DeleteNamespace(ctx, handle.Path(), group.NamespaceName())
				if result.Failed() {
					logger.Errorf("Failed to delete namespace %s from %s: %s",
						group.NamespaceName(), cluster.ID, result.Error)
				}
			}()
		}
		wg.Wait()
		handle.Release()
	}
	metrics.ClusterCascadeStagesTotal.WithLabelValues("namespaces", "success").Inc()

	// 阶段4：删除集群记录
	if err := s.clusters.Delete(cluster.ID); err != nil {
		metrics.ClusterCascadeStagesTotal.WithLabelValues("record", "failure").Inc()
		return model.ErrStore(err, "cluster deletion failed")
	}
	metrics.ClusterCascadeStagesTotal.WithLabelValues("record", "success").Inc()
	s.configFiles.Invalidate(cluster.ID)
	return nil
}
