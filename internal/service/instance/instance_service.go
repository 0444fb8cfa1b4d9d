// Package instance 应用实例引擎：安装/删除Helm release并与存储对账。
package instance

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/repository"
	"github.com/LincolnBryant/slate-client-server/internal/service/access"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/LincolnBryant/slate-client-server/pkg/idgen"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

type InstanceService struct {
	auth        *auth.AuthService
	accessSvc   *access.AccessService
	groups      *repository.GroupRepository
	clusters    *repository.ClusterRepository
	instances   *repository.InstanceRepository
	configFiles *repository.ConfigFileManager
	driver      kube.Driver
	helmCfg     config.HelmConfig
}

func NewInstanceService(
	authService *auth.AuthService,
	accessSvc *access.AccessService,
	groups *repository.GroupRepository,
	clusters *repository.ClusterRepository,
	instances *repository.InstanceRepository,
	configFiles *repository.ConfigFileManager,
	driver kube.Driver,
	helmCfg config.HelmConfig,
) *InstanceService {
	return &InstanceService{
		auth:        authService,
		accessSvc:   accessSvc,
		groups:      groups,
		clusters:    clusters,
		instances:   instances,
		configFiles: configFiles,
		driver:      driver,
		helmCfg:     helmCfg,
	}
}

// InstallRequest 安装请求
type InstallRequest struct {
	Application string // 目录应用名或本地chart路径（ad-hoc）
	Repository  string // stable|dev|test；ChartPath非空时忽略
	ChartPath   string // ad-hoc chart 路径
	GroupRef    string // 组名或组ID
	ClusterRef  string // 集群名或集群ID
	Tag         string // 可选的实例标签，参与租户限定名
	Config      string // 用户helm values配置文本
}

// Install 在目标集群上安装应用实例，返回实例记录。
// 策略检查全部通过后才产生副作用；helm失败时回收已写入的记录。
func (s *InstanceService) Install(ctx context.Context, user *model.User, req InstallRequest) (*model.ApplicationInstance, *model.APIError) {
	group, err := s.groups.Resolve(req.GroupRef)
	if err != nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	if group == nil {
		return nil, model.ErrNotFound("Group not found")
	}
	cluster, err := s.clusters.Resolve(req.ClusterRef)
	if err != nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return nil, model.ErrNotFound("Cluster not found")
	}

	if apiErr := s.auth.RequireMembership(user, group.ID); apiErr != nil {
		return nil, apiErr
	}
	allowed, apiErr := s.accessSvc.GroupMayDeploy(group.ID, cluster, req.Application)
	if apiErr != nil {
		return nil, apiErr
	}
	if !allowed {
		return nil, model.ErrForbidden()
	}

	// 租户限定的release名，在集群内唯一
	name := group.Name + "-" + req.Application
	if req.Tag != "" {
		name += "-" + req.Tag
	}
	existing, err := s.instances.FindByName(cluster.ID, name)
	if err != nil {
		return nil, model.ErrStore(err, "instance lookup failed")
	}
	if existing != nil {
		return nil, model.ErrConflict("Instance name %q is already in use on this cluster", name)
	}

	inst := &model.ApplicationInstance{
		ID:          idgen.NewInstanceID(),
		Name:        name,
		Application: req.Application,
		OwningGroup: group.ID,
		ClusterID:   cluster.ID,
		Config:      req.Config,
	}
	if err := s.instances.Create(inst); err != nil {
		return nil, model.ErrStore(err, "instance record creation failed")
	}

	logger.Infof("%s installing %s as %s on %s for %s", user.ID, req.Application, name, cluster.ID, group.ID)
	if apiErr := s.helmInstall(ctx, cluster, group, inst, req); apiErr != nil {
		if err := s.instances.Delete(inst.ID); err != nil {
			logger.Errorf("Failed to remove record for failed install %s: %v", inst.ID, err)
		}
		return nil, apiErr
	}
	return inst, nil
}

func (s *InstanceService) helmInstall(ctx context.Context, cluster *model.Cluster, group *model.Group, inst *model.ApplicationInstance, req InstallRequest) *model.APIError {
	handle, err := s.configFiles.Acquire(cluster.ID)
	if err != nil {
		return model.ErrStore(err, "unable to materialize cluster kubeconfig")
	}
	defer handle.Release()

	nsResult := kube.EnsureNamespace(ctx, s.driver, handle.Path(), group.NamespaceName())
	if nsResult.Failed() {
		return model.ErrExternalCommand("Unable to create namespace %s: %s", group.NamespaceName(), nsResult.Error)
	}

	chart := req.ChartPath
	if chart == "" {
		chart = s.repoName(req.Repository) + "/" + req.Application
	}

	args := []string{"install", chart, "--name", inst.Name, "--namespace", group.NamespaceName()}
	if inst.Config != "" {
		valuesFile, err := writeValuesFile(inst.Config)
		if err != nil {
			return model.ErrInternal(err, "unable to write helm values file")
		}
		defer os.Remove(valuesFile)
		args = append(args, "--values", valuesFile)
	}

	result := s.driver.Helm(ctx, handle.Path(), cluster.SystemNamespace, args...)
	if result.Failed() {
		return model.ErrExternalCommand("helm install failed: %s", strings.TrimSpace(result.Error))
	}
	return nil
}

// repoName 仓库标签 → helm仓库名
func (s *InstanceService) repoName(tag string) string {
	switch tag {
	case model.RepoDev:
		return s.helmCfg.DevRepo
	case model.RepoTest:
		return s.helmCfg.DevRepo + "-test"
	default:
		return s.helmCfg.StableRepo
	}
}

// Rematerialize 按存储中的记录重新安装release（一致性修复用）。
// 记录已存在，不做策略检查。
func (s *InstanceService) Rematerialize(ctx context.Context, inst *model.ApplicationInstance) *model.APIError {
	group, err := s.groups.FindByID(inst.OwningGroup)
	if err != nil || group == nil {
		return model.ErrStore(err, "group lookup failed")
	}
	cluster, err := s.clusters.FindByID(inst.ClusterID)
	if err != nil || cluster == nil {
		return model.ErrStore(err, "cluster lookup failed")
	}
	req := InstallRequest{Application: inst.Application, Config: inst.Config}
	return s.helmInstall(ctx, cluster, group, inst, req)
}

// Get 查询实例；detailed 时附加目标集群上的实时pod状态
func (s *InstanceService) Get(ctx context.Context, id string, detailed bool) (*model.ApplicationInstance, []PodStatus, *model.APIError) {
	inst, err := s.instances.FindByID(id)
	if err != nil {
		return nil, nil, model.ErrStore(err, "instance lookup failed")
	}
	if inst == nil {
		return nil, nil, model.ErrNotFound("Instance not found")
	}
	if !detailed {
		return inst, nil, nil
	}
	pods, apiErr := s.listPods(ctx, inst)
	if apiErr != nil {
		// 实时状态尽力而为：集群不可达时仍返回记录本身
		logger.Warnf("Unable to fetch live status for %s: %v", inst.ID, apiErr)
		return inst, nil, nil
	}
	return inst, pods, nil
}

// PodStatus 实例pod的实时状态
type PodStatus struct {
	Name   string `json:"name"`
	Ready  string `json:"ready"`
	Status string `json:"status"`
}

func (s *InstanceService) listPods(ctx context.Context, inst *model.ApplicationInstance) ([]PodStatus, *model.APIError) {
	group, err := s.groups.FindByID(inst.OwningGroup)
	if err != nil || group == nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	handle, err := s.configFiles.Acquire(inst.ClusterID)
	if err != nil {
		return nil, model.ErrStore(err, "unable to materialize cluster kubeconfig")
	}
	defer handle.Release()

	result := s.driver.Kubectl(ctx, handle.Path(), "get", "pods", "--namespace", group.NamespaceName())
	if result.Failed() {
		return nil, model.ErrExternalCommand("unable to list pods: %s", result.Error)
	}
	var pods []PodStatus
	for i, line := range kube.SplitLines(result.Output) {
		if i == 0 { // 表头
			continue
		}
		cols := kube.SplitColumns(line)
		if len(cols) < 3 || !strings.HasPrefix(cols[0], inst.Name) {
			continue
		}
		pods = append(pods, PodStatus{Name: cols[0], Ready: cols[1], Status: cols[2]})
	}
	return pods, nil
}

// List 按 (组|*, 集群|*) 列出实例；引用可为名称或ID
func (s *InstanceService) List(groupRef, clusterRef string) ([]model.ApplicationInstance, *model.APIError) {
	groupID := ""
	if groupRef != "" {
		group, err := s.groups.Resolve(groupRef)
		if err != nil {
			return nil, model.ErrStore(err, "group lookup failed")
		}
		if group == nil {
			return nil, model.ErrNotFound("Group not found")
		}
		groupID = group.ID
	}
	clusterID := ""
	if clusterRef != "" {
		cluster, err := s.clusters.Resolve(clusterRef)
		if err != nil {
			return nil, model.ErrStore(err, "cluster lookup failed")
		}
		if cluster == nil {
			return nil, model.ErrNotFound("Cluster not found")
		}
		clusterID = cluster.ID
	}
	instances, err := s.instances.List(groupID, clusterID)
	if err != nil {
		return nil, model.ErrStore(err, "instance listing failed")
	}
	return instances, nil
}

// Delete 删除实例：helm delete → 存储删除。
// force 时即便helm失败也删除存储记录。
func (s *InstanceService) Delete(ctx context.Context, user *model.User, id string, force bool) *model.APIError {
	inst, err := s.instances.FindByID(id)
	if err != nil {
		return model.ErrStore(err, "instance lookup failed")
	}
	if inst == nil {
		return model.ErrNotFound("Instance not found")
	}
	if apiErr := s.auth.RequireMembership(user, inst.OwningGroup); apiErr != nil {
		return apiErr
	}
	logger.Infof("%s deleting instance %s (%s)", user.ID, inst.ID, inst.Name)
	return s.DeleteRecord(ctx, inst, force)
}

// DeleteRecord 删除实例的内部入口，供集群级联复用。
// 调用方负责授权。
func (s *InstanceService) DeleteRecord(ctx context.Context, inst *model.ApplicationInstance, force bool) *model.APIError {
	cluster, err := s.clusters.FindByID(inst.ClusterID)
	if err != nil {
		return model.ErrStore(err, "cluster lookup failed")
	}

	var helmErr *model.APIError
	if cluster != nil {
		handle, err := s.configFiles.Acquire(cluster.ID)
		if err != nil {
			helmErr = model.ErrStore(err, "unable to materialize cluster kubeconfig")
		} else {
			result := s.driver.Helm(ctx, handle.Path(), cluster.SystemNamespace, "delete", "--purge", inst.Name)
			handle.Release()
			if result.Failed() && !strings.Contains(result.Error, "not found") {
				helmErr = model.ErrExternalCommand("helm delete failed: %s", strings.TrimSpace(result.Error))
			}
		}
	}
	if helmErr != nil && !force {
		return helmErr
	}
	if helmErr != nil {
		logger.Warnf("Forced delete of %s proceeding despite helm failure: %v", inst.ID, helmErr)
	}

	if err := s.instances.Delete(inst.ID); err != nil {
		return model.ErrStore(err, "instance record deletion failed")
	}
	return nil
}

// Restart 重启实例：helm delete --purge 后按存储的配置重新安装
func (s *InstanceService) Restart(ctx context.Context, user *model.User, id string) (*model.ApplicationInstance, *model.APIError) {
	inst, err := s.instances.FindByID(id)
	if err != nil {
		return nil, model.ErrStore(err, "instance lookup failed")
	}
	if inst == nil {
		return nil, model.ErrNotFound("Instance not found")
	}
	if apiErr := s.auth.RequireMembership(user, inst.OwningGroup); apiErr != nil {
		return nil, apiErr
	}
	group, err := s.groups.FindByID(inst.OwningGroup)
	if err != nil || group == nil {
		return nil, model.ErrStore(err, "group lookup failed")
	}
	cluster, err := s.clusters.FindByID(inst.ClusterID)
	if err != nil || cluster == nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}

	handle, err := s.configFiles.Acquire(cluster.ID)
	if err != nil {
		return nil, model.ErrStore(err, "unable to materialize cluster kubeconfig")
	}
	result := s.driver.Helm(ctx, handle.Path(), cluster.SystemNamespace, "delete", "--purge", inst.Name)
	handle.Release()
	if result.Failed() && !strings.Contains(result.Error, "not found") {
		return nil, model.ErrExternalCommand("helm delete failed: %s", strings.TrimSpace(result.Error))
	}

	logger.Infof("%s restarting instance %s (%s)", user.ID, inst.ID, inst.Name)
	req := InstallRequest{Application: inst.Application, Config: inst.Config}
	if apiErr := s.helmInstall(ctx, cluster, group, inst, req); apiErr != nil {
		return nil, apiErr
	}
	return inst, nil
}

// LogOptions 日志查询选项
type LogOptions struct {
	MaxLines  int    // 0 为默认
	Container string // 空为全部容器
	Previous  bool
}

// Logs 收集实例各pod的日志
func (s *InstanceService) Logs(ctx context.Context, id string, opts LogOptions) (string, *model.APIError) {
	inst, err := s.instances.FindByID(id)
	if err != nil {
		return "", model.ErrStore(err, "instance lookup failed")
	}
	if inst == nil {
		return "", model.ErrNotFound("Instance not found")
	}
	group, err := s.groups.FindByID(inst.OwningGroup)
	if err != nil || group == nil {
		return "", model.ErrStore(err, "group lookup failed")
	}

	pods, apiErr := s.listPods(ctx, inst)
	if apiErr != nil {
		return "", apiErr
	}

	handle, err := s.configFiles.Acquire(inst.ClusterID)
	if err != nil {
		return "", model.ErrStore(err, "unable to materialize cluster kubeconfig")
	}
	defer handle.Release()

	var out strings.Builder
	for _, pod := range pods {
		args := []string{"logs", pod.Name, "--namespace", group.NamespaceName()}
		if opts.Container != "" {
			args = append(args, "--container", opts.Container)
		} else {
			args = append(args, "--all-containers")
		}
		if opts.MaxLines > 0 {
			args = append(args, "--tail", strconv.Itoa(opts.MaxLines))
		}
		if opts.Previous {
			args = append(args, "--previous")
		}
		result := s.driver.Kubectl(ctx, handle.Path(), args...)
		fmt.Fprintf(&out, "========================================\npod: %s\n", pod.Name)
		if result.Failed() {
			fmt.Fprintf(&out, "<unable to fetch logs: %s>\n", strings.TrimSpace(result.Error))
			continue
		}
		out.WriteString(result.Output)
	}
	return out.String(), nil
}

// writeValuesFile 将用户配置写入临时values文件
func writeValuesFile(contents string) (string, error) {
	file, err := os.CreateTemp("", "values-*.yaml")
	if err != nil {
		return "", err
	}
	if _, err := file.WriteString(contents); err != nil {
		file.Close()
		os.Remove(file.Name())
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(file.Name())
		return "", err
	}
	return file.Name(), nil
}
