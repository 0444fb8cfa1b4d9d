package cluster

import (
	"context"
	"sort"
	"strings"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/internal/service/secret"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

// ConsistencyStatus 集群一致性检查结论
type ConsistencyStatus string

const (
	StatusUnreachable  ConsistencyStatus = "Unreachable"
	StatusHelmFailure  ConsistencyStatus = "HelmFailure"
	StatusInconsistent ConsistencyStatus = "Inconsistent"
	StatusConsistent   ConsistencyStatus = "Consistent"
)

// ConsistencyResult 期望状态（存储）与观测状态（集群）的差集
type ConsistencyResult struct {
	Status ConsistencyStatus

	// MissingInstances 存储中存在而集群上缺失的实例
	MissingInstances []model.ApplicationInstance
	// UnexpectedInstances 集群上存在而存储中没有记录的release名
	UnexpectedInstances []string

	// MissingSecrets 存储中存在而集群上缺失的Secret
	MissingSecrets []model.Secret
	// UnexpectedSecrets 集群上存在而存储中没有记录的 <组名>:<secret名> 键
	UnexpectedSecrets []string
}

// Verify 检查集群实际状态与存储的一致性
func (s *ClusterService) Verify(ctx context.Context, clusterID string) (*ConsistencyResult, *model.APIError) {
	cluster, err := s.clusters.FindByID(clusterID)
	if err != nil {
		return nil, model.ErrStore(err, "cluster lookup failed")
	}
	if cluster == nil {
		return nil, model.ErrNotFound("Cluster not found")
	}

	result := &ConsistencyResult{Status: StatusConsistent}

	if !s.probe(ctx, cluster) {
		result.Status = StatusUnreachable
		return result, nil
	}

	handle, err := s.configFiles.Acquire(cluster.ID)
	if err != nil {
		return nil, model.ErrStore(err, "unable to materialize cluster kubeconfig")
	}
	defer handle.Release()
	configPath := handle.Path()

	// helm眼中存在哪些release
	listResult := s.driver.Helm(ctx, configPath, cluster.SystemNamespace, "list")
	if listResult.Failed() {
		logger.Infof("Unable to list helm releases on %s", cluster.ID)
		result.Status = StatusHelmFailure
		return result, nil
	}
	existingInstances := map[string]bool{}
	for i, line := range kube.SplitLines(listResult.Output) {
		if i == 0 { // helm的表头行
			continue
		}
		items := kube.SplitColumnsSep(line, "\t")
		if len(items) == 0 {
			continue
		}
		existingInstances[items[0]] = true
	}

	// 存储期望存在哪些实例
	expectedInstances, err := s.instances.List("", cluster.ID)
	if err != nil {
		return nil, model.ErrStore(err, "instance listing failed")
	}
	expectedInstanceNames := map[string]bool{}
	for _, inst := range expectedInstances {
		expectedInstanceNames[inst.Name] = true
		if !existingInstances[inst.Name] {
			result.MissingInstances = append(result.MissingInstances, inst)
		}
	}
	for name := range existingInstances {
		if !expectedInstanceNames[name] {
			result.UnexpectedInstances = append(result.UnexpectedInstances, name)
		}
	}
	sort.Strings(result.UnexpectedInstances)

	logger.Infof("%s is missing %d instance(s) and has %d unexpected instance(s)",
		cluster.ID, len(result.MissingInstances), len(result.UnexpectedInstances))

	// 集群上实际存在哪些secret：遍历组前缀命名空间
	namespaceInfo := s.driver.Kubectl(ctx, configPath, "get", "namespaces", "-o=jsonpath={.items[*].metadata.name}")
	existingSecrets := map[string]bool{}
	for _, namespaceName := range kube.SplitColumns(namespaceInfo.Output) {
		if !strings.HasPrefix(namespaceName, model.NamespacePrefix) {
			continue
		}
		groupName := strings.TrimPrefix(namespaceName, model.NamespacePrefix)
		secretsInfo := s.driver.Kubectl(ctx, configPath, "get", "secrets", "-n", namespaceName, "-o=jsonpath={.items[*].metadata.name}")
		for _, secretName := range kube.SplitColumns(secretsInfo.Output) {
			if strings.HasPrefix(secretName, "default-token-") {
				continue // kubernetes基础设施
			}
			existingSecrets[secret.FormatKey(groupName, secretName)] = true
		}
	}

	// 存储期望存在哪些secret
	expectedSecrets, err := s.secrets.List("", cluster.ID)
	if err != nil {
		return nil, model.ErrStore(err, "secret listing failed")
	}
	expectedSecretKeys := map[string]bool{}
	for _, sec := range expectedSecrets {
		group, err := s.groups.FindByID(sec.OwningGroup)
		if err != nil || group == nil {
			logger.Errorf("Secret %s refers to unknown group %s", sec.ID, sec.OwningGroup)
			continue
		}
		key := secret.FormatKey(group.Name, sec.Name)
		expectedSecretKeys[key] = true
		if !existingSecrets[key] {
			result.MissingSecrets = append(result.MissingSecrets, sec)
		}
	}
	for key := range existingSecrets {
		if !expectedSecretKeys[key] {
			result.UnexpectedSecrets = append(result.UnexpectedSecrets, key)
		}
	}
	sort.Strings(result.UnexpectedSecrets)

	logger.Infof("%s is missing %d secret(s) and has %d unexpected secret(s)",
		cluster.ID, len(result.MissingSecrets), len(result.UnexpectedSecrets))

	if len(result.MissingInstances) > 0 || len(result.UnexpectedInstances) > 0 ||
		len(result.MissingSecrets) > 0 || len(result.UnexpectedSecrets) > 0 {
		result.Status = StatusInconsistent
	}
	return result, nil
}

// RepairStrategy 对账策略
type RepairStrategy string

const (
	// StrategyReinstall 重新物化缺失的实例和Secret
	StrategyReinstall RepairStrategy = "reinstall"
	// StrategyWipe 删除没有观测对应物的存储记录
	StrategyWipe RepairStrategy = "wipe"
)

// RepairReport 对账结果
type RepairReport struct {
	Status            ConsistencyStatus `json:"status"`
	Strategy          RepairStrategy    `json:"strategy"`
	RepairedInstances []string          `json:"repairedInstances"`
	RepairedSecrets   []string          `json:"repairedSecrets"`
	FailedInstances   []string          `json:"failedInstances"`
	FailedSecrets     []string          `json:"failedSecrets"`
}

// Repair 消费一致性检查结果进行对账。幂等：重复执行收敛到同一状态；
// 单个制品修复失败不阻塞其余，记入失败列表。
func (s *ClusterService) Repair(ctx context.Context, user *model.User, clusterID string, strategy RepairStrategy) (*RepairReport, *model.APIError) {
	if apiErr := s.auth.RequireAdmin(user); apiErr != nil {
		return nil, apiErr
	}
	if strategy != StrategyReinstall && strategy != StrategyWipe {
		return nil, model.ErrBadRequest("Unknown repair strategy %q", strategy)
	}

	state, apiErr := s.Verify(ctx, clusterID)
	if apiErr != nil {
		return nil, apiErr
	}
	report := &RepairReport{Status: state.Status, Strategy: strategy}
	if state.Status == StatusUnreachable || state.Status == StatusHelmFailure {
		return report, nil
	}

	switch strategy {
	case StrategyReinstall:
		// 把缺失的东西放回去
		for i := range state.MissingInstances {
			inst := state.MissingInstances[i]
			if apiErr := s.instanceSvc.Rematerialize(ctx, &inst); apiErr != nil {
				logger.Errorf("Failed to reinstall %s during repair: %v", inst.ID, apiErr)
				report.FailedInstances = append(report.FailedInstances, inst.Name)
				continue
			}
			report.RepairedInstances = append(report.RepairedInstances, inst.Name)
		}
		for i := range state.MissingSecrets {
			sec := state.MissingSecrets[i]
			if apiErr := s.secretSvc.Rematerialize(ctx, &sec); apiErr != nil {
				logger.Errorf("Failed to re-push secret %s during repair: %v", sec.ID, apiErr)
				report.FailedSecrets = append(report.FailedSecrets, sec.Name)
				continue
			}
			report.RepairedSecrets = append(report.RepairedSecrets, sec.Name)
		}
	case StrategyWipe:
		// 删除已不存在于集群的记录
		for _, inst := range state.MissingInstances {
			if err := s.instances.Delete(inst.ID); err != nil {
				logger.Errorf("Failed to wipe record for %s during repair: %v", inst.ID, err)
				report.FailedInstances = append(report.FailedInstances, inst.Name)
				continue
			}
			report.RepairedInstances = append(report.RepairedInstances, inst.Name)
		}
		for _, sec := range state.MissingSecrets {
			if err := s.secrets.Delete(sec.ID); err != nil {
				logger.Errorf("Failed to wipe record for %s during repair: %v", sec.ID, err)
				report.FailedSecrets = append(report.FailedSecrets, sec.Name)
				continue
			}
			report.RepairedSecrets = append(report.RepairedSecrets, sec.Name)
		}
	}
	return report, nil
}
