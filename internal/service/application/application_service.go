// Package application 应用目录：由外部helm chart仓库提供，不持久化。
package application

import (
	"context"
	"strings"

	"github.com/LincolnBryant/slate-client-server/internal/model"
	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/logger"
)

type ApplicationService struct {
	driver  kube.Driver
	helmCfg config.HelmConfig
}

func NewApplicationService(driver kube.Driver, helmCfg config.HelmConfig) *ApplicationService {
	return &ApplicationService{driver: driver, helmCfg: helmCfg}
}

// EnsureRepos 启动时确认helm可用并配置目录仓库。
// 仓库缺失时添加，随后刷新索引。
func (s *ApplicationService) EnsureRepos(ctx context.Context) error {
	if err := kube.CheckAvailable("helm"); err != nil {
		return err
	}

	listResult := s.driver.Helm(ctx, "", "", "repo", "list")
	hasMain, hasDev := false, false
	for _, line := range kube.SplitLines(listResult.Output) {
		tokens := kube.SplitColumnsSep(line, "\t")
		if len(tokens) == 0 {
			continue
		}
		switch strings.TrimSpace(tokens[0]) {
		case s.helmCfg.StableRepo:
			hasMain = true
		case s.helmCfg.DevRepo:
			hasDev = true
		}
	}
	if !hasMain {
		logger.Infof("Main %s repository not installed; installing", s.helmCfg.StableRepo)
		result := s.driver.Helm(ctx, "", "", "repo", "add", s.helmCfg.StableRepo, s.helmCfg.RepoBase+"/stable-repo/")
		if result.Failed() {
			return &repoError{"unable to install main application repository: " + result.Error}
		}
	}
	if !hasDev {
		logger.Infof("Development %s repository not installed; installing", s.helmCfg.DevRepo)
		result := s.driver.Helm(ctx, "", "", "repo", "add", s.helmCfg.DevRepo, s.helmCfg.RepoBase+"/incubator-repo/")
		if result.Failed() {
			return &repoError{"unable to install development application repository: " + result.Error}
		}
	}

	if result := s.driver.Helm(ctx, "", "", "repo", "update"); result.Failed() {
		return &repoError{"helm repo update failed: " + result.Error}
	}
	return nil
}

type repoError struct{ msg string }

func (e *repoError) Error() string { return e.msg }

// repoName 仓库标签 → helm仓库名
func (s *ApplicationService) repoName(tag string) string {
	switch tag {
	case model.RepoDev:
		return s.helmCfg.DevRepo
	case model.RepoTest:
		return s.helmCfg.DevRepo + "-test"
	default:
		return s.helmCfg.StableRepo
	}
}

// List 列出目录中的应用。helm search 输出为tab分列：
// NAME / CHART VERSION / APP VERSION / DESCRIPTION，首行为表头。
func (s *ApplicationService) List(ctx context.Context, repoTag string) ([]model.Application, *model.APIError) {
	repo := s.repoName(repoTag)
	result := s.driver.Helm(ctx, "", "", "search", repo+"/")
	if result.Failed() {
		return nil, model.ErrExternalCommand("Unable to list applications: %s", strings.TrimSpace(result.Error))
	}

	var apps []model.Application
	for i, line := range kube.SplitLines(result.Output) {
		if i == 0 { // 表头
			continue
		}
		if strings.HasPrefix(line, "No results found") {
			break
		}
		cols := kube.SplitColumnsSep(line, "\t")
		if len(cols) < 2 {
			continue
		}
		app := model.Application{
			Name:         strings.TrimPrefix(cols[0], repo+"/"),
			ChartVersion: cols[1],
		}
		if len(cols) > 2 {
			app.AppVersion = cols[2]
		}
		if len(cols) > 3 {
			app.Description = cols[3]
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Fetch 获取应用的默认配置（chart values）和说明文档
func (s *ApplicationService) Fetch(ctx context.Context, repoTag, name string) (*model.Application, *model.APIError) {
	repo := s.repoName(repoTag)
	values := s.driver.Helm(ctx, "", "", "inspect", "values", repo+"/"+name)
	if values.Failed() {
		if strings.Contains(values.Error, "not found") {
			return nil, model.ErrNotFound("Application not found")
		}
		return nil, model.ErrExternalCommand("Unable to fetch application config: %s", strings.TrimSpace(values.Error))
	}

	app := &model.Application{Name: name, Body: values.Output}
	readme := s.driver.Helm(ctx, "", "", "inspect", "readme", repo+"/"+name)
	if !readme.Failed() {
		app.Docs = readme.Output
	}
	return app, nil
}
