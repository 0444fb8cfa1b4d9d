package app

import (
	"github.com/LincolnBryant/slate-client-server/internal/service/access"
	"github.com/LincolnBryant/slate-client-server/internal/service/application"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/internal/service/cluster"
	"github.com/LincolnBryant/slate-client-server/internal/service/group"
	"github.com/LincolnBryant/slate-client-server/internal/service/instance"
	"github.com/LincolnBryant/slate-client-server/internal/service/secret"
	"github.com/LincolnBryant/slate-client-server/internal/service/user"
	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
)

// Services 全部业务服务实例
type Services struct {
	Auth        *auth.AuthService
	User        *user.UserService
	Group       *group.GroupService
	Access      *access.AccessService
	Application *application.ApplicationService
	Instance    *instance.InstanceService
	Secret      *secret.SecretService
	Cluster     *cluster.ClusterService
}

// InitializeServices 初始化服务
func InitializeServices(repos *Repositories, cfg *config.Config, driver kube.Driver) *Services {
	authService := auth.NewAuthService(repos.User, repos.Group)
	accessService := access.NewAccessService(authService, repos.Group, repos.Cluster, repos.Access)
	instanceService := instance.NewInstanceService(
		authService, accessService, repos.Group, repos.Cluster,
		repos.Instance, repos.ConfigFiles, driver, cfg.Helm)
	secretService := secret.NewSecretService(
		authService, accessService, repos.Group, repos.Cluster,
		repos.Secret, repos.ConfigFiles, driver)
	clusterService := cluster.NewClusterService(
		authService, repos.Group, repos.Cluster, repos.Instance, repos.Secret,
		repos.ConfigFiles, instanceService, secretService, driver)

	return &Services{
		Auth:        authService,
		User:        user.NewUserService(authService, repos.User, repos.Group),
		Group:       group.NewGroupService(authService, repos.Group, repos.Cluster, repos.Instance, repos.Secret),
		Access:      accessService,
		Application: application.NewApplicationService(driver, cfg.Helm),
		Instance:    instanceService,
		Secret:      secretService,
		Cluster:     clusterService,
	}
}
