package app

import (
	"github.com/LincolnBryant/slate-client-server/internal/api/handler"
)

// Handlers 全部HTTP处理器实例
type Handlers struct {
	User     *handler.UserHandler
	Group    *handler.GroupHandler
	Cluster  *handler.ClusterHandler
	App      *handler.AppHandler
	Instance *handler.InstanceHandler
	Secret   *handler.SecretHandler
	Misc     *handler.MiscHandler
}

// InitializeHandlers 初始化处理器
func InitializeHandlers(repos *Repositories, services *Services) *Handlers {
	return &Handlers{
		User:     handler.NewUserHandler(services.User),
		Group:    handler.NewGroupHandler(services.Group),
		Cluster:  handler.NewClusterHandler(services.Cluster, services.Access, repos.Group, repos.Cluster),
		App:      handler.NewAppHandler(services.Application, services.Instance),
		Instance: handler.NewInstanceHandler(services.Instance),
		Secret:   handler.NewSecretHandler(services.Secret),
		Misc:     handler.NewMiscHandler(repos.User, repos.Group, repos.Cluster, repos.Instance, repos.Secret),
	}
}
