package router_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/LincolnBryant/slate-client-server/internal/api/handler"
	"github.com/LincolnBryant/slate-client-server/internal/api/router"
	"github.com/LincolnBryant/slate-client-server/internal/service/access"
	"github.com/LincolnBryant/slate-client-server/internal/service/application"
	"github.com/LincolnBryant/slate-client-server/internal/service/auth"
	"github.com/LincolnBryant/slate-client-server/internal/service/cluster"
	"github.com/LincolnBryant/slate-client-server/internal/service/group"
	"github.com/LincolnBryant/slate-client-server/internal/service/instance"
	"github.com/LincolnBryant/slate-client-server/internal/service/secret"
	"github.com/LincolnBryant/slate-client-server/internal/service/user"
	"github.com/LincolnBryant/slate-client-server/internal/testutil"
	"github.com/LincolnBryant/slate-client-server/pkg/config"
	"github.com/LincolnBryant/slate-client-server/pkg/kube"
	"github.com/LincolnBryant/slate-client-server/pkg/kube/kubetest"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	store  *testutil.Store
	driver *kubetest.Driver
	engine *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := testutil.NewStore(t)
	driver := kubetest.NewDriver()
	helmCfg := config.HelmConfig{}
	helmCfg.SetDefaults()

	authSvc := auth.NewAuthService(store.Users, store.Groups)
	accessSvc := access.NewAccessService(authSvc, store.Groups, store.Clusters, store.Access)
	instanceSvc := instance.NewInstanceService(
		authSvc, accessSvc, store.Groups, store.Clusters,
		store.Instances, store.ConfigFiles, driver, helmCfg)
	secretSvc := secret.NewSecretService(
		authSvc, accessSvc, store.Groups, store.Clusters,
		store.Secrets, store.ConfigFiles, driver)
	clusterSvc := cluster.NewClusterService(
		authSvc, store.Groups, store.Clusters, store.Instances, store.Secrets,
		store.ConfigFiles, instanceSvc, secretSvc, driver)
	clusterSvc.SetPollParameters(time.Millisecond, 25*time.Millisecond)

	engine := router.Setup(
		handler.NewUserHandler(user.NewUserService(authSvc, store.Users, store.Groups)),
		handler.NewGroupHandler(group.NewGroupService(authSvc, store.Groups, store.Clusters, store.Instances, store.Secrets)),
		handler.NewClusterHandler(clusterSvc, accessSvc, store.Groups, store.Clusters),
		handler.NewAppHandler(application.NewApplicationService(driver, helmCfg), instanceSvc),
		handler.NewInstanceHandler(instanceSvc),
		handler.NewSecretHandler(secretSvc),
		handler.NewMiscHandler(store.Users, store.Groups, store.Clusters, store.Instances, store.Secrets),
		authSvc,
		gin.TestMode,
	)
	return &api{store: store, driver: driver, engine: engine}
}

func (a *api) do(t *testing.T, method, path, token, body string) (int, map[string]interface{}) {
	t.Helper()
	if token != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		path += sep + "token=" + token
	}
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var decoded map[string]interface{}
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			decoded = nil
		}
	}
	return w.Code, decoded
}

func scriptHappyBootstrap(driver *kubetest.Driver) {
	driver.HandlePrefix("kubectl", "get serviceaccounts",
		kube.CommandResult{Output: "default kube-system"})
	driver.HandlePrefix("kubectl", "describe serviceaccount kube-system",
		kube.CommandResult{Output: "Namespace:           kube-system"})
	driver.HandlePrefix("helm", "init",
		kube.CommandResult{Output: "Tiller (the Helm server-side component) has been installed"})
	driver.HandlePrefix("kubectl", "get pods",
		kube.CommandResult{Output: "NAME             READY   STATUS\ntiller-deploy-1  1/1     Running"})
}

func TestAuthenticationRequired(t *testing.T) {
	a := newAPI(t)

	code, body := a.do(t, http.MethodGet, "/v1alpha3/clusters", "", "")
	assert.Equal(t, http.StatusForbidden, code)
	require.NotNil(t, body)
	assert.Equal(t, "Error", body["kind"])

	code, _ = a.do(t, http.MethodGet, "/v1alpha3/clusters", "nonsense-token", "")
	assert.Equal(t, http.StatusForbidden, code)
}

func TestUnsupportedAPIVersion(t *testing.T) {
	a := newAPI(t)
	admin := a.store.MakeUser(t, "admin", true)

	code, body := a.do(t, http.MethodGet, "/v1alpha1/clusters", admin.Token, "")
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, body)
	assert.Equal(t, "Error", body["kind"])
	assert.Equal(t, "Unsupported API version", body["message"])
}

func TestClusterCreateHappyPathHTTP(t *testing.T) {
	a := newAPI(t)
	admin := a.store.MakeUser(t, "admin", true)
	a.store.MakeGroup(t, "atlas", admin)
	scriptHappyBootstrap(a.driver)

	payload := map[string]interface{}{
		"apiVersion": "v1alpha3",
		"metadata": map[string]interface{}{
			"name":               "uchicago-prod",
			"group":              "atlas",
			"owningOrganization": "University of Chicago",
			"kubeconfig":         testutil.TestKubeconfig,
		},
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	code, body := a.do(t, http.MethodPost, "/v1alpha3/clusters", admin.Token, string(raw))
	require.Equal(t, http.StatusOK, code)
	metadata := body["metadata"].(map[string]interface{})
	assert.Regexp(t, `^cluster_[A-Za-z0-9_-]{11}$`, metadata["id"])
	assert.Equal(t, "v1alpha3", body["apiVersion"])
	assert.Equal(t, "Cluster", body["kind"])

	// 随后列出可见
	code, listBody := a.do(t, http.MethodGet, "/v1alpha3/clusters", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	items := listBody["items"].([]interface{})
	require.Len(t, items, 1)
}

func TestClusterCreateHelmStuckHTTP(t *testing.T) {
	a := newAPI(t)
	admin := a.store.MakeUser(t, "admin", true)
	a.store.MakeGroup(t, "atlas", admin)

	a.driver.HandlePrefix("kubectl", "get serviceaccounts",
		kube.CommandResult{Output: "default kube-system"})
	a.driver.HandlePrefix("kubectl", "describe serviceaccount kube-system",
		kube.CommandResult{Output: "Namespace:           kube-system"})
	a.driver.HandlePrefix("helm", "init",
		kube.CommandResult{Output: "Tiller (the Helm server-side component) has been installed"})
	a.driver.HandlePrefix("kubectl", "get pods",
		kube.CommandResult{Output: "NAME             READY   STATUS\ntiller-deploy-1  0/1     Pending"})

	payload := `{"metadata":{"name":"stuck","group":"atlas","owningOrganization":"Org","kubeconfig":` + jsonString(testutil.TestKubeconfig) + `}}`
	code, body := a.do(t, http.MethodPost, "/v1alpha3/clusters", admin.Token, payload)
	assert.Equal(t, http.StatusInternalServerError, code)
	require.NotNil(t, body)
	assert.Equal(t, "Error", body["kind"])

	// 集群在随后的列出中不可见
	code, listBody := a.do(t, http.MethodGet, "/v1alpha3/clusters", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, listBody["items"])
}

func TestGrantAndRevokeUniversalAccessHTTP(t *testing.T) {
	a := newAPI(t)
	admin := a.store.MakeUser(t, "admin", true)
	owner := a.store.MakeGroup(t, "owner", admin)
	record := a.store.MakeCluster(t, "c1", owner)

	code, _ := a.do(t, http.MethodPut, "/v1alpha3/clusters/"+record.ID+"/allowed_groups/*", admin.Token, "")
	require.Equal(t, http.StatusOK, code)

	code, body := a.do(t, http.MethodGet, "/v1alpha3/clusters/"+record.ID+"/allowed_groups", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	metadata := items[0].(map[string]interface{})["metadata"].(map[string]interface{})
	assert.Equal(t, "*", metadata["id"])
	assert.Equal(t, "<all>", metadata["name"])

	code, _ = a.do(t, http.MethodDelete, "/v1alpha3/clusters/"+record.ID+"/allowed_groups/*", admin.Token, "")
	require.Equal(t, http.StatusOK, code)

	code, body = a.do(t, http.MethodGet, "/v1alpha3/clusters/"+record.ID+"/allowed_groups", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	items = body["items"].([]interface{})
	require.Len(t, items, 1)
	metadata = items[0].(map[string]interface{})["metadata"].(map[string]interface{})
	assert.Equal(t, owner.ID, metadata["id"])
}

func TestDeniedAccessBlocksInstallHTTP(t *testing.T) {
	a := newAPI(t)
	admin := a.store.MakeUser(t, "admin", true)
	member := a.store.MakeUser(t, "member", false)
	owner := a.store.MakeGroup(t, "owner", admin)
	tenant := a.store.MakeGroup(t, "tenant", member)
	record := a.store.MakeCluster(t, "c1", owner)

	// 先授权并放行应用，然后撤销访问
	code, _ := a.do(t, http.MethodPut, "/v1alpha3/clusters/"+record.ID+"/allowed_groups/tenant", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPut, "/v1alpha3/clusters/"+record.ID+"/allowed_groups/tenant/applications/cvmfs", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodDelete, "/v1alpha3/clusters/"+record.ID+"/allowed_groups/tenant", admin.Token, "")
	require.Equal(t, http.StatusOK, code)

	payload := `{"group":"` + tenant.Name + `","cluster":"` + record.Name + `"}`
	code, _ = a.do(t, http.MethodPost, "/v1alpha3/apps/cvmfs", member.Token, payload)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := a.do(t, http.MethodGet, "/v1alpha3/instances", member.Token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["items"], "no instance may appear after a denied install")
}

func TestReachabilityCacheHTTP(t *testing.T) {
	a := newAPI(t)
	admin := a.store.MakeUser(t, "admin", true)
	owner := a.store.MakeGroup(t, "owner", admin)
	record := a.store.MakeCluster(t, "c1", owner)

	reachable := true
	a.driver.Handle(func(call kubetest.Call) (kube.CommandResult, bool) {
		if call.Command != "kubectl" || !strings.HasPrefix(call.ArgString(), "get serviceaccounts") {
			return kube.CommandResult{}, false
		}
		if reachable {
			return kube.CommandResult{Output: "default kube-system"}, true
		}
		return kube.CommandResult{Status: 1, Error: "i/o timeout"}, true
	})

	code, body := a.do(t, http.MethodGet, "/v1alpha3/clusters/"+record.ID+"/ping", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["reachable"])

	// 网络分区后TTL内的缓存仍回答true
	reachable = false
	code, body = a.do(t, http.MethodGet, "/v1alpha3/clusters/"+record.ID+"/ping?cache=1", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["reachable"])

	// 不带缓存观察到分区
	code, body = a.do(t, http.MethodGet, "/v1alpha3/clusters/"+record.ID+"/ping", admin.Token, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["reachable"])
}

func TestSecretLifecycleHTTP(t *testing.T) {
	a := newAPI(t)
	member := a.store.MakeUser(t, "member", false)
	owner := a.store.MakeGroup(t, "atlas", member)
	record := a.store.MakeCluster(t, "c1", owner)

	payload := `{"metadata":{"name":"db-credentials","group":"atlas","cluster":"` + record.Name + `"},"contents":{"password":"aHVudGVyMg=="}}`
	code, body := a.do(t, http.MethodPost, "/v1alpha3/secrets", member.Token, payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Secret", body["kind"])
	metadata := body["metadata"].(map[string]interface{})
	secretID := metadata["id"].(string)
	assert.Regexp(t, `^secret_[A-Za-z0-9_-]{11}$`, secretID)

	// 列出需要组参数；内容只在单对象查询中返回
	code, body = a.do(t, http.MethodGet, "/v1alpha3/secrets?group=atlas", member.Token, "")
	require.Equal(t, http.StatusOK, code)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)

	code, body = a.do(t, http.MethodGet, "/v1alpha3/secrets/"+secretID, member.Token, "")
	require.Equal(t, http.StatusOK, code)
	metadata = body["metadata"].(map[string]interface{})
	contents := metadata["contents"].(map[string]interface{})
	assert.Equal(t, "aHVudGVyMg==", contents["password"])

	// 非成员不可读取
	outsider := a.store.MakeUser(t, "outsider", false)
	code, _ = a.do(t, http.MethodGet, "/v1alpha3/secrets/"+secretID, outsider.Token, "")
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(t, http.MethodDelete, "/v1alpha3/secrets/"+secretID, member.Token, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodGet, "/v1alpha3/secrets/"+secretID, member.Token, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestVersionEndpoint(t *testing.T) {
	a := newAPI(t)
	code, body := a.do(t, http.MethodGet, "/version", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "v1alpha3", body["apiVersion"])
}

func jsonString(s string) string {
	raw, _ := json.Marshal(s)
	return string(raw)
}
