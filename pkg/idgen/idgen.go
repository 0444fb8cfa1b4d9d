package idgen

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	mathrand "math/rand"
	"sync"
)

// 各实体类型的ID前缀
const (
	UserIDPrefix     = "user_"
	GroupIDPrefix    = "group_"
	ClusterIDPrefix  = "cluster_"
	InstanceIDPrefix = "instance_"
	SecretIDPrefix   = "secret_"
)

var (
	mu     sync.Mutex
	source *mathrand.Rand
)

func init() {
	var seed [8]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic("idgen: unable to seed id generator: " + err.Error())
	}
	source = mathrand.New(mathrand.NewSource(int64(binary.LittleEndian.Uint64(seed[:]))))
}

// generateRawID 生成原始ID：64位随机值的URL-safe base64编码（11字符，无填充）
func generateRawID() string {
	mu.Lock()
	value := source.Uint64()
	mu.Unlock()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

// NewUserID 生成用户ID
func NewUserID() string { return UserIDPrefix + generateRawID() }

// NewGroupID 生成组ID
func NewGroupID() string { return GroupIDPrefix + generateRawID() }

// NewClusterID 生成集群ID
func NewClusterID() string { return ClusterIDPrefix + generateRawID() }

// NewInstanceID 生成应用实例ID
func NewInstanceID() string { return InstanceIDPrefix + generateRawID() }

// NewSecretID 生成Secret ID
func NewSecretID() string { return SecretIDPrefix + generateRawID() }

// NewUserToken 生成用户API令牌（32字节随机值，URL-safe base64）
func NewUserToken() string {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("idgen: unable to generate token: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(buf[:])
}
