package idgen

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDFormat(t *testing.T) {
	cases := []struct {
		gen    func() string
		prefix string
	}{
		{NewUserID, "user_"},
		{NewGroupID, "group_"},
		{NewClusterID, "cluster_"},
		{NewInstanceID, "instance_"},
		{NewSecretID, "secret_"},
	}

	for _, tc := range cases {
		re := regexp.MustCompile("^" + tc.prefix + `[A-Za-z0-9_-]{11}$`)
		for i := 0; i < 1000; i++ {
			id := tc.gen()
			require.Regexp(t, re, id)
		}
	}
}

func TestIDUniqueness(t *testing.T) {
	const n = 1000000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		id := NewInstanceID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s after %d draws", id, i)
		seen[id] = struct{}{}
	}
}

func TestIDConcurrentGeneration(t *testing.T) {
	const workers = 16
	const perWorker = 1000

	results := make(chan string, workers*perWorker)
	for i := 0; i < workers; i++ {
		go func() {
			for j := 0; j < perWorker; j++ {
				results <- NewClusterID()
			}
		}()
	}

	seen := make(map[string]struct{}, workers*perWorker)
	for i := 0; i < workers*perWorker; i++ {
		id := <-results
		_, dup := seen[id]
		assert.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestTokenFormat(t *testing.T) {
	tok := NewUserToken()
	assert.Regexp(t, `^[A-Za-z0-9_-]{43}$`, tok)
	assert.NotEqual(t, tok, NewUserToken())
}
