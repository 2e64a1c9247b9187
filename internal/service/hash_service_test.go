package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheap keeps the suite fast; production uses DefaultArgon2Params.
var cheap = Argon2Params{MemoryKiB: 1024, Iterations: 1, Threads: 1, KeyLen: 32}

func TestArgon2HashService_HashAndVerify(t *testing.T) {
	svc := NewArgon2HashService(cheap)

	hash, err := svc.Hash("SecureP@ssw0rd!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"), hash)

	ok, err := svc.Verify("SecureP@ssw0rd!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2HashService_UniqueSalts(t *testing.T) {
	svc := NewArgon2HashService(cheap)

	h1, err := svc.Hash("same-password")
	require.NoError(t, err)
	h2, err := svc.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestArgon2HashService_VerifyUsesStoredParams(t *testing.T) {
	old := NewArgon2HashService(cheap)
	hash, err := old.Hash("rotate-me")
	require.NoError(t, err)

	current := NewArgon2HashService(Argon2Params{MemoryKiB: 2048, Iterations: 2, Threads: 1})
	ok, err := current.Verify("rotate-me", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewArgon2HashService_FillsDefaults(t *testing.T) {
	svc := NewArgon2HashService(Argon2Params{Threads: 2})
	assert.Equal(t, Argon2Params{
		MemoryKiB:  DefaultArgon2Params.MemoryKiB,
		Iterations: DefaultArgon2Params.Iterations,
		Threads:    2,
		KeyLen:     DefaultArgon2Params.KeyLen,
	}, svc.params)
}

func TestArgon2HashService_VerifyRejectsMalformedHashes(t *testing.T) {
	svc := NewArgon2HashService(cheap)

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"too few parts", "$argon2id$v=19$m=1024"},
		{"wrong algorithm", "$argon2i$v=19$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{"wrong version", "$argon2id$v=16$m=1024,t=1,p=1$c2FsdA$a2V5"},
		{"zero threads", "$argon2id$v=19$m=1024,t=1,p=0$c2FsdA$a2V5"},
		{"bad params", "$argon2id$v=19$memory$c2FsdA$a2V5"},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5"},
		{"empty key", "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := svc.Verify("anything", tt.hash)
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}
}
