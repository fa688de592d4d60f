package vault

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/akverma/glossa/pkg/cache"
	"github.com/redis/go-redis/v9"
)

// Resolver hands out decrypted credentials by provider name. An empty result
// means no credential is configured.
type Resolver interface {
	Credential(ctx context.Context, provider string) string
	SetCredential(ctx context.Context, provider, plaintext string) error
}

func credentialKey(provider string) string {
	return fmt.Sprintf("credential:%s", provider)
}

// RedisCredentialStore keeps ciphertext in redis; only this store touches the
// storage medium and only the Vault touches plaintext.
type RedisCredentialStore struct {
	rdb   *cache.Client
	vault *Vault
}

func NewRedisCredentialStore(rdb *cache.Client, v *Vault) *RedisCredentialStore {
	return &RedisCredentialStore{rdb: rdb, vault: v}
}

func (s *RedisCredentialStore) Credential(ctx context.Context, provider string) string {
	data, err := s.rdb.Get(ctx, credentialKey(provider))
	if err != nil {
		if err != redis.Nil {
			log.Printf("[VAULT] credential lookup failed for %s: %v", provider, err)
		}
		return ""
	}
	return s.vault.Decrypt(string(data))
}

func (s *RedisCredentialStore) SetCredential(ctx context.Context, provider, plaintext string) error {
	ciphertext := s.vault.Encrypt(plaintext)
	if ciphertext == "" {
		return fmt.Errorf("key does not match the %s key format", provider)
	}
	return s.rdb.Set(ctx, credentialKey(provider), []byte(ciphertext), 0)
}

// MemoryCredentialStore backs deployments without redis. Ciphertext only, so
// a heap dump leaks no more than the redis variant would.
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	vault *Vault
	creds map[string]string
}

func NewMemoryCredentialStore(v *Vault) *MemoryCredentialStore {
	return &MemoryCredentialStore{vault: v, creds: make(map[string]string)}
}

func (s *MemoryCredentialStore) Credential(_ context.Context, provider string) string {
	s.mu.RLock()
	ciphertext := s.creds[provider]
	s.mu.RUnlock()
	return s.vault.Decrypt(ciphertext)
}

func (s *MemoryCredentialStore) SetCredential(_ context.Context, provider, plaintext string) error {
	ciphertext := s.vault.Encrypt(plaintext)
	if ciphertext == "" {
		return fmt.Errorf("key does not match the %s key format", provider)
	}
	s.mu.Lock()
	s.creds[provider] = ciphertext
	s.mu.Unlock()
	return nil
}
