package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"
	"time"

	"github.com/akverma/glossa/pkg/breaker"
	"github.com/akverma/glossa/pkg/cache"
	"github.com/akverma/glossa/pkg/config"
	"github.com/akverma/glossa/pkg/provider"
	"github.com/akverma/glossa/pkg/vault"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	switch cmd {
	case "init":
		adminKey, err := generateAdminKey()
		if err != nil {
			log.Fatalf("failed to generate admin key: %v", err)
		}
		if err := writeAdminKey(adminKey); err != nil {
			log.Fatalf("failed to write .env: %v", err)
		}
		fmt.Printf("AdminKey: %s\nSaved to .env (GLOSSA_ADMIN_KEY).\n", adminKey)
	case "set-credential":
		cfg := mustLoadConfig()
		rdb := mustRedis(cfg)
		handleSetCredential(cfg, rdb)
	case "enable":
		cfg := mustLoadConfig()
		rdb := mustRedis(cfg)
		breaker.NewWithMirror(rdb).Reenable()
		fmt.Println("Breaker re-enabled.")
	case "clear-cache":
		cfg := mustLoadConfig()
		rdb := mustRedis(cfg)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := cache.NewRedisResponseCache(rdb).Clear(ctx); err != nil {
			log.Fatalf("failed to clear cache: %v", err)
		}
		fmt.Println("Cache cleared.")
	case "status":
		cfg := mustLoadConfig()
		rdb := mustRedis(cfg)
		state := breaker.NewWithMirror(rdb).Snapshot()
		if state.Disabled {
			fmt.Printf("DISABLED since %s\n  provider: %s\n  reason:   %s\n",
				state.DisabledAt.Format(time.RFC3339), state.Provider, state.Reason)
		} else {
			fmt.Println("Enabled.")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("glossa-admin commands:")
	fmt.Println("  init                 Generate admin key and store in .env")
	fmt.Println("  set-credential       Encrypt and store a provider API key")
	fmt.Println("     flags: -provider -key")
	fmt.Println("  enable               Re-enable the feature after a quota trip")
	fmt.Println("  clear-cache          Drop every cached explanation")
	fmt.Println("  status               Show breaker state")
}

func handleSetCredential(cfg *config.Config, rdb *cache.Client) {
	flags := flag.NewFlagSet("set-credential", flag.ExitOnError)
	providerName := flags.String("provider", "", "provider key (see providers list)")
	key := flags.String("key", "", "plaintext API key")
	flags.Parse(os.Args[2:])

	if *providerName == "" || *key == "" {
		log.Fatalf("both -provider and -key are required (providers: %v)", provider.Names())
	}
	if _, ok := provider.Get(*providerName); !ok {
		log.Fatalf("unknown provider %q (providers: %v)", *providerName, provider.Names())
	}

	v := vault.New(cfg.Security.VaultSecret, provider.KeyFormats()...)
	store := vault.NewRedisCredentialStore(rdb, v)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := store.SetCredential(ctx, *providerName, *key); err != nil {
		log.Fatalf("failed to store credential: %v", err)
	}
	fmt.Printf("Credential for %s stored (encrypted).\n", *providerName)
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Security.VaultSecret == "" {
		log.Fatal("security.vault_secret must be set")
	}
	return cfg
}

func mustRedis(cfg *config.Config) *cache.Client {
	if cfg == nil || !cfg.Redis.Enabled {
		log.Fatal("redis is not enabled in config")
	}
	rdb, err := cache.NewRedis(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	return rdb
}

func generateAdminKey() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "admin_" + base64.RawURLEncoding.EncodeToString(b), nil
}

func writeAdminKey(adminKey string) error {
	const envFile = ".env"

	data, err := os.ReadFile(envFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return os.WriteFile(envFile, []byte(fmt.Sprintf("GLOSSA_ADMIN_KEY=%s\n", adminKey)), 0644)
	}

	lines := strings.Split(string(data), "\n")
	replaced := false
	for i, line := range lines {
		if strings.HasPrefix(line, "GLOSSA_ADMIN_KEY=") {
			lines[i] = fmt.Sprintf("GLOSSA_ADMIN_KEY=%s", adminKey)
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, fmt.Sprintf("GLOSSA_ADMIN_KEY=%s", adminKey))
	}

	content := strings.Join(lines, "\n")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return os.WriteFile(envFile, []byte(content), 0644)
}
