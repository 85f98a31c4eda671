package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sisu-network/lib/log"

	"github.com/kinecosystem/kin-engine/chain"
	"github.com/kinecosystem/kin-engine/config"
	"github.com/kinecosystem/kin-engine/core"
	"github.com/kinecosystem/kin-engine/migration"
	"github.com/kinecosystem/kin-engine/store"
	"github.com/kinecosystem/kin-engine/types"
)

func initialize() (*core.Engine, store.Store) {
	err := godotenv.Load()
	if err != nil {
		panic(err)
	}

	cfgPath := os.Getenv("ENGINE_CONFIG")
	if cfgPath == "" {
		cfgPath = "engine.toml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		panic(err)
	}

	st := store.NewStore(&cfg)
	if err := st.Init(); err != nil {
		panic(err)
	}

	// The demo binary runs fully local: both versioned stores are in-memory
	// backends and the version query always answers with the current chain.
	clients := map[types.Version]chain.Client{
		types.KinVersion2: chain.NewMemoryClient(types.KinVersion2),
		types.KinVersion3: chain.NewMemoryClient(types.KinVersion3),
	}

	coordinator := migration.NewCoordinator(
		func(ctx context.Context) (types.Version, error) {
			return types.KinVersion3, nil
		},
		func(version types.Version) (chain.Client, error) {
			return clients[version], nil
		},
	)

	return core.New(cfg, st, coordinator), st
}

func main() {
	engine, st := initialize()
	defer st.Close()
	defer engine.Stop()

	ctx := context.Background()

	token := types.AuthToken{
		UserID:          os.Getenv("KIN_USER_ID"),
		EcosystemUserID: os.Getenv("ECOSYSTEM_USER_ID"),
		AppID:           os.Getenv("APP_ID"),
		Token:           os.Getenv("AUTH_TOKEN"),
	}

	if err := engine.Start(ctx, token, os.Getenv("PUBLIC_ADDRESS")); err != nil {
		panic(err)
	}

	address, err := engine.PublicAddress()
	if err != nil {
		panic(err)
	}
	log.Infof("Account ready: %s on %s", address, engine.Version())

	if err := engine.Onboard(ctx); err != nil {
		log.Error("Onboarding failed, err = ", err)
	}
}
