package serve

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/whisperwall/whisperwall/internal/auth"
	"github.com/whisperwall/whisperwall/internal/config"
	"github.com/whisperwall/whisperwall/internal/logging"
	storemongo "github.com/whisperwall/whisperwall/internal/store/mongo"
	"github.com/whisperwall/whisperwall/internal/web"
)

func Cmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the whisperwall web server",
		Action: func(c *cli.Context) error {
			return run(c.Context)
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.New(cfg.DevMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	client, err := storemongo.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer client.Disconnect(context.Background())

	users, err := storemongo.NewUserStore(ctx, client.Database(cfg.MongoDB).Collection("users"))
	if err != nil {
		return err
	}

	sessions := auth.NewSessions(users, []byte(cfg.SessionSecret))
	server, err := web.NewServer(cfg, log, users, sessions)
	if err != nil {
		return err
	}

	return web.Serve(ctx, cfg.Addr, server.Handler(), log)
}
