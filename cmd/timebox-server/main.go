// timebox-server exposes the assistant over HTTP for local frontends
// and, when a token is configured, over a Discord channel.
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vthunder/timebox/internal/api"
	"github.com/vthunder/timebox/internal/app"
	"github.com/vthunder/timebox/internal/config"
	"github.com/vthunder/timebox/internal/discord"
	"github.com/vthunder/timebox/internal/logging"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	a, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	a.Start()
	defer a.Stop()

	var connector *discord.Connector
	if cfg.Discord.Token != "" {
		connector, err = discord.New(cfg.Discord.Token, cfg.Discord.ChannelID, a.Router.Route)
		if err != nil {
			log.Fatalf("discord: %v", err)
		}
		if err := connector.Start(); err != nil {
			log.Fatalf("discord: %v", err)
		}
		defer connector.Stop()
	}

	watcher := a.NewIdleWatcher(func(reply string) {
		if connector != nil {
			if err := connector.Send(reply); err != nil {
				logging.Warn("main", "idle nudge not delivered: %v", err)
			}
			return
		}
		logging.Info("main", "idle nudge: %s", reply)
	})
	watcher.Start()
	defer watcher.Stop()

	server := api.NewServer(a.Router, a.Store)
	go func() {
		if err := server.Run(cfg.ListenAddr); err != nil {
			log.Fatalf("http: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("[main] shutting down")
}
