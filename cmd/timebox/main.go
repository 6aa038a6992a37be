// timebox is the interactive CLI surface of the assistant. It routes
// every line through the session router and keeps the idle watcher
// running in the background.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/vthunder/timebox/internal/app"
	"github.com/vthunder/timebox/internal/config"
)

func main() {
	log.Println("timebox - daily planning assistant")
	log.Println("==================================")

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

	watcher := a.NewIdleWatcher(func(reply string) {
		fmt.Printf("\n%s\nyou> ", reply)
	})
	watcher.Start()
	defer watcher.Stop()

	overview := a.Store.List("today")
	fmt.Println(overview.Message)
	fmt.Println(`Type "q" to quit. "exit" releases a locked session.`)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" {
			break
		}

		reply := a.Router.Route(context.Background(), line)
		fmt.Println(reply)
	}

	log.Println("[main] shutting down")
}
