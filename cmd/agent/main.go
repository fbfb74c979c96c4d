// Command agent is a terminal client for the realtime collaboration channel:
// it joins a contract, prints peer activity, and sends every stdin line as a
// full content replacement.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"contractops/api/internal/channel"
	"contractops/api/internal/config"
	"contractops/api/internal/realtime"
)

func main() {
	cfg := config.Load()
	var (
		url        = flag.String("url", "ws://localhost:8788/ws", "websocket endpoint")
		userID     = flag.Int64("user", 0, "user id to join as")
		contractID = flag.Int64("contract", 0, "contract id to edit")
		retries    = flag.Int("retries", cfg.ReconnectMax, "reconnect attempt budget")
		base       = flag.Duration("backoff", cfg.ReconnectBase, "base reconnect delay (grows linearly)")
	)
	flag.Parse()

	if *userID == 0 || *contractID == 0 {
		fmt.Fprintln(os.Stderr, "usage: agent -user <id> -contract <id> [-url ws://...]")
		os.Exit(2)
	}

	manager := channel.New(*url, channel.Options{
		MaxAttempts: *retries,
		Schedule:    channel.LinearSchedule(*base),
	})

	manager.On(realtime.TypePresenceUpdate, func(env realtime.Envelope) {
		fmt.Printf("* user %d %s contract %d\n", env.UserID, env.Action, env.ContractID)
	})
	manager.On(realtime.TypeCursorUpdate, func(env realtime.Envelope) {
		if env.Position != nil {
			fmt.Printf("* user %d cursor at %d:%d\n", env.UserID, env.Position.Line, env.Position.Character)
		}
	})
	manager.On(realtime.TypeContentUpdate, func(env realtime.Envelope) {
		content := ""
		if env.Content != nil {
			content = *env.Content
		}
		fmt.Printf("* user %d updated content (%d words):\n%s\n", env.UserID, env.WordCount, content)
	})
	manager.On(realtime.TypeError, func(env realtime.Envelope) {
		fmt.Printf("! server error: %s\n", env.Message)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err := manager.Connect(dialCtx, *userID, *contractID)
	cancel()
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer manager.Disconnect()

	fmt.Printf("joined contract %d as user %d; type to replace content, ctrl-c to leave\n", *contractID, *userID)

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			content := line
			env := realtime.Envelope{
				Type:       realtime.TypeContentChange,
				UserID:     *userID,
				ContractID: *contractID,
				Content:    &content,
				WordCount:  len(strings.Fields(content)),
			}
			if err := manager.Send(env); err != nil {
				log.Printf("send: %v", err)
			}
		}
	}
}
