package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("tsbot version %s\n", version)
	return nil
}

// AskCmd answers a single question.
type AskCmd struct {
	Query   []string `arg:"" help:"Question to answer."`
	Session string   `help:"Session id." default:"default"`
	JSON    bool     `help:"Print the full response as JSON."`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := buildApp(ctx, cli)
	if err != nil {
		return err
	}
	defer app.Close()

	resp := app.ask(ctx, c.Session, strings.Join(c.Query, " "))
	if c.JSON {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(resp.Answer)
	if resp.Err != "" {
		fmt.Fprintln(os.Stderr, "Error:", resp.Err)
	}
	return nil
}

// ChatCmd runs an interactive loop on one session.
type ChatCmd struct {
	Session string `help:"Session id (empty = new session)."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := buildApp(ctx, cli)
	if err != nil {
		return err
	}
	defer app.Close()

	sessionID := c.Session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	fmt.Printf("Phiên: %s (gõ 'exit' để thoát)\n\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Bạn: ")
		if !scanner.Scan() {
			break
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		if query == "exit" || query == "quit" {
			break
		}

		resp := app.ask(ctx, sessionID, query)
		fmt.Printf("Bot: %s\n\n", resp.Answer)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return scanner.Err()
}
