package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dmitrijs2005/listbuffer/internal/cryptox"
	"github.com/dmitrijs2005/listbuffer/internal/server"
	"github.com/dmitrijs2005/listbuffer/internal/server/config"
)

func main() {
	// "server hash-key" reads an API key on stdin and prints the bcrypt hash
	// to configure with -k.
	if len(os.Args) > 1 && os.Args[1] == "hash-key" {
		if err := hashKey(); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}

func hashKey() error {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("failed to read key: %w", err)
	}
	key := strings.TrimSpace(line)
	if key == "" {
		return fmt.Errorf("empty key")
	}

	hash, err := cryptox.HashSecret(key)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}
