package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/int128/oauth2scheme/internal/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := (&cmd.Cmd{}).Run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
