package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/slingshot/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	profile := flag.String("profile", "", "upload profile (overrides config)")
	baseURL := flag.String("base-url", "", "signing server base URL (overrides config)")
	plain := flag.Bool("plain", false, "print progress lines instead of the interactive UI")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: slingshot [flags] FILE...\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		return 2
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := app.Run(ctx, app.Options{
		ConfigPath: *configPath,
		Profile:    *profile,
		BaseURL:    *baseURL,
		Plain:      *plain,
		Files:      flag.Args(),
	})
	switch {
	case err == nil:
		return 0
	case errors.Is(err, app.ErrIncomplete):
		return 1
	}
	fmt.Fprintf(os.Stderr, "slingshot: %v\n", err)
	return 1
}
