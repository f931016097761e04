package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pkgdeploy-cli/domain"
	"pkgdeploy-cli/rest"
	"pkgdeploy-cli/utils/colors"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown: cancel the context and let in-flight platform
	// deploys finish cooperatively
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		fmt.Printf("\n%s Received signal: %s. Shutting down...\n", colors.Yellow("⚠"), sig)
		cancel()
	}()

	cli := rest.NewCLI()
	if err := cli.Execute(ctx); err != nil {
		colors.PrintError(err.Error())
		os.Exit(domain.ExitCode(err))
	}
}
