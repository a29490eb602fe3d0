// Package main is the entry point for the digest command.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/joho/godotenv"

	"github.com/temirov/digest/internal/cli"
	"github.com/temirov/digest/internal/utils"
)

func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger()
	if loggerInitializationError != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", loggerInitializationError))
	}
	defer loggerInstance.Sync()

	_ = godotenv.Load()

	rootCommand := cli.NewRootCommand(loggerInstance)
	rootCommand.SetArgs(cli.NormalizeArguments(os.Args[1:]))
	if executionError := fang.Execute(
		context.Background(),
		rootCommand,
		fang.WithVersion(utils.GetApplicationVersion()),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); executionError != nil {
		os.Exit(1)
	}
}
