package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/mwantia/snaptag/cmd/snaptag/cli"
	"github.com/mwantia/snaptag/cmd/snaptag/cli/admin"
	"github.com/mwantia/snaptag/cmd/snaptag/cli/client"
)

var (
	version = "0.0.1-dev"
	commit  = "main"
)

func main() {
	root := cli.NewRootCommand(cli.VersionInfo{
		Version: version,
		Commit:  commit,
	})

	root.AddCommand(cli.NewVersionCommand())

	root.AddCommand(client.NewImageCommand())
	root.AddCommand(client.NewTagCommand())

	root.AddCommand(admin.NewConfigCommand())
	root.AddCommand(admin.NewDatabaseCommand())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
