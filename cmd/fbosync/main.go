package main

import (
	"context"
	"fmt"
	"os"

	_ "time/tzdata"

	"github.com/Spok95/fbo-sync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
