package main

import (
	"context"
	"fmt"
	"os"

	"github.com/moviehub/backend/internal/app"
)

const usage = `usage: moviehub <command> [arguments]

commands:
  serve                                   run the web server
  migrate [up|status]                     apply or list schema migrations
  seed <name>                             load seeds/<name>_seed.sql
  sync [--genres-only] [--import-popular-pages N] [--overwrite]
                                          import genres and popular movies from TMDB
  createuser [--staff] <username>         create an account (password from MOVIEHUB_NEW_PASSWORD or stdin)
`

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		if len(os.Args) < 2 {
			os.Exit(2)
		}
		return
	}

	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "moviehub %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}
