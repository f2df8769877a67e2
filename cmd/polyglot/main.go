package main

import (
	"os"

	"horse.fit/polyglot/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
