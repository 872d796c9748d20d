package main

import "github.com/LeJamon/goCustodyd/internal/cli"

func main() {
	cli.Execute()
}
