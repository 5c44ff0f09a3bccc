package main

import (
	"os"

	"github.com/TWLS151/Soootudy-sub000/internal/cli"
)

func main() {
	if err := cli.New().Execute(); err != nil {
		os.Exit(1)
	}
}
