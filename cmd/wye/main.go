// Package main is the entry point for the wye client CLI.
package main

import "github.com/wye/wye-server/internal/cli"

func main() {
	cli.Execute()
}
