package main

import "github.com/teilomillet/docbot/internal/cli"

func main() {
	cli.Execute()
}
