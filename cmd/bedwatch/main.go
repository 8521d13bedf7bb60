package main

import "github.com/sud-bedwatch/bedwatch/internal/cli"

func main() {
	cli.Execute()
}
