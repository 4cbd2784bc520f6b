package main

import "github.com/mr1hm/disasterwatch/internal/cli"

func main() {
	cli.Execute()
}
