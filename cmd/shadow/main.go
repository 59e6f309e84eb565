package main

import "github.com/mvp-joe/class-shadow/internal/cli"

func main() {
	cli.Execute()
}
