package main

import "github.com/kpblcaoo/llmstruct/internal/cli"

func main() {
	cli.Execute()
}
