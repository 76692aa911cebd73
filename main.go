package main

import "github.com/knowledgepin/cli/cmd"

func main() {
	cmd.Main()
}
