package main

import "github.com/agentic-research/treepress/cmd"

func main() {
	cmd.Execute()
}
