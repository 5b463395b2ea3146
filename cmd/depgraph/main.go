package main

import "depgraph/cmd/depgraph/cmd"

func main() {
	cmd.Execute()
}
