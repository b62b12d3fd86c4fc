package main

import "github.com/danielwarnersmith/trace/cmd"

func main() {
	cmd.Execute()
}
