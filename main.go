package main

import "github.com/kiesman99/imslice/cmd"

func main() {
	cmd.Execute()
}
