package main

import "github.com/astrovis/starstream/cli/cmd"

func main() {
	cmd.Execute()
}
