package main

import "github.com/emrgen/mediakit/cmd"

func main() {
	cmd.Execute()
}
