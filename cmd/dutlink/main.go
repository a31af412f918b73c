package main

import "github.com/siliconforge/dutlink/cmd/dutlink/cmd"

func main() {
	cmd.Execute()
}
