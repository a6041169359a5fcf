package main

import "github.com/rulehound/sigbench/cmd"

func main() {
	cmd.Execute()
}
