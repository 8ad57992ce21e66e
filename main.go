package main

import "github.com/Quidge/conform/cmd"

func main() {
	cmd.Execute()
}
