package main

import (
	"os"

	"groupseal/cmd/groupseal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
