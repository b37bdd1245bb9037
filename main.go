package main

import (
	"os"

	"fabdrop/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
