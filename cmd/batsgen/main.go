package main

import (
	"github.com/ngld/batsgen/pkg/batsgen/cmd"
)

func main() {
	cmd.Execute()
}
