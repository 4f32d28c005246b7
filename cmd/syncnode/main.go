package main

import (
	"github.com/finalitylabs/blocksync/cmd/syncnode/cmd"
)

func main() {
	cmd.Execute()
}
