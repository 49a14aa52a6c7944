package main

import (
	"github.com/peerlink-network/peerlink-node/internal/cmd"
)

func main() {
	cmd.Execute()
}
