package main

import (
	"context"

	"github.com/maltedev/cartsmith/cmd/cartsmith/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
