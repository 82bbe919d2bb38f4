package main

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/cannadmin/internal/app"
)

// The API binary serves HTTP and gRPC and relays the change feed to websocket clients.
func main() {
	fx.New(app.HTTP).Run()
}
