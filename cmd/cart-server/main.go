// Command cart-server serves the shopping cart API.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	cartapp "github.com/xenking/shopping-cart/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := cartapp.LoadConfig()
		if err != nil {
			return err
		}
		return cartapp.Run(ctx, lg, m, cfg)
	})
}
