package main

import (
	"context"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker"
	"github.com/SakuraBurst/goaltracker/internal/goaltracker/config"
)

func main() {
	cfg := config.MustLoad()
	a, err := goaltracker.NewApp(context.Background(), cfg)
	if err != nil {
		panic(err)
	}
	if err := a.Run(); err != nil {
		panic(err)
	}
}
