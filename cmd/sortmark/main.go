package main

import (
	"context"
	"log"

	"github.com/MrSnakeDoc/sortmark/internal/app"
)

func main() {
	ctx := context.Background()

	a, err := app.New(ctx)
	if err != nil {
		log.Fatalf("❌ sortmark failed to start: %v", err)
	}
	if err := a.Run(ctx); err != nil {
		log.Fatalf("❌ sortmark stopped with error: %v", err)
	}
}
