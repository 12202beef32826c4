package main

import (
	"log"

	"github.com/MrSnakeDoc/jobhub/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Fatalf("❌ jobhub failed: %v", err)
	}
}
