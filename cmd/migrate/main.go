package main

import (
	"log"

	tool "github.com/mahamart/commerce-backend/internal/tools/migrate"
)

func main() {
	if err := tool.NewRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}
