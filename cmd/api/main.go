package main

import (
	"log"
	"net/http"

	"github.com/imageforge/sdxl-playground/server/internal/app"
	"github.com/imageforge/sdxl-playground/server/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("startup check failed: %v", err)
	}

	appInstance, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialise app: %v", err)
	}
	defer appInstance.Close()

	log.Printf("SDXL playground API listening on %s", cfg.Address)
	if err := http.ListenAndServe(cfg.Address, appInstance.Router()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
