package main

import (
	"log"

	"github.com/joho/godotenv"

	corecmd "github.com/m3rciful/packbot/core/cmd"
	"github.com/m3rciful/packbot/internal/app"
)

func main() {
	// Local development keeps secrets in .env; absence is fine in prod.
	_ = godotenv.Load()

	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.Load(path)
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return app.Bootstrap(cfg.(*app.Config))
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
