package main

import (
	"log"

	"cardperks-go/internal/config"
	"cardperks-go/internal/database"
	httpserver "cardperks-go/internal/http"
	"cardperks-go/internal/models"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	database.Connect()
	database.DB.AutoMigrate(
		&models.User{},
		&models.Item{},
		&models.Account{},
		&models.Transaction{},
		&models.CardProduct{},
		&models.BenefitRule{},
		&models.BenefitUsagePeriod{},
		&models.TransactionBenefitMatch{},
	)

	cfg := config.Load()
	r := httpserver.NewServer(cfg)
	log.Printf("listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
