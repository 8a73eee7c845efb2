package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from multiple sources: the .env file,
// config.yaml and config/dhash.json. Environment variables override values
// from the files.
func LoadConfig() {
	// 1. Load environment variables from .env, ignore a missing file.
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, skipping.")
	}

	// 2. Read the base configuration (config.yaml).
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("dhash.db_path", "data/dhash.db")
	viper.SetDefault("dhash.max_attachment_kb", 8000)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("No base config file (config.yaml) found, using environment variables and merged configs only.")
		} else {
			panic(fmt.Errorf("fatal error reading base config file: %w", err))
		}
	}

	// 3. Merge the duplicate-detection configuration (config/dhash.json).
	viper.SetConfigName("dhash")
	viper.SetConfigType("json")
	viper.AddConfigPath("./config")

	if err := viper.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("No dhash config file (config/dhash.json) found, skipping merge.")
		} else {
			panic(fmt.Errorf("fatal error merging dhash config file: %w", err))
		}
	}
}
