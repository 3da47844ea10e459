package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DataDirectory string
	DatabasePath  string
	LedgerPath    string
	LogDirectory  string

	Workers    int // pipeline workers; cameras are pinned to a worker to keep per-camera order
	QueueDepth int // per-worker queue capacity

	Detector        string // "model", "file" or "null"
	ModelPath       string
	ModelConfigPath string
	Tracker         string // "iou" or "null"
	Impact          string // "heuristic" or "null"
}

// Load reads .env if present, then builds the configuration from environment
// variables with defaults.
func Load() *Config {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", filepath.Join(".", "data"))

	return &Config{
		Port:          getEnvAsInt("PORT", 8080),
		DataDirectory: dataDir,
		DatabasePath:  getEnv("DB_PATH", filepath.Join(dataDir, "incidents.db")),
		LedgerPath:    getEnv("LEDGER_PATH", filepath.Join(dataDir, "incident_records.json")),
		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),

		Workers:    getEnvAsInt("PIPELINE_WORKERS", 4),
		QueueDepth: getEnvAsInt("PIPELINE_QUEUE_DEPTH", 32),

		Detector:        getEnv("DETECTOR", "null"),
		ModelPath:       getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ModelConfigPath: getEnv("MODEL_CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		Tracker:         getEnv("TRACKER", "iou"),
		Impact:          getEnv("IMPACT", "heuristic"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
