package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/joho/godotenv"
)

// JWT_KEY is shared by the login controller and the auth middleware.
var JWT_KEY []byte

// JWTClaims is the payload stored inside issued tokens.
type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Tunables for the signature verification core. Loaded once at startup from
// the environment (or a local .env file); defaults match production.
var (
	ServerAddr         string
	ModelPath          string
	UploadDir          string
	EmbeddingDim       int
	MaxUploadBytes     int64
	DefaultThreshold   float64
	MinTrainingSamples int
	KNNLimit           int
	TargetWidth        int
	TargetHeight       int
	AllowedMIMETypes   []string
)

// Load reads the .env file when present and fills the package variables.
// Missing JWT_KEY is fatal; everything else has a sane default.
func Load() {
	// In production the .env file does not exist and the variables come from
	// the real environment, so a load error here is fine.
	if err := godotenv.Load(); err != nil {
		log.Println("Info: no .env file found, using system environment variables.")
	}

	key := os.Getenv("JWT_KEY")
	if key == "" {
		log.Fatal("FATAL ERROR: JWT_KEY not set in environment!")
	}
	JWT_KEY = []byte(key)

	ServerAddr = getString("SERVER_ADDR", ":8080")
	ModelPath = getString("MODEL_PATH", "")
	UploadDir = getString("UPLOAD_DIR", "uploads")
	EmbeddingDim = getInt("EMBED_DIM", 512)
	MaxUploadBytes = int64(getInt("MAX_UPLOAD_BYTES", 10*1024*1024))
	DefaultThreshold = getFloat("DEFAULT_THRESHOLD", 0.35)
	MinTrainingSamples = getInt("MIN_TRAINING_SAMPLES", 3)
	KNNLimit = getInt("KNN_LIMIT", 5)
	TargetWidth = getInt("TARGET_WIDTH", 256)
	TargetHeight = getInt("TARGET_HEIGHT", 128)
	AllowedMIMETypes = strings.Split(
		getString("ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp"), ",")
}

func getString(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid value %q for %s, using default %d", v, name, def)
		return def
	}
	return n
}

func getFloat(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Warning: invalid value %q for %s, using default %g", v, name, def)
		return def
	}
	return f
}
