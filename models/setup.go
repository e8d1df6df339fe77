package models

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

func ConnectDatabase() {
	// Locally the connection string comes from .env; in production it is a
	// real environment variable, so the load error is ignored on purpose.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("FATAL ERROR: DATABASE_URL not set in environment!")
	}

	db, err := gorm.Open(mysql.Open(dbURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	log.Println("database connection established")
	DB = db
}

// Migrate creates/updates all tables. Split out from ConnectDatabase so
// tests can run it against their own database handle.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Student{},
		&Session{},
		&SignatureImage{},
		&SignatureEmbedding{},
		&SignatureProfile{},
		&VerificationEvent{},
		&Attendance{},
	)
}
