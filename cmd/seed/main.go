package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/entity"
	"ai-tutor-be/internal/repository/specification"
	"ai-tutor-be/internal/repository/unitofwork"
	"ai-tutor-be/pkg/database"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Seeds a licence with one student and prints a token for that student.
func main() {
	client := flag.String("client", "Demo School", "licence holder name")
	name := flag.String("name", "Demo Student", "student name")
	email := flag.String("email", "student@example.com", "student email")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}
	if cfg.Keys.JWTSecret == "" {
		log.Fatal("Error: JWT_SECRET is not set")
	}

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)

	student, err := uow.StudentRepository().FindOne(ctx, specification.ByEmail{Email: *email})
	if err != nil {
		log.Fatalf("Error: lookup student: %v", err)
	}
	if student != nil {
		log.Printf("Student %s already exists, issuing a new token", *email)
	} else {
		student, err = seed(ctx, uow, *client, *name, *email)
		if err != nil {
			log.Fatalf("Error: seed: %v", err)
		}
		log.Printf("Created licence %s and student %s", student.LicenseId, student.Id)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"student_id": student.Id.String(),
		"license_id": student.LicenseId.String(),
		"exp":        time.Now().Add(*ttl).Unix(),
	})
	signed, err := token.SignedString([]byte(cfg.Keys.JWTSecret))
	if err != nil {
		log.Fatalf("Error: sign token: %v", err)
	}
	fmt.Println(signed)
}

func seed(ctx context.Context, uow unitofwork.UnitOfWork, client, name, email string) (*entity.Student, error) {
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	license := &entity.License{
		Id:       uuid.New(),
		Client:   client,
		Active:   true,
		StartsAt: time.Now(),
	}
	if err := uow.LicenseRepository().Create(ctx, license); err != nil {
		return nil, err
	}

	student := &entity.Student{
		Id:        uuid.New(),
		LicenseId: license.Id,
		Name:      name,
		Email:     email,
		Active:    true,
	}
	if err := uow.StudentRepository().Create(ctx, student); err != nil {
		return nil, err
	}

	return student, uow.Commit()
}
