// Command seed provisions development accounts and a small data set. Accounts
// go through the same transactional provisioning path as signup, so the seed
// exercises the identity+profile invariant rather than bypassing it.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/edutrackers/edutrack-api/internal/models"
	"github.com/edutrackers/edutrack-api/internal/repository"
	"github.com/edutrackers/edutrack-api/pkg/config"
	"github.com/edutrackers/edutrack-api/pkg/database"
)

type account struct {
	email      string
	fullName   string
	role       models.Role
	rollNumber string
	course     string
}

var accounts = []account{
	{email: "teacher@edutrack.dev", fullName: "Dewi Lestari", role: models.RoleTeacher},
	{email: "student1@edutrack.dev", fullName: "Budi Santoso", role: models.RoleStudent, rollNumber: "CS-2024-001", course: "Computer Science"},
	{email: "student2@edutrack.dev", fullName: "Siti Rahma", role: models.RoleStudent, rollNumber: "CS-2024-002", course: "Computer Science"},
	{email: "student3@edutrack.dev", fullName: "Andi Wijaya", role: models.RoleStudent, rollNumber: "MA-2024-001", course: "Mathematics"},
}

func main() {
	var password string
	flag.StringVar(&password, "password", "password123", "Password for every seeded account")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Env == config.EnvProduction {
		log.Fatal("refusing to seed a production database")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close() //nolint:errcheck

	ctx := context.Background()
	identities := repository.NewIdentityRepository(db)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash password: %v", err)
	}

	ids := make(map[string]string, len(accounts))
	for _, acc := range accounts {
		existing, err := identities.FindIdentityByEmail(ctx, acc.email)
		if err == nil {
			ids[acc.email] = existing.ID
			log.Printf("skipping %s, already provisioned", acc.email)
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			log.Fatalf("failed to look up %s: %v", acc.email, err)
		}

		identity := &models.Identity{Email: acc.email, PasswordHash: string(hash)}
		profile := &models.Profile{Email: acc.email, FullName: acc.fullName, Role: acc.role}
		if acc.rollNumber != "" {
			profile.RollNumber = strPtr(acc.rollNumber)
		}
		if acc.course != "" {
			profile.Course = strPtr(acc.course)
		}
		if err := identities.CreateWithProfile(ctx, identity, profile); err != nil {
			log.Fatalf("failed to provision %s: %v", acc.email, err)
		}
		ids[acc.email] = identity.ID
		log.Printf("provisioned %s (%s)", acc.email, acc.role)
	}

	teacherID := ids["teacher@edutrack.dev"]
	studentID := ids["student1@edutrack.dev"]

	assignments := repository.NewAssignmentRepository(db)
	if err := assignments.Create(ctx, &models.Assignment{
		TeacherID:   teacherID,
		Title:       "Graph Traversal Exercises",
		Description: strPtr("Implement BFS and DFS over the provided adjacency lists."),
		Course:      strPtr("Computer Science"),
		DueDate:     timePtr(time.Now().UTC().AddDate(0, 0, 14)),
	}); err != nil {
		log.Fatalf("failed to seed assignment: %v", err)
	}

	payments := repository.NewPaymentRepository(db)
	if err := payments.Create(ctx, &models.Payment{
		StudentID:   studentID,
		Amount:      1500.00,
		PaymentType: "tuition",
		Status:      models.PaymentStatusPending,
		DueDate:     time.Now().UTC().AddDate(0, 1, 0),
		Semester:    strPtr("2026/2027-1"),
	}); err != nil {
		log.Fatalf("failed to seed payment: %v", err)
	}

	announcements := repository.NewAnnouncementRepository(db)
	if err := announcements.Create(ctx, &models.Announcement{
		TeacherID: teacherID,
		Title:     "Welcome to the new term",
		Message:   "Course material and the first assignment are now available.",
	}); err != nil {
		log.Fatalf("failed to seed announcement: %v", err)
	}

	log.Println("seed complete")
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
