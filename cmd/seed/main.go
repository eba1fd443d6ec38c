package main

import (
	"flag"
	"log"
	"os"
	"time"

	"club-directory-be/internal/model"
	"club-directory-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/gorm/clause"
)

// Seeds one member with an active, auto-renewing membership bound to a
// Stripe test-mode subscription, for exercising the webhook flow locally.
func main() {
	email := flag.String("email", "member@example.com", "member email")
	subscriptionId := flag.String("subscription", "", "Stripe subscription id (sub_...)")
	customerId := flag.String("customer", "", "Stripe customer id (cus_...)")
	monthsAgo := flag.Int("months-ago", 0, "backdate the membership start by this many months")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	user := model.User{
		Id:               uuid.New(),
		Email:            *email,
		FullName:         "Seed Member",
		Role:             "member",
		MembershipStatus: "Active",
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"membership_status"}),
	}).Create(&user).Error; err != nil {
		log.Fatalf("Error: seeding user: %v", err)
	}
	// On conflict the generated id is not the stored one.
	if err := db.Where("email = ?", *email).First(&user).Error; err != nil {
		log.Fatalf("Error: reloading user: %v", err)
	}

	start := time.Now().UTC().AddDate(0, -*monthsAgo, 0)
	membership := model.Membership{
		Id:                   uuid.New(),
		UserId:               user.Id,
		StripeCustomerId:     *customerId,
		StripeSubscriptionId: *subscriptionId,
		Status:               "active",
		StartDate:            start,
		EndDate:              start.AddDate(1, 0, 0),
		AutoRenew:            true,
	}
	if err := db.Create(&membership).Error; err != nil {
		log.Fatalf("Error: seeding membership: %v", err)
	}

	log.Printf("✅ Seeded user %s (%s) with membership %s", user.Id, user.Email, membership.Id)
}
