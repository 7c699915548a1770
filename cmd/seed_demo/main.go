package main

import (
	"fmt"
	"log"

	"github.com/stocklink/bomsync/internal/config"
	"github.com/stocklink/bomsync/internal/database"
	"github.com/stocklink/bomsync/internal/models"
	"github.com/stocklink/bomsync/internal/utils"
)

// Seeds one demo account with a small catalog: simple components, a "Gift
// Box" composite built from them, and a parent-level BOM. Useful for poking
// the API by hand without a storefront attached.
func main() {
	fmt.Println("🌱 Demo Data Seeder")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.Account{},
		&models.Product{},
		&models.Variation{},
		&models.BillOfMaterials{},
		&models.BOMItem{},
		&models.StockAudit{},
		&models.SyncRun{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")

	// Check if data already exists
	var accountCount int64
	db.Model(&models.Account{}).Count(&accountCount)
	if accountCount > 0 {
		fmt.Printf("⚠️  Database already has %d accounts. Clear it first? (y/N): ", accountCount)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		// Clear existing data
		fmt.Println("🗑️  Clearing existing data...")
		db.Exec("TRUNCATE TABLE stock_audits CASCADE")
		db.Exec("TRUNCATE TABLE sync_runs CASCADE")
		db.Exec("TRUNCATE TABLE bom_items CASCADE")
		db.Exec("TRUNCATE TABLE bill_of_materials CASCADE")
		db.Exec("TRUNCATE TABLE variations CASCADE")
		db.Exec("TRUNCATE TABLE products CASCADE")
		db.Exec("TRUNCATE TABLE accounts CASCADE")
		fmt.Println("✅ Data cleared")
	}

	fmt.Println()
	fmt.Println("📦 Creating demo data...")

	// 1. Account
	apiKey := "demo-webhook-key"
	hash, err := utils.HashAPIKey(apiKey)
	if err != nil {
		log.Fatalf("❌ Failed to hash API key: %v", err)
	}
	account := models.Account{
		ID:             1,
		Name:           "Demo Storefront",
		PlatformURL:    "https://demo.example.com",
		PlatformUser:   "api",
		PlatformSecret: "demo-platform-secret",
		APIKeyHash:     hash,
		Active:         true,
	}
	if err := db.Create(&account).Error; err != nil {
		log.Fatalf("❌ Failed to create account: %v", err)
	}
	fmt.Printf("🏪 Account %d (%s), webhook key: %s\n", account.ID, account.Name, apiKey)

	// 2. Component products
	components := []models.Product{
		{ID: 10, AccountID: 1, ExternalID: 200, Name: "Scented Candle", StockManaged: true, CachedStock: f64(9)},
		{ID: 11, AccountID: 1, ExternalID: 300, Name: "Greeting Card", StockManaged: true, CachedStock: f64(4)},
		{ID: 12, AccountID: 1, ExternalID: 400, Name: "Soap Bar", StockManaged: true, CachedStock: f64(25)},
	}
	for i := range components {
		if err := db.Create(&components[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create product %s: %v", components[i].Name, err)
		}
		fmt.Printf("   • %s (external %d, stock %.0f)\n", components[i].Name, components[i].ExternalID, *components[i].CachedStock)
	}

	// 3. Composite: Gift Box = 2 candles + 1 card
	giftBox := models.Product{ID: 1, AccountID: 1, ExternalID: 100, Name: "Gift Box", StockManaged: true}
	if err := db.Create(&giftBox).Error; err != nil {
		log.Fatalf("❌ Failed to create Gift Box: %v", err)
	}
	giftBOM := models.BillOfMaterials{
		ID:        1,
		AccountID: 1,
		ProductID: giftBox.ID,
		Items: []models.BOMItem{
			{Position: 0, Quantity: 2, ChildProductID: uintPtr(10)},
			{Position: 1, Quantity: 1, ChildProductID: uintPtr(11)},
		},
	}
	if err := db.Create(&giftBOM).Error; err != nil {
		log.Fatalf("❌ Failed to create Gift Box BOM: %v", err)
	}
	fmt.Println("🎁 Gift Box (external 100) = 2× Scented Candle + 1× Greeting Card")

	// 4. Composite: Spa Set = 3 soaps + 1 candle + packaging (internal, untracked)
	spaSet := models.Product{ID: 2, AccountID: 1, ExternalID: 101, Name: "Spa Set", StockManaged: true}
	if err := db.Create(&spaSet).Error; err != nil {
		log.Fatalf("❌ Failed to create Spa Set: %v", err)
	}
	spaBOM := models.BillOfMaterials{
		ID:        2,
		AccountID: 1,
		ProductID: spaSet.ID,
		Items: []models.BOMItem{
			{Position: 0, Quantity: 3, ChildProductID: uintPtr(12)},
			{Position: 1, Quantity: 1, ChildProductID: uintPtr(10)},
			{Position: 2, Quantity: 1, InternalName: "Wooden Crate", ChildStock: f64(100)},
		},
	}
	if err := db.Create(&spaBOM).Error; err != nil {
		log.Fatalf("❌ Failed to create Spa Set BOM: %v", err)
	}
	fmt.Println("🧖 Spa Set (external 101) = 3× Soap Bar + 1× Scented Candle + 1× Wooden Crate")

	fmt.Println()
	fmt.Println("✅ Demo data ready")
	fmt.Println("   GET /api/bom/effective/1 shows the Gift Box bottleneck (expect 4)")
}

func f64(v float64) *float64 {
	return &v
}

func uintPtr(v uint) *uint {
	return &v
}
