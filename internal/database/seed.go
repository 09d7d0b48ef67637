package database

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mahamart/commerce-backend/internal/domain"
	"github.com/mahamart/commerce-backend/internal/observability"
)

var demoCatalog = []domain.Product{
	{Name: "Beras Premium 5kg", Description: "Long grain rice, 5kg bag", Price: 78000, Stock: 120},
	{Name: "Minyak Goreng 2L", Description: "Palm cooking oil, 2 litre pouch", Price: 36500, Stock: 80},
	{Name: "Gula Pasir 1kg", Description: "Refined white sugar", Price: 17500, Stock: 200},
	{Name: "Kopi Bubuk 250g", Description: "Ground robusta coffee", Price: 29000, Stock: 60},
	{Name: "Teh Celup 25s", Description: "Black tea, 25 bags", Price: 8500, Stock: 150},
}

type SeedReport struct {
	CreatedProducts int  `json:"created_products"`
	Noop            bool `json:"noop"`
}

// SeedCatalog inserts the demo catalog. Products are matched by name, so
// running it repeatedly is a no-op.
func SeedCatalog(db *gorm.DB) (*SeedReport, error) {
	start := time.Now()
	defer func() {
		observability.RecordDatabaseStartupDuration(context.Background(), "seed", time.Since(start))
	}()

	report := &SeedReport{}
	for _, p := range demoCatalog {
		product := p
		res := db.Where("name = ?", product.Name).FirstOrCreate(&product)
		if res.Error != nil {
			observability.RecordDatabaseStartupEvent(context.Background(), "seed", "error")
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			report.CreatedProducts++
		}
	}
	report.Noop = report.CreatedProducts == 0
	observability.RecordDatabaseStartupEvent(context.Background(), "seed", "success")
	return report, nil
}

// PendingCatalog returns the demo products SeedCatalog would create.
func PendingCatalog(db *gorm.DB) ([]string, error) {
	var missing []string
	for _, p := range demoCatalog {
		var count int64
		if err := db.Model(&domain.Product{}).Where("name = ?", p.Name).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			missing = append(missing, p.Name)
		}
	}
	return missing, nil
}
