package seeder

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/database"
	"github.com/Additional-Code/cannadmin/internal/entity"
	"github.com/Additional-Code/cannadmin/internal/tenant"
)

// DemoTenant is the tenant seeded when none is given.
var DemoTenant = uuid.MustParse("6f1c2a9e-3b7d-4e2a-9c1f-0d5e8b7a4c21")

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// Fixtures is the demo data set for one tenant. IDs are derived from the tenant so
// reseeding is idempotent.
type Fixtures struct {
	Admin     entity.AdminUser
	Store     entity.Store
	Customers []entity.Customer
	Addresses []entity.Address
	Products  []entity.Product
	Movements []entity.InventoryMovement
}

func id(tenantID uuid.UUID, kind, key string) uuid.UUID {
	return uuid.NewSHA1(tenantID, []byte(kind+":"+key))
}

// AdminID is the id of the seeded owner account for tenantID.
func AdminID(tenantID uuid.UUID) uuid.UUID {
	return id(tenantID, "admin", "owner")
}

// Build returns the fixtures for tenantID.
func Build(tenantID uuid.UUID, now time.Time) Fixtures {
	f := Fixtures{
		Admin: entity.AdminUser{
			ID: AdminID(tenantID), TenantID: tenantID,
			Email: "owner@demo.cannadmin.local", FullName: "Demo Owner", Role: tenant.RoleOwner, CreatedAt: now,
		},
		Store: entity.Store{
			ID: id(tenantID, "store", "green-leaf"), TenantID: tenantID,
			Slug: "green-leaf", Name: "Green Leaf Dispensary", PrimaryColor: "#2e7d32", SecondaryColor: "#a5d6a7",
			IsActive: true, IsPublic: true, CreatedAt: now, UpdatedAt: now,
		},
	}

	customers := []struct {
		name, email string
		typ         entity.CustomerType
		line1, city string
	}{
		{"Ada Moreno", "ada@example.com", entity.CustomerTypeRecreational, "12 Elm Street", "Denver"},
		{"Jonas Field", "jonas@example.com", entity.CustomerTypeMedical, "48 Birch Avenue", "Boulder"},
		{"Harbor Wellness", "buyer@harbor.example.com", entity.CustomerTypeWholesale, "900 Dock Road", "Aurora"},
	}
	for _, c := range customers {
		customer := entity.Customer{
			ID: id(tenantID, "customer", c.email), TenantID: tenantID,
			Name: c.name, Email: c.email, Type: c.typ, CreatedAt: now, UpdatedAt: now,
		}
		f.Customers = append(f.Customers, customer)
		f.Addresses = append(f.Addresses, entity.Address{
			ID: id(tenantID, "address", c.email), TenantID: tenantID, CustomerID: &customer.ID,
			Line1: c.line1, City: c.city, Region: "CO", CreatedAt: now,
		})
	}

	products := []struct {
		name, sku, category string
		cost, retail        string
		qty, threshold      int64
	}{
		{"Blue Dream 3.5g", "BD-35", "flower", "12.00", "35.00", 40, 10},
		{"OG Kush 1g Pre-roll", "OGK-PR1", "pre-rolls", "3.50", "12.00", 120, 25},
		{"Calm CBD Tincture 30ml", "CBD-T30", "tinctures", "18.00", "49.99", 8, 10},
		{"Citrus Gummies 10pk", "GUM-CIT10", "edibles", "7.25", "22.00", 0, 15},
	}
	for _, p := range products {
		product := entity.Product{
			ID: id(tenantID, "product", p.sku), TenantID: tenantID,
			Name: p.name, SKU: p.sku, Category: p.category,
			CostPrice:         decimal.RequireFromString(p.cost),
			WholesalePrice:    decimal.RequireFromString(p.cost).Mul(decimal.NewFromFloat(1.4)).Round(2),
			RetailPrice:       decimal.RequireFromString(p.retail),
			LowStockThreshold: p.threshold,
			Version:           1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		product.SetAvailable(p.qty)
		f.Products = append(f.Products, product)
		if p.qty > 0 {
			f.Movements = append(f.Movements, entity.InventoryMovement{
				ID: id(tenantID, "movement", p.sku), TenantID: tenantID, ProductID: product.ID,
				MovementType: entity.MovementRestock, QuantityChange: p.qty, QuantityBefore: 0, QuantityAfter: p.qty,
				Reason: "initial stock", CreatedBy: &f.Admin.ID, CreatedAt: now,
			})
		}
	}
	return f
}

// Seed writes the demo fixtures for tenantID, skipping rows that already exist.
func (s *Seeder) Seed(ctx context.Context, tenantID uuid.UUID) (Fixtures, error) {
	f := Build(tenantID, time.Now().UTC())

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		models := []any{&f.Admin, &f.Store, &f.Customers, &f.Addresses, &f.Products, &f.Movements}
		for _, model := range models {
			if _, err := tx.NewInsert().Model(model).Ignore().Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Fixtures{}, err
	}

	if s.logger != nil {
		s.logger.Info("seeded demo tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("customers", len(f.Customers)),
			zap.Int("products", len(f.Products)),
		)
	}
	return f, nil
}
