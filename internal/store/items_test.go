package store

import (
	"context"
	"testing"

	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
	"github.com/shopspring/decimal"
)

func TestCreateAndGetItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item, err := CreateItem(ctx, database, ItemInput{
		Name: "Kayak", Description: "Two seater", DailyRate: decimal.RequireFromString("40.50"), IsRentable: true,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if item.Name != "Kayak" {
		t.Errorf("expected name 'Kayak', got %q", item.Name)
	}
	if item.Status != model.ItemStatusActive {
		t.Errorf("expected status 'active', got %q", item.Status)
	}
	if !item.DailyRate.Equal(decimal.RequireFromString("40.5")) {
		t.Errorf("expected daily rate 40.50, got %s", item.DailyRate)
	}
	if !item.IsRentable || item.IsSaleable {
		t.Errorf("expected rentable, not saleable item, got %+v", item)
	}
	if item.SalePrice.Valid {
		t.Error("expected no sale price")
	}
}

func TestListItemsFiltered(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	mustItem(t, database, "Active Item")
	item2 := mustItem(t, database, "Damaged Item")
	UpdateItem(ctx, database, item2.ID, ItemInput{Name: "Damaged Item", Status: model.ItemStatusDamaged, IsRentable: true})

	all, _ := ListItems(ctx, database, ItemFilter{})
	if len(all) != 2 {
		t.Errorf("expected 2 items, got %d", len(all))
	}

	active, _ := ListItems(ctx, database, ItemFilter{Status: model.ItemStatusActive})
	if len(active) != 1 {
		t.Errorf("expected 1 active item, got %d", len(active))
	}

	saleable := true
	forSale, _ := ListItems(ctx, database, ItemFilter{Saleable: &saleable})
	if len(forSale) != 0 {
		t.Errorf("expected no saleable items, got %d", len(forSale))
	}
}

func TestSoftDeleteItem(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Delete Me")
	DeleteItem(ctx, database, item.ID)

	items, _ := ListItems(ctx, database, ItemFilter{})
	if len(items) != 0 {
		t.Errorf("expected 0 items after soft delete, got %d", len(items))
	}

	// Still fetchable by ID for transition history.
	got, _ := GetItem(ctx, database, item.ID)
	if got == nil || got.DeletedAt == nil {
		t.Error("expected soft-deleted item to still be fetchable by ID")
	}
}

func TestListItemForSaleAndRestore(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Bike")
	before := model.ItemFlags{
		IsRentable: item.IsRentable,
		IsSaleable: item.IsSaleable,
		SaleStatus: item.SaleStatus,
		SalePrice:  item.SalePrice,
		ListedAt:   item.ListedAt,
	}

	price := decimal.NewNullDecimal(decimal.RequireFromString("350.00"))
	if err := ListItemForSale(ctx, database, item.ID, price, day(5)); err != nil {
		t.Fatalf("ListItemForSale: %v", err)
	}

	listed, _ := GetItem(ctx, database, item.ID)
	if listed.IsRentable || !listed.IsSaleable || listed.SaleStatus != model.SaleStatusListed {
		t.Fatalf("expected listed item, got %+v", listed)
	}
	if !listed.SalePrice.Valid || !listed.SalePrice.Decimal.Equal(price.Decimal) {
		t.Errorf("expected sale price 350, got %v", listed.SalePrice)
	}
	if listed.ListedAt == nil || !listed.ListedAt.Equal(day(5)) {
		t.Errorf("expected listed_at %v, got %v", day(5), listed.ListedAt)
	}

	if err := RestoreItemFlags(ctx, database, item.ID, before); err != nil {
		t.Fatalf("RestoreItemFlags: %v", err)
	}
	restored, _ := GetItem(ctx, database, item.ID)
	if !restored.IsRentable || restored.IsSaleable || restored.SaleStatus != "" ||
		restored.SalePrice.Valid || restored.ListedAt != nil {
		t.Errorf("expected original flags, got %+v", restored)
	}
}

func TestListItemForSaleKeepsPriceWhenUnset(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	item := mustItem(t, database, "Tent")
	first := decimal.NewNullDecimal(decimal.RequireFromString("90"))
	ListItemForSale(ctx, database, item.ID, first, day(1))
	if err := ListItemForSale(ctx, database, item.ID, decimal.NullDecimal{}, day(2)); err != nil {
		t.Fatalf("ListItemForSale: %v", err)
	}

	got, _ := GetItem(ctx, database, item.ID)
	if !got.SalePrice.Valid || !got.SalePrice.Decimal.Equal(first.Decimal) {
		t.Errorf("expected price to stay 90, got %v", got.SalePrice)
	}
}

func TestListItemForSaleMissingItem(t *testing.T) {
	database := db.NewTestDB(t)

	if err := ListItemForSale(context.Background(), database, 999, decimal.NullDecimal{}, day(1)); err == nil {
		t.Error("expected error for missing item")
	}
}
