package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DemoCatalog — небольшой каталог для локального запуска и cmd/migrate -seed.
func DemoCatalog() ([]domain.Category, []domain.Product) {
	created := time.Date(2026, time.January, 5, 8, 30, 0, 0, time.UTC)
	categories := []domain.Category{
		{ID: "boeuf", Name: "Bœuf", Description: "Viandes de bœuf maturées", CreatedAt: created},
		{ID: "agneau", Name: "Agneau", Description: "Agneau de lait et de pré-salé", CreatedAt: created},
		{ID: "volaille", Name: "Volaille", Description: "Volailles fermières", CreatedAt: created},
		{ID: "charcuterie", Name: "Charcuterie", Description: "Saucisses et préparations maison", CreatedAt: created},
	}

	limited := func(v string) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.RequireFromString(v)) }
	price := decimal.RequireFromString
	products := []domain.Product{
		{ID: "entrecote", CategoryID: "boeuf", Name: "Entrecôte", Description: "Maturée 21 jours", Price: price("32.90"), Unit: "kg", InStock: true, Featured: true, StockQuantity: limited("8"), CreatedAt: created},
		{ID: "bavette", CategoryID: "boeuf", Name: "Bavette d'aloyau", Price: price("24.90"), Unit: "kg", InStock: true, StockQuantity: limited("5.5"), CreatedAt: created},
		{ID: "joue-de-boeuf", CategoryID: "boeuf", Name: "Joue de bœuf", Description: "Idéale en daube", Price: price("16.50"), Unit: "kg", InStock: false, StockQuantity: limited("0"), CreatedAt: created},
		{ID: "gigot", CategoryID: "agneau", Name: "Gigot d'agneau", Price: price("24.50"), Unit: "kg", InStock: true, Featured: true, CreatedAt: created},
		{ID: "carre-agneau", CategoryID: "agneau", Name: "Carré d'agneau", Price: price("38.00"), Unit: "kg", InStock: true, StockQuantity: limited("3"), CreatedAt: created},
		{ID: "poulet-fermier", CategoryID: "volaille", Name: "Poulet fermier", Price: price("12.90"), Unit: "pièce", InStock: true, StockQuantity: limited("12"), CreatedAt: created},
		{ID: "merguez", CategoryID: "charcuterie", Name: "Merguez maison", Price: price("14.00"), Unit: "kg", InStock: true, Featured: true, CreatedAt: created},
	}
	return categories, products
}
