package domain

import "github.com/shopspring/decimal"

// Item is a catalog entry owned by a seller. Its purchasable variants are StockOptions.
type Item struct {
	ID       int64
	Name     string
	SellerID int64
}

// StockOption is one purchasable variant of an Item with its own price and stock count.
// Available never goes below zero.
type StockOption struct {
	ID        int64
	ItemID    int64
	ItemName  string
	Label     string
	Price     decimal.Decimal
	Available int
	SellerID  int64
}

type ShippingMethod struct {
	ID   int64
	Name string
}
