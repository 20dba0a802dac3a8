package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the single active cart of a buyer. Total is cached and must equal
// the sum of line totals after every mutation.
type Cart struct {
	ID        int64
	BuyerID   int64
	Lines     []CartLine
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartLine holds the reserved quantity of one option. Price and seller are
// captured when the option first enters the cart.
type CartLine struct {
	ID          int64
	CartID      int64
	OptionID    int64
	ItemID      int64
	SellerID    int64
	ItemName    string
	OptionLabel string
	UnitPrice   decimal.Decimal
	Quantity    int
	AddedAt     time.Time
}

// NewCartLine captures the option's current price and seller into a fresh line.
func NewCartLine(cartID int64, option *StockOption, qty int) CartLine {
	return CartLine{
		CartID:      cartID,
		OptionID:    option.ID,
		ItemID:      option.ItemID,
		SellerID:    option.SellerID,
		ItemName:    option.ItemName,
		OptionLabel: option.Label,
		UnitPrice:   option.Price,
		Quantity:    qty,
		AddedAt:     time.Now().UTC(),
	}
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ComputeTotal sums price times quantity over all lines.
func (c *Cart) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// Line returns the line with the given id, or false if it is not in this cart.
func (c *Cart) Line(lineID int64) (*CartLine, bool) {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

// LineForOption returns the line already holding optionID, if any.
func (c *Cart) LineForOption(optionID int64) (*CartLine, bool) {
	for i := range c.Lines {
		if c.Lines[i].OptionID == optionID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

func (c *Cart) RemoveLine(lineID int64) {
	for i := range c.Lines {
		if c.Lines[i].ID == lineID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return
		}
	}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// CartView is the read contract handed to transports and the cache.
type CartView struct {
	CartID  int64           `json:"cart_id"`
	BuyerID int64           `json:"buyer_id"`
	Lines   []CartViewLine  `json:"lines"`
	Total   decimal.Decimal `json:"total"`
}

type CartViewLine struct {
	LineID      int64           `json:"line_id"`
	OptionID    int64           `json:"option_id"`
	ItemName    string          `json:"item_name"`
	OptionLabel string          `json:"option_label"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func (c *Cart) View() *CartView {
	lines := make([]CartViewLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, CartViewLine{
			LineID:      l.ID,
			OptionID:    l.OptionID,
			ItemName:    l.ItemName,
			OptionLabel: l.OptionLabel,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal(),
		})
	}
	return &CartView{
		CartID:  c.ID,
		BuyerID: c.BuyerID,
		Lines:   lines,
		Total:   c.Total,
	}
}
