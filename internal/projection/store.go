package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/ordermanagement/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "order_history"

// OrderHistory is one buyer-facing summary per order, rebuilt from order events.
type OrderHistory struct {
	OrderID        string        `bson:"_id" json:"order_id"`
	BuyerID        int64         `bson:"buyer_id" json:"buyer_id"`
	Total          string        `bson:"total" json:"total"`
	Status         string        `bson:"status" json:"status"`
	PaymentStatus  string        `bson:"payment_status" json:"payment_status"`
	ShippingStatus string        `bson:"shipping_status" json:"shipping_status"`
	Items          []HistoryItem `bson:"items" json:"items"`
	PlacedAt       time.Time     `bson:"placed_at" json:"placed_at"`
	LastEventAt    time.Time     `bson:"last_event_at" json:"last_event_at"`
}

type HistoryItem struct {
	ItemName    string `bson:"item_name" json:"item_name"`
	OptionLabel string `bson:"option_label" json:"option_label"`
	SellerID    int64  `bson:"seller_id" json:"seller_id"`
	UnitPrice   string `bson:"unit_price" json:"unit_price"`
	Quantity    int    `bson:"quantity" json:"quantity"`
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type Store struct {
	collection *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{collection: db.Collection(collectionName)}
}

func (s *Store) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "placed_at", Value: -1}}},
	}
	if _, err := s.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Apply upserts the order summary carried by ev. An event older than the one
// already applied is ignored, so redelivery leaves the document unchanged.
func (s *Store) Apply(ctx context.Context, ev domain.OrderEvent) error {
	doc := OrderHistory{
		OrderID:        ev.OrderID,
		BuyerID:        ev.BuyerID,
		Total:          ev.Total.StringFixed(2),
		Status:         ev.Status.String(),
		PaymentStatus:  ev.PaymentStatus.String(),
		ShippingStatus: ev.ShippingStatus.String(),
		Items:          make([]HistoryItem, 0, len(ev.Items)),
		PlacedAt:       ev.PlacedAt.UTC(),
		LastEventAt:    ev.OccurredAt.UTC(),
	}
	for _, it := range ev.Items {
		doc.Items = append(doc.Items, HistoryItem{
			ItemName:    it.ItemName,
			OptionLabel: it.OptionLabel,
			SellerID:    it.SellerID,
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Quantity:    it.Quantity,
		})
	}

	filter := bson.M{
		"_id":           doc.OrderID,
		"last_event_at": bson.M{"$lte": doc.LastEventAt},
	}
	_, err := s.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		// the filter missed because a newer event is stored; the upsert then collides on _id
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("failed to upsert order history: %w", err)
	}
	return nil
}

// History returns the buyer's orders, most recently placed first.
func (s *Store) History(ctx context.Context, buyerID int64) ([]OrderHistory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "placed_at", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"buyer_id": buyerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query order history: %w", err)
	}
	defer cursor.Close(ctx)

	out := []OrderHistory{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode order history: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, orderID string) (*OrderHistory, error) {
	var doc OrderHistory
	err := s.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("order history %s: %w", orderID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get order history: %w", err)
	}
	return &doc, nil
}

func (s *Store) Disconnect(ctx context.Context) error {
	return s.collection.Database().Client().Disconnect(ctx)
}
