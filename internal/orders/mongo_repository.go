package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/slime-shop/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ordersCollection = "orders"

type MongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(ordersCollection),
		now:        time.Now,
	}
}

// SaveOrder inserts the order. A second save of the same order id returns ErrDuplicateOrder.
func (m *MongoRepository) SaveOrder(ctx context.Context, order domain.OrderRecord) error {
	if order.OrderID == "" {
		return fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}
	now := m.now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	_, err := m.collection.InsertOne(ctx, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	var order domain.OrderRecord

	err := m.collection.FindOne(ctx, bson.M{"order_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

func (m *MongoRepository) ListOrders(ctx context.Context, filter ListFilter) ([]domain.OrderRecord, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Email != "" {
		query["email"] = filter.Email
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(filter.limit())

	cursor, err := m.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]domain.OrderRecord, 0)
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return result, nil
}

func (m *MongoRepository) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus) (*domain.OrderRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	update := bson.M{
		"$set": bson.M{
			"status":     status,
			"updated_at": m.now().UTC(),
		},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order domain.OrderRecord
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"order_id": orderID}, update, opts).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	return &order, nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
