package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/furniture-market/internal/domain/cart"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{collection: db.Collection("carts")}
}

func (r *MongoCartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []cart.LineItem{}
	}
	return &c, nil
}

// Save inserts the first version of a cart and replaces later ones only if
// the stored version still matches. A duplicate owner on insert means
// another writer created the cart first.
func (r *MongoCartRepository) Save(ctx context.Context, c *cart.Cart, expectedVersion int64) error {
	if expectedVersion == 0 {
		_, err := r.collection.InsertOne(ctx, c)
		if mongo.IsDuplicateKeyError(err) {
			return cart.ErrVersionConflict
		}
		if err != nil {
			return fmt.Errorf("failed to insert cart: %w", err)
		}
		return nil
	}

	filter := bson.M{"_id": c.ID, "version": expectedVersion}
	result, err := r.collection.ReplaceOne(ctx, filter, c)
	if err != nil {
		return fmt.Errorf("failed to replace cart: %w", err)
	}
	if result.MatchedCount == 0 {
		return cart.ErrVersionConflict
	}
	return nil
}

func (r *MongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
