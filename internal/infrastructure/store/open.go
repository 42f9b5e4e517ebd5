package store

import (
	"context"
	"fmt"
	"log"

	"github.com/example/furniture-market/internal/config"
	"github.com/example/furniture-market/internal/domain/cart"
)

// OpenCartRepository connects the cart backend selected by cfg.CartStore.
// The returned close function releases the backend connection.
func OpenCartRepository(ctx context.Context, cfg *config.Config) (cart.Repository, func(), error) {
	switch cfg.CartStore {
	case config.CartStoreMemory:
		log.Println("[Store] Cart store: in-memory")
		return NewMemoryCartRepository(), func() {}, nil

	case config.CartStoreDynamo:
		client, err := NewDynamoClient(ctx, cfg.AWSEndpointURL)
		if err != nil {
			return nil, nil, err
		}
		log.Printf("[Store] Cart store: DynamoDB table %s", cfg.DynamoCartTable)
		return NewDynamoCartRepository(client, cfg.DynamoCartTable), func() {}, nil

	case config.CartStoreMongo:
		db, err := ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		repo := NewMongoCartRepository(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		log.Printf("[Store] Cart store: MongoDB database %s", cfg.MongoDBName)
		closeFn := func() {
			if err := db.Client().Disconnect(context.Background()); err != nil {
				log.Printf("[Store] MongoDB disconnect failed: %v", err)
			}
		}
		return repo, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unknown cart store %q", cfg.CartStore)
}
