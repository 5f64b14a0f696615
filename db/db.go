package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// DB bundles the Mongo client with the marketplace collections.
type DB struct {
	Client             *mongo.Client
	UserCollection     *mongo.Collection
	ProductCollection  *mongo.Collection
	OrderCollection    *mongo.Collection
	DeliveryCollection *mongo.Collection
}

// Connect dials Mongo, pings the primary and binds the collections of dbName.
func Connect(ctx context.Context, uri, dbName string) (*DB, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	return Bind(client, dbName), nil
}

// Bind wraps an already connected client.
func Bind(client *mongo.Client, dbName string) *DB {
	database := client.Database(dbName)
	return &DB{
		Client:             client,
		UserCollection:     database.Collection("users"),
		ProductCollection:  database.Collection("products"),
		OrderCollection:    database.Collection("orders"),
		DeliveryCollection: database.Collection("deliveries"),
	}
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
// The partial unique indexes on deliveries enforce one active delivery per
// agent and per order.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	activeOnly := bson.M{"active": true}
	specs := map[*mongo.Collection][]mongo.IndexModel{
		d.UserCollection: {
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_username")},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetName("unique_email")},
		},
		d.ProductCollection: {
			{Keys: bson.D{{Key: "farmer", Value: 1}}, Options: options.Index().SetName("farmer")},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetName("category_name")},
		},
		d.OrderCollection: {
			{
				Keys: bson.D{{Key: "paymentIntentId", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("unique_payment_intent").
					SetPartialFilterExpression(bson.M{"paymentIntentId": bson.M{"$type": "string"}}),
			},
			{Keys: bson.D{{Key: "buyer", Value: 1}, {Key: "createdAt", Value: -1}}, Options: options.Index().SetName("buyer_created")},
			{Keys: bson.D{{Key: "products.farmer", Value: 1}}, Options: options.Index().SetName("line_item_farmer")},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "isDeliveryAssigned", Value: 1}}, Options: options.Index().SetName("assignable")},
		},
		d.DeliveryCollection: {
			{
				Keys:    bson.D{{Key: "deliveryAgent", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("one_active_per_agent").SetPartialFilterExpression(activeOnly),
			},
			{
				Keys:    bson.D{{Key: "order", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("one_active_per_order").SetPartialFilterExpression(activeOnly),
			},
		},
	}
	for coll, idxs := range specs {
		if _, err := coll.Indexes().CreateMany(ctx, idxs); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

func (d *DB) Close(ctx context.Context) error {
	return d.Client.Disconnect(ctx)
}
