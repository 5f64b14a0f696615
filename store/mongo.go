package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"farmgate/db"
	"farmgate/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Mongo implements every store port over the marketplace collections.
type Mongo struct {
	products   *mongo.Collection
	orders     *mongo.Collection
	deliveries *mongo.Collection
	users      *mongo.Collection
}

var (
	_ ProductStore  = (*Mongo)(nil)
	_ OrderStore    = (*Mongo)(nil)
	_ DeliveryStore = (*Mongo)(nil)
	_ UserStore     = (*Mongo)(nil)
)

func NewMongo(d *db.DB) *Mongo {
	return &Mongo{
		products:   d.ProductCollection,
		orders:     d.OrderCollection,
		deliveries: d.DeliveryCollection,
		users:      d.UserCollection,
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

func now() time.Time { return time.Now().UTC() }

// ---- products ----

func (m *Mongo) CreateProduct(ctx context.Context, p *models.Product) error {
	_, err := m.products.InsertOne(ctx, p)
	return translate(err)
}

func (m *Mongo) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := m.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (m *Mongo) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, error) {
	filter := bson.M{}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.Farmer != "" {
		filter["farmer"] = f.Farmer
	}
	if f.Search != "" {
		filter["name"] = bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}}
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if f.Limit > 0 {
		findOptions.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		findOptions.SetSkip(f.Offset)
	}

	cursor, err := m.products.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	items := []models.Product{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (m *Mongo) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := m.products.UpdateOne(ctx, bson.M{"_id": p.ID}, bson.M{"$set": bson.M{
		"name":      p.Name,
		"category":  p.Category,
		"price":     p.Price,
		"image":     p.Image,
		"updatedAt": p.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteProduct(ctx context.Context, id string) error {
	res, err := m.products.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementStock is a single conditional update: the stock guard and the
// decrement are evaluated by the server together.
func (m *Mongo) DecrementStock(ctx context.Context, productID string, amount int) error {
	filter := bson.M{
		"_id":   productID,
		"stock": bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"stock": -amount},
		"$set": bson.M{"updatedAt": now()},
	}
	res, err := m.products.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := m.products.CountDocuments(ctx, bson.M{"_id": productID})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrInsufficientStock
}

func (m *Mongo) IncrementStock(ctx context.Context, productID string, amount int) error {
	res, err := m.products.UpdateOne(ctx, bson.M{"_id": productID}, bson.M{
		"$inc": bson.M{"stock": amount},
		"$set": bson.M{"updatedAt": now()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- orders ----

func (m *Mongo) CreateOrder(ctx context.Context, o *models.Order) error {
	_, err := m.orders.InsertOne(ctx, o)
	return translate(err)
}

func (m *Mongo) findOrder(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*models.Order, error) {
	var o models.Order
	if err := m.orders.FindOne(ctx, filter, opts...).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (m *Mongo) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return m.findOrder(ctx, bson.M{"_id": id})
}

func (m *Mongo) FindOrderByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	return m.findOrder(ctx, bson.M{"paymentIntentId": intentID})
}

func (m *Mongo) FindCart(ctx context.Context, buyer string) (*models.Order, error) {
	filter := bson.M{
		"buyer":         buyer,
		"status":        models.OrderPending,
		"paymentMethod": models.PaymentNone,
		"stockReserved": false,
	}
	return m.findOrder(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
}

func (m *Mongo) listOrders(ctx context.Context, filter bson.M) ([]models.Order, error) {
	cursor, err := m.orders.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (m *Mongo) ListOrdersByBuyer(ctx context.Context, buyer string) ([]models.Order, error) {
	return m.listOrders(ctx, bson.M{"buyer": buyer})
}

func (m *Mongo) ListOrdersByFarmer(ctx context.Context, farmer string) ([]models.Order, error) {
	return m.listOrders(ctx, bson.M{"products.farmer": farmer})
}

func (m *Mongo) ListAssignableOrders(ctx context.Context) ([]models.Order, error) {
	return m.listOrders(ctx, bson.M{"status": models.OrderConfirmed, "isDeliveryAssigned": false})
}

func (m *Mongo) updateOrder(ctx context.Context, filter, set bson.M) (bool, error) {
	set["updatedAt"] = now()
	res, err := m.orders.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (m *Mongo) SaveCart(ctx context.Context, id string, items []models.LineItem, total models.Money) error {
	ok, err := m.updateOrder(ctx,
		bson.M{"_id": id, "status": models.OrderPending},
		bson.M{"products": items, "totalPrice": total},
	)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) SetStatus(ctx context.Context, id string, status models.OrderStatus) error {
	ok, err := m.updateOrder(ctx, bson.M{"_id": id}, bson.M{"status": status})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) (bool, error) {
	return m.updateOrder(ctx, bson.M{"_id": id, "status": from}, bson.M{"status": to})
}

func (m *Mongo) SetStockReserved(ctx context.Context, id string, reserved bool) error {
	ok, err := m.updateOrder(ctx, bson.M{"_id": id}, bson.M{"stockReserved": reserved})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) MarkPaid(ctx context.Context, intentID string) (*models.Order, error) {
	filter := bson.M{
		"paymentIntentId": intentID,
		"paymentStatus":   bson.M{"$ne": models.PaymentPaid},
		"status":          bson.M{"$ne": models.OrderCancelled},
	}
	// pipeline form so that only a pending order is promoted to confirmed
	update := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"paymentStatus": models.PaymentPaid,
		"status": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{"$status", models.OrderPending}},
			models.OrderConfirmed,
			"$status",
		}},
		"updatedAt": now(),
	}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var o models.Order
	if err := m.orders.FindOneAndUpdate(ctx, filter, update, opts).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (m *Mongo) MarkPaymentFailed(ctx context.Context, intentID string) (bool, error) {
	return m.updateOrder(ctx,
		bson.M{"paymentIntentId": intentID, "paymentStatus": models.PaymentPending},
		bson.M{"paymentStatus": models.PaymentFailed},
	)
}

func (m *Mongo) ClaimForDelivery(ctx context.Context, id string) (*models.Order, error) {
	filter := bson.M{"_id": id, "status": models.OrderConfirmed, "isDeliveryAssigned": false}
	update := bson.M{"$set": bson.M{"isDeliveryAssigned": true, "updatedAt": now()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var o models.Order
	if err := m.orders.FindOneAndUpdate(ctx, filter, update, opts).Decode(&o); err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (m *Mongo) ReleaseDeliveryClaim(ctx context.Context, id string) error {
	ok, err := m.updateOrder(ctx, bson.M{"_id": id}, bson.M{"isDeliveryAssigned": false})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ---- deliveries ----

func (m *Mongo) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	d.Active = d.Status.Active()
	_, err := m.deliveries.InsertOne(ctx, d)
	return translate(err)
}

func (m *Mongo) GetDelivery(ctx context.Context, id string) (*models.Delivery, error) {
	var d models.Delivery
	if err := m.deliveries.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (m *Mongo) FindActiveDelivery(ctx context.Context, agent string) (*models.Delivery, error) {
	var d models.Delivery
	if err := m.deliveries.FindOne(ctx, bson.M{"deliveryAgent": agent, "active": true}).Decode(&d); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (m *Mongo) UpdateDeliveryStatus(ctx context.Context, id string, status models.DeliveryStatus, deliveredAt *time.Time) error {
	set := bson.M{
		"status":    status,
		"active":    status.Active(),
		"updatedAt": now(),
	}
	if deliveredAt != nil {
		set["deliveryDate"] = *deliveredAt
	}
	res, err := m.deliveries.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) DeleteDelivery(ctx context.Context, id string) error {
	res, err := m.deliveries.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- users ----

func (m *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	_, err := m.users.InsertOne(ctx, u)
	return translate(err)
}

func (m *Mongo) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := m.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (m *Mongo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := m.users.FindOne(ctx, bson.M{"username": username}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}
