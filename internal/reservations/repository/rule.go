package repository

import (
	"context"
	"fmt"
	"time"

	"courtside/pkg/config"
	"courtside/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	RuleCollectionName = "booking_rules"
)

type mongoRuleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// RuleRepository reads the duration rules that cap non-privileged bookings.
// Rules are written by an admin tool, never by this service.
type RuleRepository interface {
	Active(ctx context.Context) ([]*model.BookingRule, error)
}

func NewMongoRuleRepository(cfg *config.Config) RuleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoRuleRepository{
		cfg:        cfg,
		collection: db.Collection(RuleCollectionName),
	}
}

func (r *mongoRuleRepository) Active(ctx context.Context) ([]*model.BookingRule, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{"active": true})
	if err != nil {
		return nil, fmt.Errorf("failed to find active booking rules: %w", err)
	}
	defer cursor.Close(ctx)

	var rules []*model.BookingRule
	if err = cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode booking rules: %w", err)
	}

	return rules, nil
}

func (r *mongoRuleRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
