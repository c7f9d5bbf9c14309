package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reserrors "courtside/internal/reservations/errors"
	"courtside/pkg/config"
	"courtside/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	PrincipalCollectionName = "principals"
)

type mongoPrincipalRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// PrincipalRepository resolves principal identifiers to roles.
// Authentication happens upstream; an identifier missing here means the
// caller is not a known member at all.
type PrincipalRepository interface {
	RoleOf(ctx context.Context, id string) (model.Role, error)
}

func NewMongoPrincipalRepository(cfg *config.Config) PrincipalRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoPrincipalRepository{
		cfg:        cfg,
		collection: db.Collection(PrincipalCollectionName),
	}
}

func (r *mongoPrincipalRepository) RoleOf(ctx context.Context, id string) (model.Role, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var principal model.Principal
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&principal)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("%w: %s", reserrors.ErrUnknownPrincipal, id)
		}
		return "", fmt.Errorf("failed to resolve principal: %w", err)
	}

	return principal.Role, nil
}

func (r *mongoPrincipalRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
