package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/oakmart/api/internal/domain"
	pfirestore "github.com/oakmart/api/internal/platform/firestore"
	"github.com/oakmart/api/internal/repositories"
)

const shippingProfilesCollection = "shippingProfiles"

// ShippingProfileRepository resolves shipping profiles stored in Firestore.
type ShippingProfileRepository struct {
	base *pfirestore.BaseRepository[shippingProfileDocument]
}

// NewShippingProfileRepository constructs a Firestore-backed shipping profile repository.
func NewShippingProfileRepository(provider *pfirestore.Provider) (*ShippingProfileRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping profile repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[shippingProfileDocument](
		provider,
		shippingProfilesCollection,
		nil,
		nil,
	)
	return &ShippingProfileRepository{base: base}, nil
}

// FindByID loads a single shipping profile.
func (r *ShippingProfileRepository) FindByID(ctx context.Context, profileID string) (domain.ShippingProfile, error) {
	id := strings.TrimSpace(profileID)
	if id == "" {
		return domain.ShippingProfile{}, errors.New("shipping profile repository: id is required")
	}
	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.ShippingProfile{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByProduct resolves the profile whose product list contains the given id.
func (r *ShippingProfileRepository) FindByProduct(ctx context.Context, productID string) (domain.ShippingProfile, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.ShippingProfile{}, errors.New("shipping profile repository: product id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("productIds", "array-contains", id).Limit(1)
	})
	if err != nil {
		return domain.ShippingProfile{}, err
	}
	if len(docs) == 0 {
		return domain.ShippingProfile{}, pfirestore.WrapError(
			"shippingProfiles.findByProduct",
			status.Errorf(codes.NotFound, "no shipping profile covers product %s", id),
		)
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

type shippingProfileDocument struct {
	Name       string    `firestore:"name"`
	ProviderID string    `firestore:"providerId"`
	ProductIDs []string  `firestore:"productIds"`
	CreatedAt  time.Time `firestore:"createdAt"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

func (d shippingProfileDocument) toDomain(id string) domain.ShippingProfile {
	return domain.ShippingProfile{
		ID:         id,
		Name:       d.Name,
		ProviderID: d.ProviderID,
		ProductIDs: d.ProductIDs,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

var _ repositories.ShippingProfileRepository = (*ShippingProfileRepository)(nil)
