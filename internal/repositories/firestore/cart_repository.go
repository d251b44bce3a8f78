package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/solebound/api/internal/domain"
	pfirestore "github.com/solebound/api/internal/platform/firestore"
	"github.com/solebound/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists cart documents within Firestore. The document ID is
// derived from the owner, so each (owner type, owner id) pair holds at most one
// live cart.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{
		base:     base,
		provider: provider,
	}, nil
}

// FindByOwner loads the live cart for the owner.
func (r *CartRepository) FindByOwner(ctx context.Context, owner domain.CartOwner) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	cartID, err := cartDocumentID(owner)
	if err != nil {
		return domain.Cart{}, err
	}

	doc, err := r.base.Get(ctx, cartID)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID, doc.UpdateTime), nil
}

// Upsert writes the full cart document keyed by its owner. When expectedUpdate
// is provided the write is guarded by the document's last update time so a
// concurrent mutation surfaces as a conflict instead of a silent overwrite.
func (r *CartRepository) Upsert(ctx context.Context, cart domain.Cart, expectedUpdate *time.Time) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	cartID, err := cartDocumentID(cart.Owner)
	if err != nil {
		return domain.Cart{}, err
	}

	now := time.Now().UTC()
	updatedAt := now
	if !cart.UpdatedAt.IsZero() {
		updatedAt = cart.UpdatedAt.UTC()
	}
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = updatedAt
	}

	doc := newCartDocument(cart, createdAt, updatedAt)

	if expectedUpdate == nil || expectedUpdate.IsZero() {
		result, err := r.base.Set(ctx, cartID, doc)
		if err != nil {
			return domain.Cart{}, err
		}
		saved := doc.toDomain(cartID, result.UpdateTime)
		saved.CreatedAt = createdAt
		return saved, nil
	}

	updates := []firestore.Update{
		{Path: "items", Value: doc.Items},
		{Path: "updatedAt", Value: doc.UpdatedAt},
	}
	result, err := r.base.Update(ctx, cartID, updates, firestore.LastUpdateTime(expectedUpdate.UTC()))
	if err != nil {
		return domain.Cart{}, err
	}
	saved := doc.toDomain(cartID, result.UpdateTime)
	saved.CreatedAt = cart.CreatedAt
	return saved, nil
}

// Delete removes the owner's cart document. Deleting an absent cart is not an error.
func (r *CartRepository) Delete(ctx context.Context, owner domain.CartOwner) error {
	if r == nil || r.provider == nil {
		return errors.New("cart repository not initialised")
	}
	cartID, err := cartDocumentID(owner)
	if err != nil {
		return err
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	if _, err := client.Collection(cartCollection).Doc(cartID).Delete(ctx); err != nil {
		return pfirestore.WrapError("carts.delete", err)
	}
	return nil
}

// cartDocumentID derives the deterministic document identifier for an owner.
func cartDocumentID(owner domain.CartOwner) (string, error) {
	ownerType := strings.TrimSpace(string(owner.Type))
	ownerID := strings.TrimSpace(owner.ID)
	if ownerType == "" || ownerID == "" {
		return "", errors.New("cart repository: owner type and id are required")
	}
	return fmt.Sprintf("%s:%s", ownerType, ownerID), nil
}

func newCartDocument(cart domain.Cart, createdAt, updatedAt time.Time) cartDocument {
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDocument{
			ProductID: strings.TrimSpace(item.ProductID),
			Name:      strings.TrimSpace(item.Name),
			Price:     item.Price,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return cartDocument{
		OwnerType: strings.TrimSpace(string(cart.Owner.Type)),
		OwnerID:   strings.TrimSpace(cart.Owner.ID),
		Items:     items,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

type cartDocument struct {
	OwnerType string             `firestore:"ownerType"`
	OwnerID   string             `firestore:"ownerId"`
	Items     []cartItemDocument `firestore:"items"`
	CreatedAt time.Time          `firestore:"createdAt"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string  `firestore:"productId"`
	Name      string  `firestore:"name"`
	Price     float64 `firestore:"price"`
	Size      int     `firestore:"size"`
	Quantity  int     `firestore:"qty"`
	Image     *string `firestore:"image,omitempty"`
}

func (d cartDocument) toDomain(id string, updateTime time.Time) domain.Cart {
	items := make([]domain.CartItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CartItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Size:      item.Size,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	updatedAt := d.UpdatedAt
	if !updateTime.IsZero() {
		updatedAt = updateTime
	}
	return domain.Cart{
		ID: id,
		Owner: domain.CartOwner{
			Type: domain.OwnerType(d.OwnerType),
			ID:   d.OwnerID,
		},
		Items:     items,
		CreatedAt: d.CreatedAt,
		UpdatedAt: updatedAt,
	}
}

var _ repositories.CartRepository = (*CartRepository)(nil)
