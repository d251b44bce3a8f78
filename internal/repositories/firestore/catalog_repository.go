package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"

	domain "github.com/solebound/api/internal/domain"
	pfirestore "github.com/solebound/api/internal/platform/firestore"
	"github.com/solebound/api/internal/platform/textutil"
	"github.com/solebound/api/internal/repositories"
)

const productCollection = "products"

// CatalogRepository persists product documents in Firestore.
type CatalogRepository struct {
	base     *pfirestore.BaseRepository[productDocument]
	provider *pfirestore.Provider
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &CatalogRepository{
		base:     base,
		provider: provider,
	}, nil
}

// Insert writes the product document keyed by its identifier.
func (r *CatalogRepository) Insert(ctx context.Context, product domain.Product) error {
	if r == nil || r.base == nil {
		return errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("catalog repository: product id is required")
	}
	if _, err := r.base.Set(ctx, id, newProductDocument(product)); err != nil {
		return err
	}
	return nil
}

// FindByID loads a single product by identifier.
func (r *CatalogRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	doc, err := r.base.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns products matching the filter. Equality and range constraints run
// on the backend; the free-text query folds case and scans name, brand,
// description, and tags, stopping once the limit is satisfied.
func (r *CatalogRepository) List(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return nil, err
	}

	query := coll.Query
	if filter.InStockOnly {
		query = query.Where("inStock", "==", true)
	}
	if filter.Brand != nil {
		query = query.Where("brandKey", "==", textutil.SearchKey(*filter.Brand))
	}
	if filter.Style != nil {
		query = query.Where("styleKey", "==", textutil.SearchKey(*filter.Style))
	}
	if filter.Size != nil {
		query = query.Where("sizes", "array-contains", *filter.Size)
	}
	if filter.MinPrice != nil {
		query = query.Where("price", ">=", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		query = query.Where("price", "<=", *filter.MaxPrice)
	}

	search := ""
	if filter.Query != nil {
		search = strings.TrimSpace(*filter.Query)
	}
	if search == "" && filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var results []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("products.list", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		product := doc.toDomain(snap.Ref.ID)
		if search != "" && !matchesSearch(product, search) {
			continue
		}
		results = append(results, product)
		if filter.Limit > 0 && len(results) >= filter.Limit {
			break
		}
	}
	return results, nil
}

// Count reports the number of product documents using a server-side aggregation.
func (r *CatalogRepository) Count(ctx context.Context) (int64, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return 0, err
	}

	results, err := coll.Query.NewAggregationQuery().WithCount("count").Get(ctx)
	if err != nil {
		return 0, pfirestore.WrapError("products.count", err)
	}
	raw, ok := results["count"]
	if !ok {
		return 0, errors.New("catalog repository: count aggregation returned no result")
	}
	value, ok := raw.(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("catalog repository: unexpected count result type %T", raw)
	}
	return value.GetIntegerValue(), nil
}

// UpdateRating stores the recomputed rating summary on the product document.
func (r *CatalogRepository) UpdateRating(ctx context.Context, productID string, rating domain.RatingSummary, updatedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("catalog repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return errors.New("catalog repository: product id is required")
	}

	updates := []firestore.Update{
		{Path: "rating.average", Value: rating.Average},
		{Path: "rating.count", Value: rating.Count},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	}
	if _, err := r.base.Update(ctx, id, updates); err != nil {
		return err
	}
	return nil
}

func (r *CatalogRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(productCollection), nil
}

func matchesSearch(product domain.Product, search string) bool {
	if textutil.ContainsFold(product.Name, search) {
		return true
	}
	if textutil.ContainsFold(product.Brand, search) {
		return true
	}
	if textutil.ContainsFold(product.Description, search) {
		return true
	}
	return textutil.AnyContainsFold(product.Tags, search)
}

func newProductDocument(product domain.Product) productDocument {
	return productDocument{
		Name:        strings.TrimSpace(product.Name),
		Brand:       strings.TrimSpace(product.Brand),
		Description: strings.TrimSpace(product.Description),
		Price:       product.Price,
		Sizes:       append([]int(nil), product.Sizes...),
		Style:       strings.TrimSpace(product.Style),
		Images:      append([]string(nil), product.Images...),
		InStock:     product.InStock,
		StockBySize: cloneIntMap(product.StockBySize),
		Rating: ratingDocument{
			Average: product.Rating.Average,
			Count:   product.Rating.Count,
		},
		Tags:      append([]string(nil), product.Tags...),
		BrandKey:  textutil.SearchKey(product.Brand),
		StyleKey:  textutil.SearchKey(product.Style),
		CreatedAt: product.CreatedAt.UTC(),
		UpdatedAt: product.UpdatedAt.UTC(),
	}
}

type productDocument struct {
	Name        string         `firestore:"name"`
	Brand       string         `firestore:"brand"`
	Description string         `firestore:"description,omitempty"`
	Price       float64        `firestore:"price"`
	Sizes       []int          `firestore:"sizes"`
	Style       string         `firestore:"style,omitempty"`
	Images      []string       `firestore:"images,omitempty"`
	InStock     bool           `firestore:"inStock"`
	StockBySize map[string]int `firestore:"stockBySize,omitempty"`
	Rating      ratingDocument `firestore:"rating"`
	Tags        []string       `firestore:"tags,omitempty"`
	BrandKey    string         `firestore:"brandKey"`
	StyleKey    string         `firestore:"styleKey,omitempty"`
	CreatedAt   time.Time      `firestore:"createdAt"`
	UpdatedAt   time.Time      `firestore:"updatedAt"`
}

type ratingDocument struct {
	Average float64 `firestore:"average"`
	Count   int     `firestore:"count"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		Brand:       d.Brand,
		Description: d.Description,
		Price:       d.Price,
		Sizes:       append([]int(nil), d.Sizes...),
		Style:       d.Style,
		Images:      append([]string(nil), d.Images...),
		InStock:     d.InStock,
		StockBySize: cloneIntMap(d.StockBySize),
		Rating: domain.RatingSummary{
			Average: d.Rating.Average,
			Count:   d.Rating.Count,
		},
		Tags:      append([]string(nil), d.Tags...),
		BrandKey:  d.BrandKey,
		StyleKey:  d.StyleKey,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func cloneIntMap(values map[string]int) map[string]int {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]int, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}

var _ repositories.CatalogRepository = (*CatalogRepository)(nil)
