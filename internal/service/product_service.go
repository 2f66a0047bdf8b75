package service

import (
	"context"
	"errors"

	"github.com/sakashimaa/shoe-shop/internal/domain"
	"github.com/sakashimaa/shoe-shop/internal/repository"
	"github.com/sakashimaa/shoe-shop/pkg/mylogger"
	"go.uber.org/zap"
)

type ProductService interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error)
	Update(ctx context.Context, id int64, input *domain.UpdateProductInput) (*domain.Product, error)
	Evict(ctx context.Context, ids ...int64) error
}

type productService struct {
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

func NewProductService(productRepo repository.ProductRepository, logger *zap.Logger) ProductService {
	return &productService{
		productRepo: productRepo,
		logger:      logger,
	}
}

func (s *productService) Create(ctx context.Context, product *domain.Product) error {
	if product.Price.IsNegative() {
		return invalidRequest("Price must not be negative")
	}
	if product.Stock < 0 {
		return invalidRequest("Stock must not be negative")
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		mylogger.Error(ctx, s.logger, "Failed to create product", zap.String("name", product.Name), zap.Error(err))
		return err
	}

	mylogger.Info(ctx, s.logger, "Product created", zap.Int64("product_id", product.ID))
	return nil
}

func (s *productService) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, notFound("Product not found")
		}

		return nil, err
	}

	return product, nil
}

func (s *productService) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.productRepo.List(ctx, limit, offset, search)
}

func (s *productService) Update(ctx context.Context, id int64, input *domain.UpdateProductInput) (*domain.Product, error) {
	if input.Price != nil && input.Price.IsNegative() {
		return nil, invalidRequest("Price must not be negative")
	}
	if input.Stock != nil && *input.Stock < 0 {
		return nil, invalidRequest("Stock must not be negative")
	}

	product, err := s.productRepo.Update(ctx, id, input)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, notFound("Product not found")
		}

		mylogger.Error(ctx, s.logger, "Failed to update product", zap.Int64("product_id", id), zap.Error(err))
		return nil, err
	}

	return product, nil
}

func (s *productService) Evict(_ context.Context, _ ...int64) error {
	return nil
}
