package catalog

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/apperr"
	"github.com/ibnuhabibr/kitversity-pm2-sub000/internal/validation"
)

type Service struct {
	Store Store
	Log   *zap.Logger
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	p := &Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
		Categories:  req.Categories,
		Variants:    req.Variants,
	}
	if err := s.Store.Create(ctx, p); err != nil {
		return nil, err
	}
	s.log().Info("product created", zap.Int64("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.Store.FindByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.Store.FindAll(ctx)
}

func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (*Product, error) {
	if req.Name != nil {
		n := strings.TrimSpace(*req.Name)
		req.Name = &n
	}
	if err := validation.Struct(&req); err != nil {
		return nil, err
	}
	p, err := s.Store.Update(ctx, id, req)
	if err != nil {
		return nil, err
	}
	s.log().Info("product updated", zap.Int64("product_id", id))
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	ok, err := s.Store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNotFound
	}
	s.log().Info("product deleted", zap.Int64("product_id", id))
	return nil
}

// Seed inserts the default catalog when the store holds no products.
func (s *Service) Seed(ctx context.Context) (int, error) {
	n, err := s.Store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	seeded := 0
	for _, p := range SeedProducts() {
		p := p
		if err := s.Store.Create(ctx, &p); err != nil {
			return seeded, err
		}
		seeded++
	}
	s.log().Info("catalog seeded", zap.Int("products", seeded))
	return seeded, nil
}
