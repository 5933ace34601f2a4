package services

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ersonp/menu-core/internal/domain/entities"
	"github.com/ersonp/menu-core/internal/domain/ports"
)

// RestaurantService manages restaurants.
type RestaurantService struct {
	db ports.RelationalDB
}

// NewRestaurantService creates a new RestaurantService.
func NewRestaurantService(db ports.RelationalDB) *RestaurantService {
	return &RestaurantService{db: db}
}

// Create stores a new active restaurant.
func (s *RestaurantService) Create(ctx context.Context, r entities.Restaurant) (*entities.Restaurant, error) {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return nil, entities.ValidationErrorf("restaurant name is required")
	}
	r.ID = 0
	r.IsActive = true

	if err := s.db.CreateRestaurant(ctx, &r); err != nil {
		return nil, errors.Wrap(err, "creating restaurant")
	}
	return &r, nil
}

// Get returns a restaurant by id.
func (s *RestaurantService) Get(ctx context.Context, id int64) (*entities.Restaurant, error) {
	r, err := s.db.FindRestaurant(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "finding restaurant %d", id)
	}
	if r == nil {
		return nil, entities.NotFoundErrorf("restaurant %d not found", id)
	}
	return r, nil
}

// List returns every restaurant.
func (s *RestaurantService) List(ctx context.Context) ([]entities.Restaurant, error) {
	return s.db.ListRestaurants(ctx)
}

// Menu lists the items of one restaurant.
func (s *RestaurantService) Menu(ctx context.Context, id int64) ([]entities.MenuItem, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.db.ListMenuItems(ctx, ports.MenuItemFilter{RestaurantID: &id})
}
