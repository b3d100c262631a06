package controller

import (
	"context"
	"strings"

	"github.com/SakuraBurst/goaltracker/internal/goaltracker/types"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

func validateItem(item *types.MarketplaceItem) error {
	if item.Name == "" {
		return invalid("name is required")
	}
	if !item.Category.Valid() {
		return invalid("category must be one of movies, groceries, food, other")
	}
	if item.TokenCost <= 0 {
		return invalid("token cost must be greater than 0")
	}
	return nil
}

func (c *Controller) CreateItem(ctx context.Context, request *types.CreateItemRequest, userID string) (*types.MarketplaceItem, error) {
	item := &types.MarketplaceItem{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(request.Name),
		Category:    request.Category,
		TokenCost:   request.TokenCost,
		Description: strings.TrimSpace(request.Description),
		CreatedBy:   userID,
		IsAvailable: true,
		CreatedAt:   c.now().UTC(),
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if err := c.marketplaceDatabase.CreateItem(ctx, item); err != nil {
		return nil, errors.Wrap(err, "marketplaceDatabase.CreateItem failed")
	}
	return item, nil
}

func (c *Controller) ListItems(ctx context.Context, category types.ItemCategory) ([]*types.MarketplaceItem, error) {
	if category != "" && !category.Valid() {
		return nil, invalid("unknown category %q", category)
	}
	items, err := c.marketplaceDatabase.ListAvailableItems(ctx, category)
	if err != nil {
		return nil, errors.Wrap(err, "marketplaceDatabase.ListAvailableItems failed")
	}
	return items, nil
}

func (c *Controller) GetItem(ctx context.Context, itemID string) (*types.MarketplaceItem, error) {
	itemID, err := parseID(itemID, "item")
	if err != nil {
		return nil, err
	}
	item, err := c.marketplaceDatabase.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, errors.Wrap(err, "marketplaceDatabase.GetItemByID failed")
	}
	return item, nil
}

// UpdateItem applies the set fields of request. Only the item's creator may update it.
func (c *Controller) UpdateItem(ctx context.Context, itemID string, request *types.UpdateItemRequest, userID string) (*types.MarketplaceItem, error) {
	item, err := c.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.CreatedBy != userID {
		return nil, forbidden("not authorized to update this item")
	}
	if request.Name != nil {
		item.Name = strings.TrimSpace(*request.Name)
	}
	if request.Category != nil {
		item.Category = *request.Category
	}
	if request.TokenCost != nil {
		item.TokenCost = *request.TokenCost
	}
	if request.Description != nil {
		item.Description = strings.TrimSpace(*request.Description)
	}
	if request.IsAvailable != nil {
		item.IsAvailable = *request.IsAvailable
	}
	if err := validateItem(item); err != nil {
		return nil, err
	}
	if err := c.marketplaceDatabase.UpdateItem(ctx, item); err != nil {
		return nil, errors.Wrap(err, "marketplaceDatabase.UpdateItem failed")
	}
	return item, nil
}
