package service

import (
	"context"

	"harshuu/pkg/geo"
	"harshuu/pkg/logger"
	"harshuu/pkg/models"
	"harshuu/pkg/money"
	"harshuu/storage"
)

// ItemRequest is a candidate line item before the price snapshot is taken.
type ItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

// Quote is a fully priced prospective order: the immutable item snapshot
// plus the invoice breakdown.
type Quote struct {
	Items   []models.OrderItem `json:"items"`
	Pricing models.Pricing     `json:"pricing"`
}

type PricingService interface {
	PriceOrder(ctx context.Context, restaurantID string, items []ItemRequest, dropLat, dropLng float64) (*Quote, error)
}

type pricingService struct {
	restaurants storage.IRestaurantStorage
	menu        storage.IMenuStorage
	settings    storage.ISettingsStorage
	log         logger.ILogger
}

func NewPricingService(stg storage.IStorage, log logger.ILogger) PricingService {
	return &pricingService{
		restaurants: stg.Restaurant(),
		menu:        stg.Menu(),
		settings:    stg.Settings(),
		log:         log,
	}
}

// PriceOrder validates the candidate items against the live menu, snapshots
// their prices and computes the invoice. Every monetary step is rounded to
// 2 decimals as it happens; the rounding order is part of the contract and
// keeps totals identical to historical invoices.
func (s *pricingService) PriceOrder(ctx context.Context, restaurantID string, items []ItemRequest, dropLat, dropLng float64) (*Quote, error) {
	if len(items) == 0 {
		return nil, ErrInvalidLineItem
	}

	restaurant, err := s.restaurants.GetByID(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.MenuItemID)
	}
	menu, err := s.menu.GetItems(ctx, restaurantID, ids)
	if err != nil {
		return nil, err
	}

	snapshot := make([]models.OrderItem, 0, len(items))
	itemTotal := 0.0
	for _, it := range items {
		m, ok := menu[it.MenuItemID]
		if !ok || !m.Available || it.Quantity < 1 {
			return nil, ErrInvalidLineItem
		}
		lineTotal := money.Round2(m.Price * float64(it.Quantity))
		snapshot = append(snapshot, models.OrderItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			UnitPrice:  m.Price,
			Quantity:   it.Quantity,
			LineTotal:  lineTotal,
		})
		itemTotal = money.Round2(itemTotal + lineTotal)
	}

	if itemTotal < settings.MinOrderValue {
		return nil, ErrBelowMinimumOrder
	}

	distanceKm, err := geo.Distance(restaurant.Lat, restaurant.Lng, dropLat, dropLng)
	if err != nil {
		return nil, err
	}

	radius := restaurant.DeliveryRadiusKm
	if settings.MaxDeliveryRadiusKm > 0 && settings.MaxDeliveryRadiusKm < radius {
		radius = settings.MaxDeliveryRadiusKm
	}
	if distanceKm > radius {
		return nil, ErrOutOfDeliveryRadius
	}

	baseFee := money.Round2(settings.BaseDeliveryFee + distanceKm*settings.PerKmRate)

	deliveryFee := baseFee
	surgeFee := 0.0
	if settings.SurgeActive {
		deliveryFee = money.Round2(baseFee * settings.SurgeMultiplier)
		surgeFee = money.Round2(deliveryFee - baseFee)
	}

	commission := money.Round2(itemTotal * settings.CommissionPercent / 100)

	// Tax is levied on the platform-service components only, not on food.
	tax := money.Round2((deliveryFee + commission) * settings.TaxPercent / 100)

	grandTotal := money.Round2(itemTotal + deliveryFee + tax)

	restaurantPayout := money.Round2(itemTotal - commission)

	return &Quote{
		Items: snapshot,
		Pricing: models.Pricing{
			ItemTotal:        itemTotal,
			BaseDeliveryFee:  baseFee,
			SurgeFee:         surgeFee,
			DeliveryFee:      deliveryFee,
			Commission:       commission,
			Tax:              tax,
			Discount:         0,
			GrandTotal:       grandTotal,
			RestaurantPayout: restaurantPayout,
			DistanceKm:       distanceKm,
		},
	}, nil
}
