package models

type Restaurant struct {
	ID               string  `json:"id"`
	OwnerID          string  `json:"owner_id"`
	Name             string  `json:"name"`
	Approved         bool    `json:"approved"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	DeliveryRadiusKm float64 `json:"delivery_radius_km"`
}

type MenuItem struct {
	ID           string  `json:"id"`
	RestaurantID string  `json:"restaurant_id"`
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Available    bool    `json:"available"`
}
