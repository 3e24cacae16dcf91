package models

import "time"

// ProductMapping binds a product name as it appears in ingested orders to an
// internal recipe. HemenyoldaName is matched case-sensitively.
type ProductMapping struct {
	ID             string `bson:"id" json:"id"`
	HemenyoldaName string `bson:"hemenyoldaName" json:"hemenyoldaName"`
	RecipeID       string `bson:"recipeId" json:"recipeId"`
	RecipeName     string `bson:"recipeName" json:"recipeName"`
}

// Settings holds operator configuration persisted alongside the orders.
type Settings struct {
	APIToken       string `bson:"apiToken,omitempty" json:"apiToken,omitempty"`
	RestaurantName string `bson:"restaurantName,omitempty" json:"restaurantName,omitempty"`
}

// Connected reports whether a remote credential is configured.
func (s Settings) Connected() bool {
	return s.APIToken != ""
}

// StoreState is the single blob persisted after every store mutation.
type StoreState struct {
	Settings Settings         `bson:"settings" json:"settings"`
	Orders   []Order          `bson:"orders" json:"orders"`
	Mappings []ProductMapping `bson:"mappings" json:"mappings"`
	LastSync *time.Time       `bson:"lastSync,omitempty" json:"lastSync,omitempty"`
}
