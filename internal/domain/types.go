package domain

import "time"

type Ingredient struct {
	ID             int64
	UserID         string
	Name           string
	PurchaseDate   time.Time
	ExpirationDate *time.Time
	StorageType    *string
	CreatedAt      time.Time
}

// RecommendationItem is one dish suggested from the user's pantry. FoodEN is
// only used as the image search query.
type RecommendationItem struct {
	Food           string   `json:"food"`
	FoodEN         string   `json:"food_en"`
	UseIngredients []string `json:"use_ingredients"`
	Difficulty     int      `json:"difficulty"`
	ImageURL       *string  `json:"image_url"`
}

type Menu struct {
	Recipes []RecommendationItem `json:"recipes"`
}

type IngredientAmount struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type DetailRecipe struct {
	Food           string             `json:"food"`
	FoodEN         *string            `json:"food_en"`
	UseIngredients []IngredientAmount `json:"use_ingredients"`
	Steps          []string           `json:"steps"`
	Tip            string             `json:"tip"`
	ImageURL       *string            `json:"image_url"`
}

// ImageQuery is the term used to look up a photo for the recipe.
func (r *DetailRecipe) ImageQuery() string {
	if r.FoodEN != nil && *r.FoodEN != "" {
		return *r.FoodEN
	}
	return r.Food
}

type ReceiptIngredients struct {
	Ingredients []string `json:"ingredients"`
}
