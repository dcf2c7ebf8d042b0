package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vbonduro/domeok/internal/domain"
)

// Shape selects the contract a parsed reply is checked against.
type Shape int

const (
	ShapeMenuList Shape = iota + 1
	ShapeDetail
	ShapeIngredientList
)

func (s Shape) String() string {
	switch s {
	case ShapeMenuList:
		return "menu-list"
	case ShapeDetail:
		return "detail"
	case ShapeIngredientList:
		return "ingredient-list"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

const (
	minDifficulty = 1
	maxDifficulty = 5
	minSteps      = 3
)

// Result holds exactly one mapped value, the one named by Shape.
type Result struct {
	Shape       Shape
	Menu        *domain.Menu
	Detail      *domain.DetailRecipe
	Ingredients *domain.ReceiptIngredients
}

// Map checks v against shape and converts it. Any missing field, wrong type
// or out-of-range value is a SchemaMismatch whose cause names the field.
func Map(v any, shape Shape) (*Result, error) {
	switch shape {
	case ShapeMenuList:
		m, err := mapMenu(v)
		if err != nil {
			return nil, mismatch(shape, err)
		}
		return &Result{Shape: shape, Menu: m}, nil
	case ShapeDetail:
		d, err := mapDetail(v)
		if err != nil {
			return nil, mismatch(shape, err)
		}
		return &Result{Shape: shape, Detail: d}, nil
	case ShapeIngredientList:
		in, err := mapIngredients(v)
		if err != nil {
			return nil, mismatch(shape, err)
		}
		return &Result{Shape: shape, Ingredients: in}, nil
	default:
		return nil, fmt.Errorf("unknown shape %d", int(shape))
	}
}

func MapMenu(v any) (*domain.Menu, error) {
	r, err := Map(v, ShapeMenuList)
	if err != nil {
		return nil, err
	}
	return r.Menu, nil
}

func MapDetail(v any) (*domain.DetailRecipe, error) {
	r, err := Map(v, ShapeDetail)
	if err != nil {
		return nil, err
	}
	return r.Detail, nil
}

func MapIngredients(v any) (*domain.ReceiptIngredients, error) {
	r, err := Map(v, ShapeIngredientList)
	if err != nil {
		return nil, err
	}
	return r.Ingredients, nil
}

func mismatch(shape Shape, err error) error {
	return domain.WrapError(domain.KindSchemaMismatch, "reply does not match the expected format",
		fmt.Errorf("%s: %w", shape, err))
}

// Wire types use pointers so absent fields can be told apart from zero values.

type wireMenu struct {
	Recipes *[]wireMenuItem `json:"recipes"`
}

type wireMenuItem struct {
	Food           *string   `json:"food"`
	FoodEN         *string   `json:"food_en"`
	UseIngredients *[]string `json:"use_ingredients"`
	Difficulty     *int      `json:"difficulty"`
}

type wireDetail struct {
	Food           *string       `json:"food"`
	FoodEN         *string       `json:"food_en"`
	UseIngredients *[]wireAmount `json:"use_ingredients"`
	Steps          *[]string     `json:"steps"`
	Tip            *string       `json:"tip"`
}

type wireAmount struct {
	Name   *string `json:"name"`
	Amount *string `json:"amount"`
}

type wireIngredients struct {
	Ingredients *[]string `json:"ingredients"`
}

func mapMenu(v any) (*domain.Menu, error) {
	var w wireMenu
	if err := decodeInto(v, &w); err != nil {
		return nil, err
	}
	if w.Recipes == nil {
		return nil, errors.New("recipes: field required")
	}
	if len(*w.Recipes) == 0 {
		return nil, errors.New("recipes: must not be empty")
	}

	menu := &domain.Menu{Recipes: make([]domain.RecommendationItem, 0, len(*w.Recipes))}
	for i, it := range *w.Recipes {
		path := fmt.Sprintf("recipes[%d]", i)
		if err := requireText(path+".food", it.Food); err != nil {
			return nil, err
		}
		if it.FoodEN == nil {
			return nil, fmt.Errorf("%s.food_en: field required", path)
		}
		if it.UseIngredients == nil {
			return nil, fmt.Errorf("%s.use_ingredients: field required", path)
		}
		if it.Difficulty == nil {
			return nil, fmt.Errorf("%s.difficulty: field required", path)
		}
		if d := *it.Difficulty; d < minDifficulty || d > maxDifficulty {
			return nil, fmt.Errorf("%s.difficulty: %d is outside %d..%d", path, d, minDifficulty, maxDifficulty)
		}
		menu.Recipes = append(menu.Recipes, domain.RecommendationItem{
			Food:           *it.Food,
			FoodEN:         *it.FoodEN,
			UseIngredients: *it.UseIngredients,
			Difficulty:     *it.Difficulty,
		})
	}
	return menu, nil
}

func mapDetail(v any) (*domain.DetailRecipe, error) {
	var w wireDetail
	if err := decodeInto(v, &w); err != nil {
		return nil, err
	}
	if err := requireText("food", w.Food); err != nil {
		return nil, err
	}
	if w.UseIngredients == nil {
		return nil, errors.New("use_ingredients: field required")
	}
	if w.Steps == nil {
		return nil, errors.New("steps: field required")
	}
	if n := len(*w.Steps); n < minSteps {
		return nil, fmt.Errorf("steps: got %d, need at least %d", n, minSteps)
	}
	if w.Tip == nil {
		return nil, errors.New("tip: field required")
	}

	amounts := make([]domain.IngredientAmount, 0, len(*w.UseIngredients))
	for i, a := range *w.UseIngredients {
		if a.Name == nil {
			return nil, fmt.Errorf("use_ingredients[%d].name: field required", i)
		}
		if a.Amount == nil {
			return nil, fmt.Errorf("use_ingredients[%d].amount: field required", i)
		}
		amounts = append(amounts, domain.IngredientAmount{Name: *a.Name, Amount: *a.Amount})
	}

	return &domain.DetailRecipe{
		Food:           *w.Food,
		FoodEN:         w.FoodEN,
		UseIngredients: amounts,
		Steps:          *w.Steps,
		Tip:            *w.Tip,
	}, nil
}

func mapIngredients(v any) (*domain.ReceiptIngredients, error) {
	var w wireIngredients
	if err := decodeInto(v, &w); err != nil {
		return nil, err
	}
	if w.Ingredients == nil {
		return nil, errors.New("ingredients: field required")
	}

	seen := make(map[string]struct{}, len(*w.Ingredients))
	names := make([]string, 0, len(*w.Ingredients))
	for _, name := range *w.Ingredients {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return &domain.ReceiptIngredients{Ingredients: names}, nil
}

// decodeInto re-encodes a parsed value and decodes it into a wire struct, so
// type errors come back from encoding/json with the offending field named.
func decodeInto(v any, dst any) error {
	if _, ok := v.(map[string]any); !ok {
		return fmt.Errorf("root: expected object, got %T", v)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(dst)
}

func requireText(path string, s *string) error {
	if s == nil {
		return fmt.Errorf("%s: field required", path)
	}
	if strings.TrimSpace(*s) == "" {
		return fmt.Errorf("%s: must not be empty", path)
	}
	return nil
}
