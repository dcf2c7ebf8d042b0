// Package prompt builds the instructions sent to the completion service.
// Each builder demands one JSON shape; the matching mapper lives in
// internal/response. Keep the two in sync.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type UseCase string

const (
	UseCaseMenuSuggestion    UseCase = "menu-suggestion"
	UseCaseDetail            UseCase = "detail"
	UseCaseSearch            UseCase = "search"
	UseCaseQuick             UseCase = "quick"
	UseCaseReceiptExtraction UseCase = "receipt-extraction"
)

type Prompt struct {
	UseCase UseCase
	Text    string
}

// menuSize is how many dishes the suggestion prompt asks for.
const menuSize = 4

const detailSchema = `{
  "food": string,
  "food_en": string,
  "use_ingredients": [{"name": string, "amount": string}, ...],
  "steps": [string, ...],
  "tip": string
}`

const jsonOnly = `Output only the JSON body. No explanation, no markdown, no code fences.`

// Suggestion asks for menuSize dishes that make the most of the pantry.
func Suggestion(ingredients []string) Prompt {
	text := fmt.Sprintf(`You are a professional chef. Suggest exactly %d dishes that make the most of the ingredients the user has.

Available ingredients:
%s

Rules:
- %s
- The root must be {"recipes": [...]} and the array must hold exactly %d items.
- Every item must contain:
  - "food": string, a real, commonly known dish name in Korean.
  - "food_en": string, the same dish name in English.
  - "use_ingredients": array of strings, only ingredients taken from the list above.
  - "difficulty": integer from 1 to 5.
- Do not list basic seasonings (salt, sugar, soy sauce, ...) in "use_ingredients".
- Avoid duplicate or near-duplicate dishes and vary the cooking method.
- If any item cannot be used as food, return {"error": "<reason>"} instead.

Example:
{
  "recipes": [
    {"food": "참치 토마토 오픈 샌드위치", "food_en": "Tuna Tomato Open Sandwich", "use_ingredients": ["빵", "참치", "토마토"], "difficulty": 2},
    {"food": "오징어 볶음 스파게티", "food_en": "Stir-fried Squid Spaghetti", "use_ingredients": ["오징어", "토마토"], "difficulty": 4}
  ]
}`, menuSize, quote(ingredients), jsonOnly, menuSize)

	return Prompt{UseCase: UseCaseMenuSuggestion, Text: text}
}

// Recipe asks for the full recipe of a dish picked from a suggestion.
func Recipe(food string, ingredients []string) Prompt {
	text := fmt.Sprintf(`You are a professional chef. Write the detailed recipe for the requested dish as JSON.

Requested dish: %s
Available ingredients: %s

Rules:
- Write the recipe for %s only.
- "use_ingredients" may only contain the available ingredients; every entry has "name" and "amount".
- "steps" must have at least 3 clear, short steps.
- "food_en" is the dish name in English.
- %s

Schema:
%s`, quote(food), quote(ingredients), quote(food), jsonOnly, detailSchema)

	return Prompt{UseCase: UseCaseDetail, Text: text}
}

// Search asks for the canonical recipe of a dish named by the user.
func Search(foodName string) Prompt {
	text := fmt.Sprintf(`You are a cooking expert. Give an accurate recipe for the dish named below as JSON.

Dish name: %s

Rules:
- The recipe must be for exactly this dish.
- "steps" must have at least 3 steps.
- "food_en" is the dish name in English.
- %s

If the input is not a dish or you do not know it, output:
{"error": "정확한 음식명을 입력해 주세요."}

Schema:
%s`, quote(strings.TrimSpace(foodName)), jsonOnly, detailSchema)

	return Prompt{UseCase: UseCaseSearch, Text: text}
}

// Quick picks the single best dish for a free-text list of ingredients.
func Quick(chat string) Prompt {
	text := fmt.Sprintf(`You are a cooking expert. Recommend the single best dish that can be made from the user's input and give its detailed recipe as JSON.

User input: %s

Rules:
- Do not use main ingredients that are not in the input (basic seasonings are fine).
- "steps" must have at least 3 steps.
- "food_en" is the dish name in English.
- If the input has nothing to do with food, output {"error": "<reason>"}.
- %s

Schema:
%s`, quote(strings.TrimSpace(chat)), jsonOnly, detailSchema)

	return Prompt{UseCase: UseCaseQuick, Text: text}
}

// ReceiptExtraction turns raw receipt OCR text into ingredient names.
func ReceiptExtraction(ocrText string) Prompt {
	text := fmt.Sprintf(`You analyze grocery receipts. The text below was read from a receipt by OCR.
Extract only the items that are food ingredients and return them as JSON.

OCR text:
%s

Rules:
1. Ignore store names, addresses, phone numbers, prices, payment details, dates, bags and discounts.
2. Keep only ingredient names usable for cooking (e.g. "콩나물 1봉" -> "콩나물", "서울우유 1L" -> "우유").
3. Drop quantities and sizes; keep just the name.
4. If there are no ingredients, return an empty array.
5. %s

Schema:
{"ingredients": [string, ...]}

Example:
{"ingredients": ["삼겹살", "상추", "쌈장", "마늘"]}`, quote(strings.TrimSpace(ocrText)), jsonOnly)

	return Prompt{UseCase: UseCaseReceiptExtraction, Text: text}
}

// quote JSON-encodes v without HTML escaping so Korean and '&' stay readable.
func quote(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSpace(buf.String())
}
