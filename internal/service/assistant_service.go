package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"strings"

	"github.com/vbonduro/domeok/internal/completion"
	"github.com/vbonduro/domeok/internal/domain"
	"github.com/vbonduro/domeok/internal/imagesearch"
	"github.com/vbonduro/domeok/internal/ocr"
	"github.com/vbonduro/domeok/internal/prompt"
	"github.com/vbonduro/domeok/internal/ratelimit"
	"github.com/vbonduro/domeok/internal/response"
)

// pantryReader is the subset of store.IngredientStore the assistant needs.
type pantryReader interface {
	ListNames(ctx context.Context, userID string) ([]string, error)
}

// quotaLimiter is the subset of ratelimit.Limiter the assistant needs.
type quotaLimiter interface {
	CheckAndConsume(ctx context.Context, userID string, action ratelimit.Action, limit int) (int64, error)
	Remaining(ctx context.Context, userID string, action ratelimit.Action, limit int) (int64, error)
}

// Limits are the per-user daily quotas.
type Limits struct {
	Recipe  int
	Receipt int
}

type DetailRequest struct {
	Food           string   `json:"food"`
	UseIngredients []string `json:"use_ingredients"`
	Difficulty     int      `json:"difficulty"`
}

// ReceiptUpload is an uploaded receipt photo. Body is read at most once.
type ReceiptUpload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type QuotaStatus struct {
	RecipeLimit      int   `json:"recipe_limit"`
	RecipeRemaining  int64 `json:"recipe_remaining"`
	ReceiptLimit     int   `json:"receipt_limit"`
	ReceiptRemaining int64 `json:"receipt_remaining"`
}

// AssistantService runs the recipe assistant use cases. Every use case that
// reaches the completion service consumes one unit of the caller's quota
// first. The service never writes to the pantry.
type AssistantService struct {
	pantry    pantryReader
	limiter   quotaLimiter
	completer completion.Completer
	ocr       ocr.TextExtractor
	images    imagesearch.Finder
	limits    Limits
	logger    *slog.Logger
}

func NewAssistantService(
	pantry pantryReader,
	limiter quotaLimiter,
	completer completion.Completer,
	textExtractor ocr.TextExtractor,
	images imagesearch.Finder,
	limits Limits,
	logger *slog.Logger,
) *AssistantService {
	return &AssistantService{
		pantry:    pantry,
		limiter:   limiter,
		completer: completer,
		ocr:       textExtractor,
		images:    images,
		limits:    limits,
		logger:    logger,
	}
}

// Recommend suggests dishes for everything in the user's pantry.
func (s *AssistantService) Recommend(ctx context.Context, userID string) (*domain.Menu, error) {
	if err := s.consume(ctx, userID, ratelimit.ActionRecipe); err != nil {
		return nil, err
	}

	names, err := s.pantry.ListNames(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pantry: %w", err)
	}
	if len(names) == 0 {
		return nil, domain.NewError(domain.KindInvalidRequest, "your pantry is empty, add some ingredients first")
	}

	p := prompt.Suggestion(names)
	v, err := s.completeAndParse(ctx, p)
	if err != nil {
		return nil, err
	}
	menu, err := response.MapMenu(v)
	if err != nil {
		return nil, s.schemaMismatch(p, err)
	}

	queries := make([]string, len(menu.Recipes))
	for i, r := range menu.Recipes {
		queries[i] = r.FoodEN
		if strings.TrimSpace(queries[i]) == "" {
			queries[i] = r.Food
		}
	}
	urls := imagesearch.FindAll(ctx, s.images, queries)
	for i := range menu.Recipes {
		menu.Recipes[i].ImageURL = &urls[i]
	}

	s.logger.Info("menu recommended", "user_id", userID, "ingredients", len(names), "recipes", len(menu.Recipes))
	return menu, nil
}

// Detail writes the full recipe for a dish picked from a recommendation.
func (s *AssistantService) Detail(ctx context.Context, userID string, req DetailRequest) (*domain.DetailRecipe, error) {
	if strings.TrimSpace(req.Food) == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "food is required")
	}
	if err := s.consume(ctx, userID, ratelimit.ActionRecipe); err != nil {
		return nil, err
	}
	return s.recipe(ctx, prompt.Recipe(req.Food, req.UseIngredients))
}

// Search looks up the recipe for a dish named by the user.
func (s *AssistantService) Search(ctx context.Context, userID, foodName string) (*domain.DetailRecipe, error) {
	if strings.TrimSpace(foodName) == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "enter a dish name")
	}
	if err := s.consume(ctx, userID, ratelimit.ActionRecipe); err != nil {
		return nil, err
	}
	return s.recipe(ctx, prompt.Search(foodName))
}

// Quick picks one dish for a free-text description of what the user has.
func (s *AssistantService) Quick(ctx context.Context, userID, chat string) (*domain.DetailRecipe, error) {
	if strings.TrimSpace(chat) == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "describe your ingredients or situation")
	}
	if err := s.consume(ctx, userID, ratelimit.ActionRecipe); err != nil {
		return nil, err
	}
	return s.recipe(ctx, prompt.Quick(chat))
}

// ScanReceipt reads a receipt photo and returns the ingredients bought.
func (s *AssistantService) ScanReceipt(ctx context.Context, userID string, upload *ReceiptUpload) (*domain.ReceiptIngredients, error) {
	if upload == nil || upload.Body == nil {
		return nil, domain.NewError(domain.KindInvalidRequest, "a receipt image is required")
	}
	ext, ok := imageExtension(upload.ContentType)
	if !ok {
		return nil, domain.NewError(domain.KindInvalidRequest, "only image files can be scanned")
	}

	if err := s.consume(ctx, userID, ratelimit.ActionReceipt); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(upload.Body)
	if err != nil {
		return nil, domain.WrapError(domain.KindInvalidRequest, "failed to read the uploaded image", err)
	}
	if len(data) == 0 {
		return nil, domain.NewError(domain.KindInvalidRequest, "the uploaded image is empty")
	}

	s.logger.Info("receipt scan started", "user_id", userID, "filename", upload.Filename, "format", ext, "bytes", len(data))

	text, err := s.ocr.ExtractText(ctx, data, ext)
	if err != nil {
		return nil, fmt.Errorf("receipt ocr: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.NewError(domain.KindInvalidRequest, "no text could be read from the receipt")
	}

	p := prompt.ReceiptExtraction(text)
	v, err := s.completeAndParse(ctx, p)
	if err != nil {
		return nil, err
	}
	list, err := response.MapIngredients(v)
	if err != nil {
		return nil, s.schemaMismatch(p, err)
	}

	s.logger.Info("receipt scanned", "user_id", userID, "ingredients", len(list.Ingredients))
	return list, nil
}

// Quota reports today's remaining quota without consuming any.
func (s *AssistantService) Quota(ctx context.Context, userID string) (*QuotaStatus, error) {
	recipe, err := s.limiter.Remaining(ctx, userID, ratelimit.ActionRecipe, s.limits.Recipe)
	if err != nil {
		return nil, fmt.Errorf("recipe quota: %w", err)
	}
	receipt, err := s.limiter.Remaining(ctx, userID, ratelimit.ActionReceipt, s.limits.Receipt)
	if err != nil {
		return nil, fmt.Errorf("receipt quota: %w", err)
	}
	return &QuotaStatus{
		RecipeLimit:      s.limits.Recipe,
		RecipeRemaining:  recipe,
		ReceiptLimit:     s.limits.Receipt,
		ReceiptRemaining: receipt,
	}, nil
}

func (s *AssistantService) consume(ctx context.Context, userID string, action ratelimit.Action) error {
	limit := s.limits.Recipe
	if action == ratelimit.ActionReceipt {
		limit = s.limits.Receipt
	}
	if _, err := s.limiter.CheckAndConsume(ctx, userID, action, limit); err != nil {
		return fmt.Errorf("%s quota: %w", action, err)
	}
	return nil
}

// recipe runs the shared tail of the detail, search and quick use cases.
func (s *AssistantService) recipe(ctx context.Context, p prompt.Prompt) (*domain.DetailRecipe, error) {
	v, err := s.completeAndParse(ctx, p)
	if err != nil {
		return nil, err
	}
	r, err := response.MapDetail(v)
	if err != nil {
		return nil, s.schemaMismatch(p, err)
	}

	url := s.images.FindImage(ctx, r.ImageQuery())
	r.ImageURL = &url
	return r, nil
}

func (s *AssistantService) completeAndParse(ctx context.Context, p prompt.Prompt) (any, error) {
	raw, err := s.completer.Complete(ctx, p.Text)
	if err != nil {
		return nil, fmt.Errorf("%s completion: %w", p.UseCase, err)
	}
	v, err := response.Parse(raw)
	if err != nil {
		if domain.KindOf(err) == domain.KindRefusal {
			s.logger.Info("completion refused", "use_case", string(p.UseCase), "detail", domain.DetailOf(err))
		}
		return nil, fmt.Errorf("%s reply: %w", p.UseCase, err)
	}
	return v, nil
}

func (s *AssistantService) schemaMismatch(p prompt.Prompt, err error) error {
	s.logger.Warn("completion reply does not match schema", "use_case", string(p.UseCase), "error", err)
	return fmt.Errorf("%s reply: %w", p.UseCase, err)
}

// imageExtension returns the OCR format for an image content type.
func imageExtension(contentType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false
	}
	kind, sub, ok := strings.Cut(mediaType, "/")
	if !ok || kind != "image" || sub == "" {
		return "", false
	}
	switch sub {
	case "jpeg", "pjpeg":
		return "jpg", true
	default:
		return sub, true
	}
}
