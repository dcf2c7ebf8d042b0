package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/domeok/internal/db"
	"github.com/vbonduro/domeok/internal/domain"
	"github.com/vbonduro/domeok/internal/ratelimit"
	"github.com/vbonduro/domeok/internal/store"
)

// stubCompleter returns a fixed reply and records every prompt it receives.
type stubCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, p string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, p)
	return s.reply, s.err
}

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type stubOCR struct {
	text   string
	err    error
	calls  int
	gotExt string
	gotLen int
}

func (s *stubOCR) ExtractText(_ context.Context, image []byte, ext string) (string, error) {
	s.calls++
	s.gotExt = ext
	s.gotLen = len(image)
	return s.text, s.err
}

// stubFinder answers every lookup with a URL derived from the query.
type stubFinder struct {
	mu      sync.Mutex
	queries []string
}

func (s *stubFinder) FindImage(_ context.Context, query string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, query)
	return "https://img.test/" + query
}

type testEnv struct {
	svc       *AssistantService
	pantry    *store.IngredientStore
	completer *stubCompleter
	ocr       *stubOCR
	finder    *stubFinder
	limiter   *ratelimit.Limiter
}

func newTestEnv(t *testing.T, limits Limits) *testEnv {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	env := &testEnv{
		pantry:    store.NewIngredientStore(d),
		completer: &stubCompleter{},
		ocr:       &stubOCR{},
		finder:    &stubFinder{},
		limiter:   ratelimit.NewLimiter(rdb, slog.Default()),
	}
	env.svc = NewAssistantService(env.pantry, env.limiter, env.completer, env.ocr, env.finder, limits, slog.Default())
	return env
}

func (e *testEnv) stock(t *testing.T, user string, names ...string) {
	t.Helper()
	_, err := e.pantry.Create(context.Background(), user, names, time.Now())
	require.NoError(t, err)
}

func (e *testEnv) remaining(t *testing.T, user string, action ratelimit.Action, limit int) int64 {
	t.Helper()
	n, err := e.limiter.Remaining(context.Background(), user, action, limit)
	require.NoError(t, err)
	return n
}

var defaultLimits = Limits{Recipe: 10, Receipt: 5}

const detailReply = `{"food":"계란말이","food_en":"Egg Roll","use_ingredients":[{"name":"계란","amount":"3개"}],"steps":["풀기","부치기","말기"],"tip":"약불"}`

func TestRecommendScenario(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.stock(t, "u1", "egg")
	env.completer.reply = "```json\n{\"recipes\":[{\"food\":\"계란말이\",\"food_en\":\"Egg Roll\",\"use_ingredients\":[\"egg\"],\"difficulty\":1}]}\n```"

	menu, err := env.svc.Recommend(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, menu.Recipes, 1)

	item := menu.Recipes[0]
	assert.Equal(t, "계란말이", item.Food)
	assert.Equal(t, 1, item.Difficulty)
	require.NotNil(t, item.ImageURL)
	assert.Equal(t, "https://img.test/Egg Roll", *item.ImageURL)

	assert.Equal(t, 1, env.completer.calls())
	assert.Contains(t, env.completer.prompts[0], `["egg"]`)
	assert.Equal(t, []string{"Egg Roll"}, env.finder.queries)
}

func TestRecommendEnrichesEveryItemOnce(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.stock(t, "u1", "egg", "rice", "kimchi")
	env.completer.reply = `{"recipes":[
		{"food":"김치볶음밥","food_en":"Kimchi Fried Rice","use_ingredients":["rice","kimchi"],"difficulty":2},
		{"food":"계란밥","food_en":"","use_ingredients":["egg","rice"],"difficulty":1},
		{"food":"김치전","food_en":"Kimchi Pancake","use_ingredients":["kimchi"],"difficulty":3}
	]}`

	menu, err := env.svc.Recommend(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, menu.Recipes, 3)

	assert.Equal(t, 1, env.completer.calls())
	assert.ElementsMatch(t, []string{"Kimchi Fried Rice", "계란밥", "Kimchi Pancake"}, env.finder.queries)
	assert.Equal(t, "https://img.test/Kimchi Fried Rice", *menu.Recipes[0].ImageURL)
	assert.Equal(t, "https://img.test/계란밥", *menu.Recipes[1].ImageURL)
	assert.Equal(t, "https://img.test/Kimchi Pancake", *menu.Recipes[2].ImageURL)
}

func TestRecommendEmptyPantry(t *testing.T) {
	env := newTestEnv(t, defaultLimits)

	_, err := env.svc.Recommend(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Zero(t, env.completer.calls())
	// Quota is checked before the pantry is read.
	assert.Equal(t, int64(9), env.remaining(t, "u1", ratelimit.ActionRecipe, 10))
}

func TestRecommendSchemaMismatch(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.stock(t, "u1", "egg")
	env.completer.reply = `{"wrong_key": "oops"}`

	_, err := env.svc.Recommend(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
	assert.NotErrorIs(t, err, domain.ErrDecode)
	assert.Empty(t, env.finder.queries)
}

func TestRecommendDecodeError(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.stock(t, "u1", "egg")
	env.completer.reply = "Here are some ideas: egg roll, omelette."

	_, err := env.svc.Recommend(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestRecommendQuotaExceeded(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.stock(t, "u1", "egg")
	env.completer.reply = `{"recipes":[{"food":"계란말이","food_en":"Egg Roll","use_ingredients":["egg"],"difficulty":1}]}`
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := env.svc.Recommend(ctx, "u1")
		require.NoError(t, err)
	}

	_, err := env.svc.Recommend(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	_, err = env.svc.Search(ctx, "u1", "김치찌개")
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	assert.Equal(t, 10, env.completer.calls())
	assert.Zero(t, env.remaining(t, "u1", ratelimit.ActionRecipe, 10))
}

func TestSearchRefusal(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.completer.reply = `{"error": "not food"}`

	_, err := env.svc.Search(context.Background(), "u1", "벽돌")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRefusal)
	assert.Equal(t, "not food", domain.DetailOf(err))
	assert.Contains(t, env.completer.prompts[0], `"벽돌"`)
	assert.Empty(t, env.finder.queries)
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.completer.reply = detailReply

	recipe, err := env.svc.Search(context.Background(), "u1", "계란말이")
	require.NoError(t, err)
	assert.Equal(t, "계란말이", recipe.Food)
	require.NotNil(t, recipe.ImageURL)
	assert.Equal(t, "https://img.test/Egg Roll", *recipe.ImageURL)
	assert.Equal(t, []string{"Egg Roll"}, env.finder.queries)
}

func TestBlankInputRejectedBeforeQuota(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.completer.reply = detailReply
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{name: "search", call: func() error { _, err := env.svc.Search(ctx, "u1", "   "); return err }},
		{name: "quick", call: func() error { _, err := env.svc.Quick(ctx, "u1", ""); return err }},
		{name: "detail", call: func() error { _, err := env.svc.Detail(ctx, "u1", DetailRequest{Food: " "}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), domain.ErrInvalidRequest)
		})
	}

	assert.Zero(t, env.completer.calls())
	assert.Equal(t, int64(10), env.remaining(t, "u1", ratelimit.ActionRecipe, 10))
}

func TestDetail(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.completer.reply = detailReply

	recipe, err := env.svc.Detail(context.Background(), "u1", DetailRequest{
		Food:           "계란말이",
		UseIngredients: []string{"계란", "파"},
		Difficulty:     1,
	})
	require.NoError(t, err)
	assert.Len(t, recipe.Steps, 3)
	assert.Equal(t, "https://img.test/Egg Roll", *recipe.ImageURL)
	assert.Contains(t, env.completer.prompts[0], `["계란","파"]`)
}

func TestDetailTooFewSteps(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.completer.reply = `{"food":"라면","use_ingredients":[],"steps":["끓이기","넣기"],"tip":""}`

	_, err := env.svc.Detail(context.Background(), "u1", DetailRequest{Food: "라면"})
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
}

func TestQuickPropagatesUpstreamKind(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.completer.err = domain.NewError(domain.KindTimeout, "completion service timed out")

	_, err := env.svc.Quick(context.Background(), "u1", "계란 두 개랑 밥")
	assert.ErrorIs(t, err, domain.ErrTimeout)
	assert.Empty(t, env.finder.queries)
}

func TestScanReceipt(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.ocr.text = "이마트 콩나물 1봉 1,200 서울우유 1L 2,500"
	env.completer.reply = "```json\n{\"ingredients\":[\"콩나물\",\"우유\",\"우유\"]}\n```"

	got, err := env.svc.ScanReceipt(context.Background(), "u1", &ReceiptUpload{
		Filename:    "receipt.jpg",
		ContentType: "image/jpeg",
		Body:        bytes.NewReader([]byte{0xFF, 0xD8, 0xFF}),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"콩나물", "우유"}, got.Ingredients)

	assert.Equal(t, "jpg", env.ocr.gotExt)
	assert.Equal(t, 3, env.ocr.gotLen)
	assert.Contains(t, env.completer.prompts[0], "서울우유 1L")
	assert.Empty(t, env.finder.queries)
	assert.Equal(t, int64(4), env.remaining(t, "u1", ratelimit.ActionReceipt, 5))
	assert.Equal(t, int64(10), env.remaining(t, "u1", ratelimit.ActionRecipe, 10))
}

func TestScanReceiptWhitespaceOCR(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.ocr.text = " \n\t "

	_, err := env.svc.ScanReceipt(context.Background(), "u1", &ReceiptUpload{
		ContentType: "image/png",
		Body:        strings.NewReader("png-bytes"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Equal(t, 1, env.ocr.calls)
	assert.Zero(t, env.completer.calls())
}

func TestScanReceiptRejectsBeforeQuota(t *testing.T) {
	env := newTestEnv(t, defaultLimits)

	tests := []struct {
		name   string
		upload *ReceiptUpload
	}{
		{name: "missing", upload: nil},
		{name: "no body", upload: &ReceiptUpload{ContentType: "image/png"}},
		{name: "pdf", upload: &ReceiptUpload{ContentType: "application/pdf", Body: strings.NewReader("%PDF")}},
		{name: "no content type", upload: &ReceiptUpload{Body: strings.NewReader("x")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.ScanReceipt(context.Background(), "u1", tt.upload)
			assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		})
	}

	assert.Zero(t, env.ocr.calls)
	assert.Equal(t, int64(5), env.remaining(t, "u1", ratelimit.ActionReceipt, 5))
}

func TestScanReceiptEmptyFile(t *testing.T) {
	env := newTestEnv(t, defaultLimits)

	_, err := env.svc.ScanReceipt(context.Background(), "u1", &ReceiptUpload{
		ContentType: "image/jpeg",
		Body:        bytes.NewReader(nil),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	assert.Zero(t, env.ocr.calls)
	assert.Equal(t, int64(4), env.remaining(t, "u1", ratelimit.ActionReceipt, 5))
}

func TestScanReceiptOCRFailure(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.ocr.err = domain.NewError(domain.KindConnectionFailed, "ocr service unreachable")

	_, err := env.svc.ScanReceipt(context.Background(), "u1", &ReceiptUpload{
		ContentType: "image/jpeg",
		Body:        strings.NewReader("jpg"),
	})
	assert.ErrorIs(t, err, domain.ErrConnectionFailed)
	assert.Zero(t, env.completer.calls())
}

func TestScanReceiptQuota(t *testing.T) {
	env := newTestEnv(t, Limits{Recipe: 10, Receipt: 1})
	env.ocr.text = "우유"
	env.completer.reply = `{"ingredients":["우유"]}`
	ctx := context.Background()

	upload := func() *ReceiptUpload {
		return &ReceiptUpload{ContentType: "image/png", Body: strings.NewReader("png")}
	}

	_, err := env.svc.ScanReceipt(ctx, "u1", upload())
	require.NoError(t, err)
	_, err = env.svc.ScanReceipt(ctx, "u1", upload())
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Equal(t, 1, env.ocr.calls)
}

func TestQuota(t *testing.T) {
	env := newTestEnv(t, defaultLimits)
	env.completer.reply = detailReply

	_, err := env.svc.Search(context.Background(), "u1", "계란말이")
	require.NoError(t, err)

	status, err := env.svc.Quota(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, &QuotaStatus{RecipeLimit: 10, RecipeRemaining: 9, ReceiptLimit: 5, ReceiptRemaining: 5}, status)
}

// failingLimiter simulates an unreachable counter store.
type failingLimiter struct{}

func (failingLimiter) CheckAndConsume(context.Context, string, ratelimit.Action, int) (int64, error) {
	return 0, domain.WrapError(domain.KindServiceUnavailable, "quota store unavailable", errors.New("dial tcp: refused"))
}

func (failingLimiter) Remaining(context.Context, string, ratelimit.Action, int) (int64, error) {
	return 0, domain.WrapError(domain.KindServiceUnavailable, "quota store unavailable", errors.New("dial tcp: refused"))
}

func TestQuotaStoreDown(t *testing.T) {
	completer := &stubCompleter{reply: detailReply}
	svc := NewAssistantService(nil, failingLimiter{}, completer, &stubOCR{}, &stubFinder{}, defaultLimits, slog.Default())

	_, err := svc.Search(context.Background(), "u1", "계란말이")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.Zero(t, completer.calls())

	_, err = svc.Quota(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestImageExtension(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
		ok          bool
	}{
		{contentType: "image/jpeg", want: "jpg", ok: true},
		{contentType: "image/png", want: "png", ok: true},
		{contentType: "image/webp; charset=binary", want: "webp", ok: true},
		{contentType: "image/heic", want: "heic", ok: true},
		{contentType: "text/plain", ok: false},
		{contentType: "", ok: false},
		{contentType: "image", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got, ok := imageExtension(tt.contentType)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
