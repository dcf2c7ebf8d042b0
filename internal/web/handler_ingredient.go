package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/vbonduro/domeok/internal/domain"
)

const dateLayout = "2006-01-02"

type ingredientResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	PurchaseDate   string  `json:"purchase_date"`
	ExpirationDate *string `json:"expiration_date"`
	StorageType    *string `json:"storage_type"`
	CreatedAt      string  `json:"created_at"`
}

func toIngredientResponses(in []*domain.Ingredient) []ingredientResponse {
	out := make([]ingredientResponse, 0, len(in))
	for _, i := range in {
		resp := ingredientResponse{
			ID:           i.ID,
			Name:         i.Name,
			PurchaseDate: i.PurchaseDate.In(time.Local).Format(dateLayout),
			StorageType:  i.StorageType,
			CreatedAt:    i.CreatedAt.Format(time.RFC3339),
		}
		if i.ExpirationDate != nil {
			exp := i.ExpirationDate.In(time.Local).Format(dateLayout)
			resp.ExpirationDate = &exp
		}
		out = append(out, resp)
	}
	return out
}

func (s *Server) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	list, err := s.pantry.ListIngredients(r.Context(), userFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": toIngredientResponses(list)}, s.logger)
}

func (s *Server) handleAddIngredients(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ingredients  []string `json:"ingredients"`
		PurchaseDate string   `json:"purchase_date"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	var bought time.Time
	if req.PurchaseDate != "" {
		d, err := time.ParseInLocation(dateLayout, req.PurchaseDate, time.Local)
		if err != nil {
			s.writeError(w, r, domain.WrapError(domain.KindInvalidRequest, "purchase_date must be YYYY-MM-DD", err))
			return
		}
		bought = d
	}

	created, err := s.pantry.AddIngredients(r.Context(), userFrom(r.Context()), req.Ingredients, bought)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ingredients": toIngredientResponses(created)}, s.logger)
}

func (s *Server) handleDeleteIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		s.writeError(w, r, domain.WrapError(domain.KindInvalidRequest, "invalid ingredient id", err))
		return
	}
	if err := s.pantry.DeleteIngredient(r.Context(), userFrom(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}
