package sqlite

import (
	"encoding/json"
	"fmt"

	"github.com/go-while/nntpd/internal/domain"
)

// encodeHeaders flattens an ArticleHeaders into its ordered
// name/values pairs for JSON storage, since domain.ArticleHeaders
// keeps its maps unexported.
func encodeHeaders(h *domain.ArticleHeaders) (string, error) {
	type pair struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	}
	var pairs []pair
	if h != nil {
		for _, name := range h.Names() {
			values, _ := h.Values(name)
			pairs = append(pairs, pair{Name: name, Values: values})
		}
	}
	buf, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encoding headers: %w", err)
	}
	return string(buf), nil
}

func decodeHeaders(raw string) (*domain.ArticleHeaders, error) {
	type pair struct {
		Name   string   `json:"name"`
		Values []string `json:"values"`
	}
	var pairs []pair
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("decoding headers: %w", err)
	}
	h := domain.NewArticleHeaders()
	for _, p := range pairs {
		h.Set(p.Name, p.Values...)
	}
	return h, nil
}
