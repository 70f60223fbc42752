package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cast"

	"github.com/flemzord/ctxpack/internal/capability"
	"github.com/flemzord/ctxpack/internal/provider"
)

// apiModelList is the body of GET /models.
type apiModelList struct {
	Data []apiModel `json:"data"`
}

// apiModel is one catalog entry. Numeric fields are decoded leniently since
// upstream reports them as numbers, strings or null depending on the model.
type apiModel struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength any    `json:"context_length"`
	Architecture  struct {
		InputModalities  []string `json:"input_modalities"`
		OutputModalities []string `json:"output_modalities"`
	} `json:"architecture"`
	TopProvider struct {
		ContextLength       any `json:"context_length"`
		MaxCompletionTokens any `json:"max_completion_tokens"`
	} `json:"top_provider"`
}

func (m apiModel) metadata(fetchedAt time.Time) capability.ModelMetadata {
	ctxLen := cast.ToInt(m.ContextLength)
	if ctxLen <= 0 {
		ctxLen = cast.ToInt(m.TopProvider.ContextLength)
	}
	return capability.ModelMetadata{
		ID:                  m.ID,
		Name:                m.Name,
		InputModalities:     m.Architecture.InputModalities,
		OutputModalities:    m.Architecture.OutputModalities,
		ContextLength:       ctxLen,
		MaxCompletionTokens: cast.ToInt(m.TopProvider.MaxCompletionTokens),
		FetchedAt:           fetchedAt,
	}
}

// ListModels returns the metadata of every model in the catalog.
func (o *OpenRouter) ListModels(ctx context.Context) ([]capability.ModelMetadata, error) {
	return o.fetchModels(ctx, o.config.APIKey)
}

// Catalog is ListModels with a per-call key. apiKey, when non-empty,
// replaces the configured key.
func (o *OpenRouter) Catalog(ctx context.Context, apiKey string) ([]capability.ModelMetadata, error) {
	if apiKey == "" {
		apiKey = o.config.APIKey
	}
	return o.fetchModels(ctx, apiKey)
}

// ModelMetadata looks model up in the catalog. apiKey, when non-empty,
// replaces the configured key for this call. An unknown model yields
// (nil, nil).
func (o *OpenRouter) ModelMetadata(ctx context.Context, model, apiKey string) (*capability.ModelMetadata, error) {
	models, err := o.Catalog(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	for i := range models {
		if models[i].ID == model {
			return &models[i], nil
		}
	}
	return nil, nil
}

func (o *OpenRouter) fetchModels(ctx context.Context, apiKey string) ([]capability.ModelMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.config.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("openrouter: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	o.setHeaders(req, apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openrouter: listing models: %w", errors.Join(provider.ErrProviderDown, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp.StatusCode, resp.Body)
	}

	var list apiModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("openrouter: decoding models: %w", err)
	}

	now := time.Now().UTC()
	out := make([]capability.ModelMetadata, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID == "" {
			continue
		}
		out = append(out, m.metadata(now))
	}
	return out, nil
}
