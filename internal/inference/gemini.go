package inference

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/genai"
)

// geminiAPI adapts a per-credential genai client to the api interface.
type geminiAPI struct {
	client *genai.Client
	model  string
}

func newGeminiFactory(model, baseURL string, httpClient *http.Client) apiFactory {
	return func(ctx context.Context, credential string) (api, error) {
		cfg := &genai.ClientConfig{
			APIKey:     credential,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: httpClient,
		}
		if baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
		}

		client, err := genai.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return &geminiAPI{client: client, model: model}, nil
	}
}

func (g *geminiAPI) upload(ctx context.Context, r io.Reader, displayName, mediaType string) (*RemoteRef, error) {
	file, err := g.client.Files.Upload(ctx, r, &genai.UploadFileConfig{
		MIMEType:    mediaType,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, err
	}

	return &RemoteRef{
		URI:      file.URI,
		MIMEType: file.MIMEType,
		Name:     file.Name,
	}, nil
}

func (g *geminiAPI) generate(ctx context.Context, in GenerateInput) (*Content, error) {
	parts := []*genai.Part{genai.NewPartFromText(in.Prompt)}
	if in.Ref != nil {
		parts = append(parts, genai.NewPartFromURI(in.Ref.URI, in.mediaType()))
	}

	var config *genai.GenerateContentConfig
	if in.SystemInstruction != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(in.SystemInstruction, genai.RoleUser),
		}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config)
	if err != nil {
		return nil, err
	}

	return contentFromResponse(resp), nil
}

func contentFromResponse(resp *genai.GenerateContentResponse) *Content {
	out := &Content{
		Text:         resp.Text(),
		ModelVersion: resp.ModelVersion,
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CandidatesTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out
}
