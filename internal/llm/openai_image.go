package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/soyeahso/botkit/internal/domain"
)

// OpenAIImageClient generates images through an OpenAI-compatible
// /images/generations endpoint. Each reply holds the generated images as
// attachments.
type OpenAIImageClient struct {
	api *OpenAIClient
}

func NewOpenAIImageClient(url string) *OpenAIImageClient {
	api := NewOpenAIClient(url)
	api.SetToolsEnabled(false)
	return &OpenAIImageClient{api: api}
}

func (c *OpenAIImageClient) SetKey(key string) error { return c.api.SetKey(key) }

func (c *OpenAIImageClient) Clone() Client {
	return &OpenAIImageClient{api: &OpenAIClient{state: c.api.state}}
}

// IsImageModel reports whether a model id names an image generator.
func IsImageModel(model string) bool {
	return strings.Contains(model, "dall-e") || strings.Contains(model, "gpt-image")
}

func (c *OpenAIImageClient) Bots(ctx context.Context) Result[[]domain.Bot] {
	cfg := c.api.config()
	models, cerr := c.api.fetchModels(ctx, cfg)
	if cerr != nil {
		return Err[[]domain.Bot](cerr)
	}
	var bots []domain.Bot
	for _, m := range models {
		if IsImageModel(m) {
			bots = append(bots, modelBot(m, cfg.url, domain.BotCapabilities(0)))
		}
	}
	if bots == nil {
		bots = []domain.Bot{}
	}
	return Ok(bots)
}

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imageResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// Send uses the last user message as the prompt.
func (c *OpenAIImageClient) Send(ctx context.Context, bot domain.BotID, messages []domain.Message, _ []domain.Tool) <-chan Result[domain.MessageContent] {
	model := bot.ID()
	prompt := lastUserText(messages)
	if model == "" || prompt == "" {
		return Single(Err[domain.MessageContent](NewError(ErrResponse, "An image prompt and a valid bot are required.")))
	}

	body := imageRequest{Model: model, Prompt: prompt, N: 1}
	if strings.Contains(model, "dall-e") {
		// gpt-image models always answer in base64 and reject the field
		body.ResponseFormat = "b64_json"
	}

	ch := make(chan Result[domain.MessageContent], 1)
	go func() {
		defer close(ch)
		Emit(ctx, ch, c.generate(ctx, body))
	}()
	return ch
}

func (c *OpenAIImageClient) generate(ctx context.Context, body imageRequest) Result[domain.MessageContent] {
	cfg := c.api.config()
	req, err := c.api.newRequest(ctx, cfg, http.MethodPost, "/images/generations", body)
	if err != nil {
		return Err[domain.MessageContent](NewErrorWithSource(ErrUnknown, err.Error(), err))
	}
	resp, err := c.api.state.http.Do(req)
	if err != nil {
		return Err[domain.MessageContent](NewErrorWithSource(ErrNetwork,
			fmt.Sprintf("Could not send request to %s. Verify your connection and the server status.", cfg.url), err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Err[domain.MessageContent](responseError(resp))
	}

	var out imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Err[domain.MessageContent](NewErrorWithSource(ErrFormat, "Could not parse the image response.", err))
	}

	var content domain.MessageContent
	var errs []*ClientError
	for i, d := range out.Data {
		raw, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil || len(raw) == 0 {
			errs = append(errs, NewErrorWithSource(ErrFormat, fmt.Sprintf("Image %d has no valid base64 data.", i+1), err))
			continue
		}
		content.Attachments = append(content.Attachments,
			domain.NewAttachment(fmt.Sprintf("image-%d.png", i+1), "image/png", raw))
		if content.Text == "" && d.RevisedPrompt != "" {
			content.Text = d.RevisedPrompt
		}
	}

	switch {
	case len(errs) == 0 && !content.IsEmpty():
		return Ok(content)
	case content.IsEmpty():
		if len(errs) == 0 {
			errs = append(errs, NewError(ErrFormat, "The server returned no images."))
		}
		return Err[domain.MessageContent](errs...)
	default:
		return OkAndErr(content, errs...)
	}
}

func lastUserText(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].From.Kind == domain.EntityUser && messages[i].Content.Text != "" {
			return messages[i].Content.Text
		}
	}
	return ""
}
