package models

// GenerationRequest is the body the upstream image provider expects.
// Image holds exactly two references: the person photo as a base64 data URL
// first, the outfit image URL second. The provider reads them positionally.
type GenerationRequest struct {
	Model                     string   `json:"model"`
	Prompt                    string   `json:"prompt"`
	Image                     []string `json:"image"`
	SequentialImageGeneration string   `json:"sequential_image_generation"`
	Size                      string   `json:"size"`
	ResponseFormat            string   `json:"response_format"`
	Watermark                 bool     `json:"watermark"`
}

type GenerationResponse struct {
	Model   string           `json:"model"`
	Created int64            `json:"created"`
	Data    []GeneratedImage `json:"data"`
	Usage   *GenerationUsage `json:"usage,omitempty"`
	Error   *ProviderError   `json:"error,omitempty"`
}

type GeneratedImage struct {
	URL     string         `json:"url,omitempty"`
	B64JSON string         `json:"b64_json,omitempty"`
	Size    string         `json:"size,omitempty"`
	Error   *ProviderError `json:"error,omitempty"`
}

type GenerationUsage struct {
	GeneratedImages int `json:"generated_images"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
}

// ProviderError is the {code, message} pair the provider uses both at the
// top level and per generated image.
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
