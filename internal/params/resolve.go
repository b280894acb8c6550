package params

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which default parameter set and required fields apply.
type Mode string

const (
	ModeTextToImage  Mode = "text-to-image"
	ModeImageToImage Mode = "image-to-image"
)

// ParseMode maps a wire value to a Mode, defaulting to text-to-image for the
// empty string.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeTextToImage, "":
		return ModeTextToImage, nil
	case ModeImageToImage:
		return ModeImageToImage, nil
	}
	return "", fmt.Errorf("unknown generation mode: %q", raw)
}

// GenerationRequest is the user-level intent for one generation.
type GenerationRequest struct {
	Prompt        string
	Width         int
	Height        int
	Mode          Mode
	StyleKey      string
	InputImageRef string
}

func (r GenerationRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return errors.New("prompt is required")
	}
	if r.Width <= 0 || r.Height <= 0 {
		return errors.New("width and height must be positive")
	}
	if r.Mode == ModeImageToImage && strings.TrimSpace(r.InputImageRef) == "" {
		return errors.New("input image is required for image-to-image generation")
	}
	return nil
}

// Base inputs per mode, merged under the request's own fields.
var textToImageBase = map[string]any{
	"width":               768,
	"height":              768,
	"refine":              "expert_ensemble_refiner",
	"apply_watermark":     false,
	"num_inference_steps": 25,
}

var imageToImageBase = map[string]any{
	"width":               768,
	"height":              768,
	"refine":              "expert_ensemble_refiner",
	"apply_watermark":     false,
	"num_inference_steps": 25,
	"prompt_strength":     0.8,
}

// Resolve builds the provider input payload for a request: the mode's base
// defaults overlaid with the request's prompt (style prefix applied), width and
// height, and the source image for image-to-image. Overrides always win over
// defaults. Resolve is pure and never fails; unresolvable style keys fall back
// to the neutral preset.
func Resolve(req GenerationRequest) map[string]any {
	base := textToImageBase
	if req.Mode == ModeImageToImage {
		base = imageToImageBase
	}

	input := make(map[string]any, len(base)+4)
	for k, v := range base {
		input[k] = v
	}

	style := StyleByKey(req.StyleKey)
	input["prompt"] = style.PromptPrefix + req.Prompt
	if req.Width > 0 {
		input["width"] = req.Width
	}
	if req.Height > 0 {
		input["height"] = req.Height
	}
	if req.Mode == ModeImageToImage {
		input["image"] = req.InputImageRef
	}

	return input
}
