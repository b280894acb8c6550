package params

// StylePreset prefixes the user prompt to steer the generation toward a look.
type StylePreset struct {
	Key          string `json:"key"`
	PromptPrefix string `json:"promptPrefix"`
}

// UnsetStyle is the neutral preset used whenever a style key does not resolve.
const UnsetStyle = "unset"

var stylePresets = map[string]StylePreset{
	"photorealism": {Key: "photorealism", PromptPrefix: "A photorealistic image of "},
	"artistic":     {Key: "artistic", PromptPrefix: "An artistic image of "},
	"sketch":       {Key: "sketch", PromptPrefix: "A sketch of "},
	UnsetStyle:     {Key: UnsetStyle, PromptPrefix: ""},
}

// StyleByKey resolves a style preset. Unknown keys degrade to the neutral
// preset; resolution never fails.
func StyleByKey(key string) StylePreset {
	if preset, ok := stylePresets[key]; ok {
		return preset
	}
	return stylePresets[UnsetStyle]
}

// Styles lists the selectable style presets in a stable order.
func Styles() []StylePreset {
	keys := []string{"photorealism", "artistic", "sketch", UnsetStyle}
	out := make([]StylePreset, 0, len(keys))
	for _, k := range keys {
		out = append(out, stylePresets[k])
	}
	return out
}

// Resolution is a selectable aspect-ratio preset.
type Resolution struct {
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var resolutions = map[string]Resolution{
	"1:1": {Key: "1:1", Width: 512, Height: 512},
	"4:5": {Key: "4:5", Width: 512, Height: 640},
	"2:3": {Key: "2:3", Width: 512, Height: 768},
	"4:7": {Key: "4:7", Width: 512, Height: 896},
	"5:4": {Key: "5:4", Width: 640, Height: 512},
	"3:2": {Key: "3:2", Width: 768, Height: 512},
	"7:4": {Key: "7:4", Width: 896, Height: 512},
}

// DefaultResolution is the square preset used when no resolution is given.
const DefaultResolution = "1:1"

// ResolutionByKey resolves an aspect-ratio preset, degrading to the default
// square preset for unknown keys.
func ResolutionByKey(key string) Resolution {
	if res, ok := resolutions[key]; ok {
		return res
	}
	return resolutions[DefaultResolution]
}

// Resolutions lists the selectable aspect-ratio presets in a stable order.
func Resolutions() []Resolution {
	keys := []string{"1:1", "4:5", "2:3", "4:7", "5:4", "3:2", "7:4"}
	out := make([]Resolution, 0, len(keys))
	for _, k := range keys {
		out = append(out, resolutions[k])
	}
	return out
}
