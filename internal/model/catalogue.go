package model

// DefaultBaseURL is the canonical origin for whisper.cpp ggml model files.
// The download URL is this origin plus the catalogued file name.
const DefaultBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// Descriptor is one fixed catalogue entry for a downloadable model variant.
type Descriptor struct {
	Variant      string `json:"variant"`
	FileName     string `json:"file_name"`
	ExpectedSize int64  `json:"expected_size"`
	Description  string `json:"description"`
}

// DefaultCatalogue returns the built-in model variants. Expected sizes feed
// the readiness heuristic: a cached file at least 90% of the expected size
// counts as ready, tolerating minor size table drift.
func DefaultCatalogue() []Descriptor {
	return []Descriptor{
		{"tiny", "ggml-tiny.bin", 77691713, "Fastest, lowest accuracy, multilingual"},
		{"tiny.en", "ggml-tiny.en.bin", 77704715, "Fastest, lowest accuracy, English only"},
		{"base", "ggml-base.bin", 147951465, "Good speed/accuracy balance, multilingual"},
		{"base.en", "ggml-base.en.bin", 147964211, "Good speed/accuracy balance, English only"},
		{"small", "ggml-small.bin", 487601967, "Better accuracy, slower, multilingual"},
		{"small.en", "ggml-small.en.bin", 487614201, "Better accuracy, slower, English only"},
		{"medium", "ggml-medium.bin", 1533763059, "High accuracy, much slower, multilingual"},
		{"large-v3", "ggml-large-v3.bin", 3095033483, "Best accuracy, slowest, multilingual"},
	}
}
