// Package catalog maintains the model catalog and its merged download state.
package catalog

// ModelDescriptor describes one catalog model together with its current
// download state. Identity and display metadata come from the static catalog;
// IsDownloaded and DownloadProgress are projections of the download ledger.
type ModelDescriptor struct {
	// ID is the stable model identifier.
	ID string
	// Name is the display name. It also determines the artifact file name.
	Name string
	// Description is the display description.
	Description string
	// Icon is an opaque iconography reference for the UI.
	Icon string
	// DownloadURL is the artifact source URL. An empty URL means the model
	// cannot be downloaded.
	DownloadURL string
	// IsDownloaded indicates that a complete artifact exists on local storage.
	// IsDownloaded implies DownloadProgress == 1.
	IsDownloaded bool
	// DownloadProgress is the download completion ratio in [0, 1].
	DownloadProgress float64
}

// Downloadable returns whether the model has an artifact source to download
// from.
func (d ModelDescriptor) Downloadable() bool {
	return d.DownloadURL != ""
}

// Default returns the built-in model catalog, in display order.
func Default() []ModelDescriptor {
	return []ModelDescriptor{
		{
			ID:          "1",
			Name:        "TinyLlama-3.2 3B",
			Icon:        "tiny_llama",
			Description: "Meta AI's most performant LLM.",
			DownloadURL: "https://huggingface.co/bartowski/Llama-3.2-3B-Instruct-GGUF/resolve/main/Llama-3.2-3B-Instruct-Q6_K.gguf",
		},
		{
			ID:          "2",
			Name:        "Gemma-2 2B",
			Icon:        "gemma",
			Description: "Gemma is a family of lightweight open models from Google.",
			DownloadURL: "https://huggingface.co/bartowski/gemma-2-2b-it-GGUF/resolve/main/gemma-2-2b-it-Q6_K.gguf",
		},
		{
			ID:          "3",
			Name:        "Qwen-2.5 1.5B",
			Icon:        "qwen",
			Description: "A language model series including decoder language models of different model sizes",
			DownloadURL: "https://huggingface.co/Qwen/Qwen2.5-1.5B-Instruct-GGUF/resolve/main/qwen2.5-1.5b-instruct-q8_0.gguf",
		},
		{
			ID:          "4",
			Name:        "Phi-3.5 Mini 3.8B",
			Icon:        "msft",
			Description: "Microsoft's smaller, less compute-intensive models for generative AI solutions",
			DownloadURL: "https://huggingface.co/MaziyarPanahi/Phi-3.5-mini-instruct-GGUF/resolve/main/Phi-3.5-mini-instruct.Q4_K_M.gguf",
		},
		{
			// Bundled entry with no artifact source; it can never transition
			// to downloaded through the download coordinator.
			ID:          "5",
			Name:        "Claude-3 Opus",
			Icon:        "claude",
			Description: "Designed to be fast, tiny, helpful, honest, and harmless.",
		},
	}
}
