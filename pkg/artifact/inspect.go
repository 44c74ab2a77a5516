package artifact

import (
	"fmt"
	"strings"

	parser "github.com/gpustack/gguf-parser-go"

	"github.com/tipai/modelkit/pkg/catalog"
)

// Info summarizes the GGUF metadata of a downloaded artifact.
type Info struct {
	// Architecture is the model architecture, e.g. "llama" or "qwen2".
	Architecture string
	// Parameters is the human-readable parameter count, e.g. "3.21 B".
	Parameters string
	// Quantization is the GGUF file type, e.g. "Q6_K".
	Quantization string
	// Size is the artifact size in bytes.
	Size int64
}

// Inspect parses the GGUF header of the model's artifact. It fails if the
// artifact is missing or is not a well-formed GGUF file, which makes it a
// useful post-download sanity check.
func (s *Store) Inspect(model catalog.ModelDescriptor) (Info, error) {
	path := s.PathFor(model)
	gguf, err := parser.ParseGGUFFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("parsing gguf(%s): %w", path, err)
	}
	metadata := gguf.Metadata()
	return Info{
		Architecture: strings.TrimSpace(metadata.Architecture),
		Parameters:   strings.TrimSpace(metadata.Parameters.String()),
		Quantization: strings.TrimSpace(metadata.FileType.String()),
		Size:         s.Size(model),
	}, nil
}
