package extract

// Extractor turns decoded message HTML into labelled fields.
// Implementations must be deterministic and free of side effects.
type Extractor interface {
	Extract(input []byte) ([]Field, error)
}

// LabelExtractor pairs configured labels with the paragraph after them.
type LabelExtractor struct {
	Labels   LabelSet
	Trailing TrailingPolicy
}

func (e LabelExtractor) Extract(input []byte) ([]Field, error) {
	return Fields(input, e.Labels, e.Trailing)
}
