package decode

// Part is a provider-neutral view of one node in a message part tree.
// Data holds the URL-safe base64 body of the node, if any.
type Part struct {
	MimeType string `json:"mime_type,omitempty"`
	Data     string `json:"data,omitempty"`
	Parts    []Part `json:"parts,omitempty"`
}

// FindPayload returns the first non-empty Data in depth-first pre-order. This
// is the order in which the provider's textual rendering lists data keys, so
// both input shapes select the same payload.
func FindPayload(p Part) (Part, bool) {
	if p.Data != "" {
		return p, true
	}
	for _, child := range p.Parts {
		if found, ok := FindPayload(child); ok {
			return found, true
		}
	}
	return Part{}, false
}

// DecodePart decodes the payload selected by FindPayload.
func DecodePart(p Part) ([]byte, bool, error) {
	found, ok := FindPayload(p)
	if !ok {
		return nil, false, nil
	}
	b, err := DecodePayload(found.Data)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}
