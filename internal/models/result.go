package models

// ExtractionResult is the outcome of one pipeline run: either a product with
// title and price, or an error. Use Succeeded and Failed to build one.
type ExtractionResult struct {
	Product *ExtractedProduct `json:"product,omitempty"`
	Error   *Error            `json:"error,omitempty"`
	Success bool              `json:"success"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	URL     string `json:"url,omitempty"`
}

func Succeeded(p *ExtractedProduct) ExtractionResult {
	return ExtractionResult{Product: p, Success: true}
}

func Failed(code, message, url string) ExtractionResult {
	if message == "" {
		message = "extraction failed"
	}
	return ExtractionResult{
		Error:   &Error{Code: code, Message: message, URL: url},
		Success: false,
	}
}

// Valid reports whether r holds exactly one of a complete product or an error.
func (r ExtractionResult) Valid() bool {
	if r.Success {
		return r.Error == nil && r.Product.Complete()
	}
	return r.Product == nil && r.Error != nil && r.Error.Message != ""
}
