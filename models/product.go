package models

// ProductAvailability is the catalog's answer for one SKU. Fetched per row,
// never persisted.
type ProductAvailability struct {
	SKU       string  `json:"sku"`
	Available bool    `json:"available"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
}

// ProductAttributes carries everything the similarity engine scores on.
// Attribute values are strings, []string or float64 after JSON decoding.
type ProductAttributes struct {
	SKU        string                 `json:"sku"`
	Name       string                 `json:"name"`
	Brand      string                 `json:"brand"`
	Price      float64                `json:"price"`
	InStock    bool                   `json:"in_stock"`
	Categories []string               `json:"categories"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// AlternativeSuggestion is one ranked substitute for an unavailable SKU.
type AlternativeSuggestion struct {
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Available  bool    `json:"available"`
	Price      float64 `json:"price"`
	Reason     string  `json:"reason"`
}
