package product

import "github.com/anucarts/marketplace-backend/pkg/pagination"

// ListProductsInput captures the browse endpoint's paging inputs.
type ListProductsInput struct {
	Pagination pagination.Params
}

// ProductListResult is one page of the public catalog.
type ProductListResult struct {
	Products   []ProductDTO `json:"products"`
	NextCursor string       `json:"nextCursor,omitempty"`
}
