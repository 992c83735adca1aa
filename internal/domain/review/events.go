package review

import "time"

const (
	EventReviewSubmitted = "ReviewSubmitted"
	EventReviewPublished = "ReviewPublished"
	EventReviewRejected  = "ReviewRejected"
)

type ReviewSubmitted struct {
	ReviewID         string    `json:"review_id"`
	ProductID        string    `json:"product_id,omitempty"`
	VendorID         string    `json:"vendor_id,omitempty"`
	CustomerID       string    `json:"customer_id"`
	OrderID          string    `json:"order_id,omitempty"`
	Rating           int       `json:"rating"`
	Title            string    `json:"title"`
	Comment          string    `json:"comment,omitempty"`
	VerifiedPurchase bool      `json:"verified_purchase"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// ReviewModerated carries the product and vendor so rating projections need
// no lookup.
type ReviewModerated struct {
	ReviewID    string    `json:"review_id"`
	ProductID   string    `json:"product_id,omitempty"`
	VendorID    string    `json:"vendor_id,omitempty"`
	Rating      int       `json:"rating"`
	Reason      string    `json:"reason,omitempty"`
	ModeratedAt time.Time `json:"moderated_at"`
}
