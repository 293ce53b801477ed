package domain

// Review is a comment left on a listing.
type Review struct {
	ID         FlexID `json:"id"`
	Rating     int    `json:"rating"`
	Content    string `json:"content"`
	CreatedAt  string `json:"createdAt"`
	PropertyID FlexID `json:"propertyId"`
	UserID     FlexID `json:"userId"`
}

// RecordID implements listing.Record.
func (r Review) RecordID() string { return string(r.ID) }
