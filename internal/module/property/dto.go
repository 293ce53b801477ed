package property

// UpdatePropertyRequest is the listing edit form.
type UpdatePropertyRequest struct {
	ListingTitle   string  `form:"listingTitle" binding:"required,max=200"`
	Town           string  `form:"town" binding:"required"`
	Block          string  `form:"block" binding:"required,max=10"`
	StreetName     string  `form:"streetName" binding:"required,max=100"`
	PostalCode     string  `form:"postalCode" binding:"required,numeric,len=6"`
	BedroomNumber  int     `form:"bedroomNumber" binding:"required,min=1,max=5"`
	BathroomNumber int     `form:"bathroomNumber" binding:"required,min=1,max=3"`
	ResalePrice    float64 `form:"resalePrice" binding:"required,gt=0"`
	Status         string  `form:"status" binding:"required,oneof=Pending Approved Rejected"`
}
