package domain

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
)

// Listing review states.
const (
	StatusPending  = "Pending"
	StatusApproved = "Approved"
	StatusRejected = "Rejected"
)

// PropertyStatuses lists the states a listing can be set to.
var PropertyStatuses = []string{StatusPending, StatusApproved, StatusRejected}

// HDBTowns is the set of towns a listing may be filtered by.
var HDBTowns = []string{
	"Ang Mo Kio", "Bedok", "Bishan", "Bukit Batok", "Bukit Merah", "Bukit Panjang", "Bukit Timah",
	"Central Area", "Choa Chu Kang", "Clementi", "Geylang", "Hougang", "Jurong East", "Jurong West",
	"Kallang/Whampoa", "Marine Parade", "Pasir Ris", "Punggol", "Queenstown", "Sembawang", "Sengkang",
	"Serangoon", "Tampines", "Toa Payoh", "Woodlands", "Yishun",
}

// PropertyImage is one uploaded listing photo.
type PropertyImage struct {
	ImageURL string `json:"imageUrl"`
}

// Property is a resale flat listing.
type Property struct {
	ID             int64           `json:"id"`
	ListingTitle   string          `json:"listingTitle"`
	SellerID       FlexID          `json:"sellerId,omitempty"`
	Town           string          `json:"town"`
	Block          string          `json:"block"`
	StreetName     string          `json:"streetName"`
	PostalCode     string          `json:"postalCode"`
	BedroomNumber  int             `json:"bedroomNumber"`
	BathroomNumber int             `json:"bathroomNumber"`
	Storey         string          `json:"storey,omitempty"`
	FloorAreaSqm   float64         `json:"floorAreaSqm,omitempty"`
	TopYear        int             `json:"topYear,omitempty"`
	FlatModel      string          `json:"flatModel,omitempty"`
	ResalePrice    float64         `json:"resalePrice"`
	Status         string          `json:"status"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	ImageList      []PropertyImage `json:"imageList,omitempty"`

	// raw is the record as the backend sent it.
	raw map[string]json.RawMessage
}

// editableKeys are the fields the console changes. Everything else goes
// back to the backend exactly as it was received.
var editableKeys = []string{
	"id", "listingTitle", "town", "block", "streetName", "postalCode",
	"bedroomNumber", "bathroomNumber", "resalePrice", "status",
}

type propertyFields Property

// UnmarshalJSON decodes p and keeps the raw record for MarshalJSON.
func (p *Property) UnmarshalJSON(b []byte) error {
	var f propertyFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*p = Property(f)
	p.raw = raw
	return nil
}

// MarshalJSON writes the received record with the editable fields
// replaced, so fields the console does not model survive an update.
func (p Property) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(propertyFields(p))
	if err != nil || len(p.raw) == 0 {
		return b, err
	}
	var known map[string]json.RawMessage
	if err := json.Unmarshal(b, &known); err != nil {
		return nil, err
	}
	out := maps.Clone(p.raw)
	for _, k := range editableKeys {
		if v, ok := known[k]; ok {
			out[k] = v
		}
	}
	return json.Marshal(out)
}

// Details summarises storey, floor area and TOP year, skipping unknowns.
func (p Property) Details() string {
	parts := make([]string, 0, 3)
	if s := strings.TrimSpace(p.Storey); s != "" {
		parts = append(parts, s)
	}
	if p.FloorAreaSqm > 0 {
		parts = append(parts, strconv.FormatFloat(p.FloorAreaSqm, 'f', -1, 64)+" m²")
	}
	if p.TopYear > 0 {
		parts = append(parts, strconv.Itoa(p.TopYear))
	}
	return strings.Join(parts, " / ")
}

// RecordID implements listing.Record.
func (p Property) RecordID() int64 { return p.ID }

// Address joins block, street and postal code.
func (p Property) Address() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Block, p.StreetName, p.PostalCode} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// Thumbnail returns the first image URL, if any.
func (p Property) Thumbnail() string {
	for _, img := range p.ImageList {
		if img.ImageURL != "" {
			return img.ImageURL
		}
	}
	return ""
}
