package models

import "time"

// ============================================================================
// Raw (source shape)
// ============================================================================

// Address is the nested address block on a property listing.
type Address struct {
	Street string `json:"street,omitempty"`
	City   string `json:"city,omitempty"`
	County string `json:"county,omitempty"`
	State  string `json:"state,omitempty"`
	Zip    string `json:"zip,omitempty"`
}

// Coordinates is a latitude/longitude pair. Valid ranges are lat [-90, 90]
// and lon [-180, 180]; out-of-range values are nulled at Silver.
type Coordinates struct {
	Lat *float64 `json:"lat,omitempty"`
	Lon *float64 `json:"lon,omitempty"`
}

// PropertyDetails is the nested physical-attributes block.
type PropertyDetails struct {
	SquareFeet   *float64 `json:"square_feet,omitempty"`
	Bedrooms     *float64 `json:"bedrooms,omitempty"`
	Bathrooms    *float64 `json:"bathrooms,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	YearBuilt    *int     `json:"year_built,omitempty"`
	LotSize      *float64 `json:"lot_size,omitempty"`
	Stories      *int     `json:"stories,omitempty"`
	GarageSpaces *int     `json:"garage_spaces,omitempty"`
}

// PriceEvent is one entry in a listing's price history.
type PriceEvent struct {
	Date  string   `json:"date,omitempty"`
	Price *float64 `json:"price,omitempty"`
	Event string   `json:"event,omitempty"`
}

// PropertyRaw is a property listing as read from source, before any tier
// processing. A row that failed schema coercion carries only its salvaged
// primary key and CorruptRecord holding the original text.
type PropertyRaw struct {
	ListingID       string           `json:"listing_id"`
	Address         *Address         `json:"address,omitempty"`
	Coordinates     *Coordinates     `json:"coordinates,omitempty"`
	PropertyDetails *PropertyDetails `json:"property_details,omitempty"`
	ListingPrice    *float64         `json:"listing_price,omitempty"`
	PricePerSqft    *float64         `json:"price_per_sqft,omitempty"`
	Description     string           `json:"description,omitempty"`
	Features        []string         `json:"features"`
	Amenities       []string         `json:"amenities"`
	ListingDate     string           `json:"listing_date,omitempty"`
	DaysOnMarket    *int             `json:"days_on_market,omitempty"`
	PriceHistory    []PriceEvent     `json:"price_history,omitempty"`
	NeighborhoodID  string           `json:"neighborhood_id,omitempty"`

	CorruptRecord string `json:"-"`
	SourceFile    string `json:"-"`
}

// ============================================================================
// Silver
// ============================================================================

// PropertySilver is a cleaned, flattened, validated property row.
type PropertySilver struct {
	ListingID string

	// Flattened address
	Street  string
	City    string
	County  string
	State   string
	ZipCode string

	CityNormalized  string
	StateNormalized string

	Latitude  *float64
	Longitude *float64

	ListingPrice    *float64
	PricePerSqft    *float64
	PricePerBedroom *float64
	SquareFeet      *float64
	Bedrooms        *float64
	Bathrooms       *float64
	PropertyType    string
	YearBuilt       *int
	LotSize         *float64
	Stories         *int
	GarageSpaces    *int

	PriceCategory PriceCategory
	SizeCategory  SizeCategory

	Description    string
	Features       []string
	Amenities      []string
	ListingDate    string
	DaysOnMarket   *int
	PriceHistory   []PriceEvent
	NeighborhoodID string

	DataQualityScore float64
	ValidationStatus ValidationStatus
	Issues           []ValidationIssue

	CorruptRecord string
	SourceFile    string
	IngestedAt    time.Time
	ProcessedAt   time.Time
}

// ============================================================================
// Gold
// ============================================================================

// PropertyGold is a Silver row with correlation identity, resolved geography,
// and the canonical embedding text.
type PropertyGold struct {
	PropertySilver

	CorrelationUUID        string
	NeighborhoodIDResolved string
	LinkConfidence         *float64
	CountyResolved         string
	ParentCity             string
	ParentCounty           string
	ParentState            string
	LocationHierarchy      string
	EmbeddingText          string
}
