package rag

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/server/models"
	"github.com/shopspring/decimal"
)

const unknown = "Unknown"

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func nullString(v sql.NullString, def string) string {
	if !v.Valid {
		return def
	}
	return orDefault(v.String, def)
}

func nullFloat(v sql.NullFloat64, def string) string {
	if !v.Valid {
		return def
	}
	return strconv.FormatFloat(v.Float64, 'f', -1, 64)
}

func nullInt(v sql.NullInt64, def string) string {
	if !v.Valid {
		return def
	}
	return strconv.FormatInt(v.Int64, 10)
}

func money(v decimal.NullDecimal, def string) string {
	if !v.Valid {
		return def
	}
	return v.Decimal.String()
}

// moneyNonZero treats zero like a missing amount.
func moneyNonZero(v decimal.NullDecimal, def string) string {
	if !v.Valid || v.Decimal.IsZero() {
		return def
	}
	return v.Decimal.String()
}

func compactJSON(v any) string {
	switch m := v.(type) {
	case nil:
		return "{}"
	case models.Amenities:
		return m.String()
	case map[string]any:
		if len(m) == 0 {
			return "{}"
		}
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return "{}"
	}
	return string(b)
}

// FormatProperty renders the property a single-property match is about.
func FormatProperty(p models.Property) string {
	return strings.Join([]string{
		"PROPERTY TO MATCH:",
		"Title: " + p.Title,
		"Location: " + nullString(p.LocationName, unknown),
		"Price: " + money(p.Price, unknown),
		"Type: " + nullString(p.PropertyType, unknown),
		"Area: " + nullFloat(p.Area, unknown) + " m²",
		"Rooms: " + nullInt(p.Rooms, unknown),
		"Availability: " + nullString(p.AvailabilityStatus, unknown),
		"Condition: " + nullString(p.Condition, unknown),
		"Amenities: " + p.Amenities.String(),
	}, "\n")
}

// FormatPropertyBulk renders one of several properties.
func FormatPropertyBulk(p models.Property) string {
	return strings.Join([]string{
		"PROPERTY: " + p.Title,
		"Location: " + nullString(p.LocationName, unknown),
		"Price: " + money(p.Price, unknown),
		"Type: " + nullString(p.PropertyType, unknown),
		"Area: " + nullFloat(p.Area, unknown) + " m²",
		"Rooms: " + nullInt(p.Rooms, unknown),
		"Availability: " + nullString(p.AvailabilityStatus, unknown),
		"Condition: " + nullString(p.Condition, unknown),
		"Amenities: " + p.Amenities.String(),
	}, "\n")
}

// FormatClient renders a contact as a match candidate.
func FormatClient(c models.Contact) string {
	return strings.Join([]string{
		"CLIENT: " + c.FullName,
		"Preferred Location: " + nullString(c.PreferredLocation, unknown),
		"Budget: " + money(c.BudgetMin, "0") + " - " + money(c.BudgetMax, "0"),
		"Property Types: " + orDefault(c.PropertyTypes.Join(), unknown),
		"Area Range: " + nullFloat(c.DesiredAreaMin, "?") + " - " + nullFloat(c.DesiredAreaMax, "?") + " m²",
		"Rooms: " + nullInt(c.RoomsMin, "?") + " - " + nullInt(c.RoomsMax, "?"),
		"Amenities: " + c.Amenities.String(),
		"Priority Level: " + nullString(c.PriorityLevel, unknown),
		"Contact Method: " + nullString(c.PreferredContactMethod, unknown),
	}, "\n")
}

// FormatPreferences renders the contact a recommendation is made for.
func FormatPreferences(c models.Contact) string {
	return strings.Join([]string{
		"USER PREFERENCES:",
		"Name: " + c.FullName,
		"Preferred Location: " + nullString(c.PreferredLocation, "Any location"),
		"Budget Range: " + money(c.BudgetMin, "0") + " - " + money(c.BudgetMax, "999999999"),
		"Property Types: " + orDefault(c.PropertyTypes.Join(), "Any type"),
		"Area Range: " + nullFloat(c.DesiredAreaMin, "Any") + " - " + nullFloat(c.DesiredAreaMax, "Any") + " m²",
		"Rooms: " + nullInt(c.RoomsMin, "Any") + " - " + nullInt(c.RoomsMax, "Any"),
		"Desired Amenities: " + c.Amenities.String(),
		"Priority Level: " + nullString(c.PriorityLevel, unknown),
		"Contact Method: " + nullString(c.PreferredContactMethod, unknown),
	}, "\n")
}

// FormatAvailableProperty renders the i-th (1-based) recommendation candidate.
func FormatAvailableProperty(i int, p models.Property) string {
	return strings.Join([]string{
		fmt.Sprintf("AVAILABLE PROPERTY %d:", i),
		"Title: " + orDefault(p.Title, unknown),
		"Location: " + nullString(p.LocationName, unknown),
		"Price: " + moneyNonZero(p.Price, unknown),
		"Type: " + nullString(p.PropertyType, unknown),
		"Area: " + nullFloat(p.Area, unknown) + " m²",
		"Rooms: " + nullInt(p.Rooms, unknown),
		"Condition: " + nullString(p.Condition, unknown),
		"Amenities: " + p.Amenities.String(),
	}, "\n")
}

// Listing is a property description supplied by the caller alongside an
// uploaded document. Values are kept as text.
type Listing struct {
	Location string `mapstructure:"location"`
	Price    string `mapstructure:"price"`
	Type     string `mapstructure:"type"`
	Area     string `mapstructure:"area"`
	Rooms    string `mapstructure:"rooms"`
}

func formatListingBody(l Listing) []string {
	return []string{
		"Location: " + orDefault(l.Location, unknown),
		"Price: " + orDefault(l.Price, unknown),
		"Type: " + orDefault(l.Type, unknown),
		"Area: " + orDefault(l.Area, unknown) + " m²",
		"Rooms: " + orDefault(l.Rooms, unknown),
	}
}

// FormatListing renders a single uploaded listing.
func FormatListing(l Listing) string {
	return strings.Join(append([]string{"PROPERTY TO MATCH:"}, formatListingBody(l)...), "\n")
}

// FormatListingBulk renders the i-th (1-based) of several uploaded listings.
func FormatListingBulk(i int, l Listing) string {
	return strings.Join(append([]string{fmt.Sprintf("PROPERTY %d:", i)}, formatListingBody(l)...), "\n")
}

// ComparisonProperty is one side of a two-property comparison.
type ComparisonProperty struct {
	Address      string `mapstructure:"address"`
	Price        string `mapstructure:"price"`
	PropertyType string `mapstructure:"property_type"`
	Area         string `mapstructure:"area"`
	Rooms        string `mapstructure:"rooms"`
	Title        string `mapstructure:"title"`
	Description  string `mapstructure:"description"`
	Amenities    any    `mapstructure:"amenities"`
	Condition    string `mapstructure:"condition"`
}

// ClientInfo identifies who a comparison is prepared for.
type ClientInfo struct {
	FullName    string `mapstructure:"full_name"`
	Email       string `mapstructure:"email"`
	PhoneNumber string `mapstructure:"phone_number"`
}

var leadingNumber = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// LeadingNumber parses the numeric prefix of s ("250000 DZD" gives 250000).
func LeadingNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func comparisonPrice(s string) string {
	f, ok := LeadingNumber(s)
	if !ok || f == 0 {
		return unknown
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatComparisonProperty renders side ("A" or "B") of a comparison.
func FormatComparisonProperty(side string, p ComparisonProperty) string {
	return strings.Join([]string{
		"PROPERTY " + side + ":",
		"Location: " + orDefault(p.Address, unknown),
		"Price: " + comparisonPrice(p.Price),
		"Type: " + orDefault(p.PropertyType, unknown),
		"Area: " + orDefault(p.Area, unknown) + " m²",
		"Rooms: " + orDefault(p.Rooms, unknown),
		"Title: " + orDefault(p.Title, unknown),
		"Description: " + orDefault(p.Description, unknown),
		"Amenities: " + compactJSON(p.Amenities),
		"Condition: " + orDefault(p.Condition, unknown),
	}, "\n")
}

// FormatClientInfo renders the comparison's client block.
func FormatClientInfo(c ClientInfo) string {
	return strings.Join([]string{
		"CLIENT INFORMATION:",
		"Name: " + orDefault(c.FullName, unknown),
		"Email: " + orDefault(c.Email, unknown),
		"Phone: " + orDefault(c.PhoneNumber, unknown),
	}, "\n")
}

// FormatRemarks renders the agent's free-text remarks.
func FormatRemarks(remarks string) string {
	return "AGENT REMARKS:\n" + orDefault(strings.TrimSpace(remarks), "No specific remarks provided")
}

// PropertyMatchDocument is the context for ranking contacts against one
// stored property.
func PropertyMatchDocument(p models.Property, contacts []models.Contact) Document {
	return NewDocument(FormatProperty(p), joinClients(contacts))
}

// PropertiesMatchDocument is the context for ranking contacts against
// several stored properties, kept in the given order.
func PropertiesMatchDocument(props []models.Property, contacts []models.Contact) Document {
	blocks := make([]string, len(props))
	for i, p := range props {
		blocks[i] = FormatPropertyBulk(p)
	}
	return NewDocument(strings.Join(blocks, "\n\n"), joinClients(contacts))
}

// ListingDocument is the context for ranking the clients found in an
// uploaded document against one listing.
func ListingDocument(l Listing, chunks []string) Document {
	return NewDocument(FormatListing(l)).Append(chunks...)
}

// ListingsDocument is ListingDocument for several listings.
func ListingsDocument(ls []Listing, chunks []string) Document {
	blocks := make([]string, len(ls))
	for i, l := range ls {
		blocks[i] = FormatListingBulk(i+1, l)
	}
	return NewDocument(strings.Join(blocks, "\n\n")).Append(chunks...)
}

// ComparisonDocument is the context for comparing two properties.
func ComparisonDocument(a, b ComparisonProperty, client ClientInfo, remarks string) Document {
	return NewDocument(
		FormatComparisonProperty("A", a),
		FormatComparisonProperty("B", b),
		FormatClientInfo(client),
		FormatRemarks(remarks),
	)
}

// RecommendationDocument is the context for recommending available
// properties to one contact.
func RecommendationDocument(c models.Contact, available []models.Property) Document {
	blocks := make([]string, len(available))
	for i, p := range available {
		blocks[i] = FormatAvailableProperty(i+1, p)
	}
	return NewDocument(FormatPreferences(c), strings.Join(blocks, "\n\n"))
}

func joinClients(contacts []models.Contact) string {
	blocks := make([]string, len(contacts))
	for i, c := range contacts {
		blocks[i] = FormatClient(c)
	}
	return strings.Join(blocks, "\n\n")
}
