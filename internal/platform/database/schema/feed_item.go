package schema

// FeedItemTable represents the 'feed.item' table
type FeedItemTable struct {
	Table                string
	ID                   string
	Type                 string
	SectorID             string
	Title                string
	Summary              string
	FromProvinceID       string
	ToProvinceID         string
	Mode                 string
	QuantityValue        string
	QuantityUnit         string
	Urgency              string
	Credibility          string
	VolumeScore          string
	Tags                 string
	SourceKind           string
	SourceLabel          string
	SourceURL            string
	Status               string
	AccessibilitySummary string
	GeoFrom              string
	GeoTo                string
	CreatedBy            string
	CreatedAt            string
	UpdatedAt            string
}

// FeedItem is the schema definition for feed.item
var FeedItem = FeedItemTable{
	Table:                "feed.item",
	ID:                   "id",
	Type:                 "type",
	SectorID:             "sectorid",
	Title:                "title",
	Summary:              "summary",
	FromProvinceID:       "fromprovinceid",
	ToProvinceID:         "toprovinceid",
	Mode:                 "mode",
	QuantityValue:        "quantityvalue",
	QuantityUnit:         "quantityunit",
	Urgency:              "urgency",
	Credibility:          "credibility",
	VolumeScore:          "volumescore",
	Tags:                 "tags",
	SourceKind:           "sourcekind",
	SourceLabel:          "sourcelabel",
	SourceURL:            "sourceurl",
	Status:               "status",
	AccessibilitySummary: "accessibilitysummary",
	GeoFrom:              "geofrom",
	GeoTo:                "geoto",
	CreatedBy:            "createdby",
	CreatedAt:            "createdat",
	UpdatedAt:            "updatedat",
}

// Columns returns all standard column names
func (t FeedItemTable) Columns() []string {
	return []string{
		t.ID, t.Type, t.SectorID, t.Title, t.Summary, t.FromProvinceID,
		t.ToProvinceID, t.Mode, t.QuantityValue, t.QuantityUnit, t.Urgency,
		t.Credibility, t.VolumeScore, t.Tags, t.SourceKind, t.SourceLabel,
		t.SourceURL, t.Status, t.AccessibilitySummary, t.GeoFrom, t.GeoTo,
		t.CreatedBy, t.CreatedAt, t.UpdatedAt,
	}
}
