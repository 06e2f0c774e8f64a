package schema

// AlertsUserAlertTable represents the 'alerts.useralert' table
type AlertsUserAlertTable struct {
	Table      string
	ID         string
	UserID     string
	Title      string
	Message    string
	Severity   string
	SourceType string
	SourceID   string
	Metadata   string
	ReadAt     string
	CreatedAt  string
	UpdatedAt  string
}

// AlertsUserAlert is the schema definition for alerts.useralert
var AlertsUserAlert = AlertsUserAlertTable{
	Table:      "alerts.useralert",
	ID:         "id",
	UserID:     "userid",
	Title:      "title",
	Message:    "message",
	Severity:   "severity",
	SourceType: "sourcetype",
	SourceID:   "sourceid",
	Metadata:   "metadata",
	ReadAt:     "readat",
	CreatedAt:  "createdat",
	UpdatedAt:  "updatedat",
}

// Columns returns all standard column names
func (t AlertsUserAlertTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.Title, t.Message, t.Severity, t.SourceType,
		t.SourceID, t.Metadata, t.ReadAt, t.CreatedAt, t.UpdatedAt,
	}
}
