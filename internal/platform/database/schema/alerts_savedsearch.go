package schema

// AlertsSavedSearchTable represents the 'alerts.savedsearch' table
type AlertsSavedSearchTable struct {
	Table         string
	ID            string
	UserID        string
	Name          string
	Scope         string
	Query         string
	Severity      string
	SourceKind    string
	NotifyEnabled string
	LastRunAt     string
	CreatedAt     string
	UpdatedAt     string
}

// AlertsSavedSearch is the schema definition for alerts.savedsearch
var AlertsSavedSearch = AlertsSavedSearchTable{
	Table:         "alerts.savedsearch",
	ID:            "id",
	UserID:        "userid",
	Name:          "name",
	Scope:         "scope",
	Query:         "query",
	Severity:      "severity",
	SourceKind:    "sourcekind",
	NotifyEnabled: "notifyenabled",
	LastRunAt:     "lastrunat",
	CreatedAt:     "createdat",
	UpdatedAt:     "updatedat",
}
