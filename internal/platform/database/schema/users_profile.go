package schema

// UserProfileTable represents the 'users.profile' table
type UserProfileTable struct {
	Table             string
	UserID            string
	DisplayName       string
	Organization      string
	Province          string
	Language          string
	NotificationPrefs string
	UpdatedAt         string
}

// UserProfile is the schema definition for users.profile
var UserProfile = UserProfileTable{
	Table:             "users.profile",
	UserID:            "userid",
	DisplayName:       "displayname",
	Organization:      "organization",
	Province:          "province",
	Language:          "language",
	NotificationPrefs: "notificationprefs",
	UpdatedAt:         "updatedat",
}
