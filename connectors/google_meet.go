package connectors

// Google Meet endpoints.
const (
	GoogleAuthURL        = "https://accounts.google.com/o/oauth2/v2/auth"
	GoogleTokenURL       = "https://oauth2.googleapis.com/token"
	GoogleMeetAPIBaseURL = "https://meet.googleapis.com/v1"
)

// NewGoogleMeet creates the Google Meet connector.
func NewGoogleMeet(cfg Config) Connector {
	return newOAuthConnector("google_meet", cfg, GoogleAuthURL, GoogleTokenURL, GoogleMeetAPIBaseURL,
		[]string{"https://www.googleapis.com/auth/meetings.space.readonly"},
		func(meetingID string) string { return "/meetings/" + meetingID + ":join" })
}
