package connectors

// Zoom endpoints.
const (
	ZoomAuthURL    = "https://zoom.us/oauth/authorize"
	ZoomTokenURL   = "https://zoom.us/oauth/token"
	ZoomAPIBaseURL = "https://api.zoom.us/v2"
)

// NewZoom creates the Zoom connector.
func NewZoom(cfg Config) Connector {
	return newOAuthConnector("zoom", cfg, ZoomAuthURL, ZoomTokenURL, ZoomAPIBaseURL,
		[]string{"meeting:read", "meeting:write"},
		func(meetingID string) string { return "/meetings/" + meetingID + "/join" })
}
