package models

// Host represents a registered remote panel
type Host struct {
	Name      string `json:"host_name"`
	URL       string `json:"host_url"`
	Username  string `json:"host_username"`
	Password  string `json:"-"`
	InboundID int    `json:"host_inbound_id"`
	Enabled   bool   `json:"enabled"`
}
