package models

import (
	"bytes"
	"encoding/json"
)

// InboundClient represents a client entry inside an inbound's settings.
// The raw object is kept so that updates only touch the fields we change.
type InboundClient struct {
	ID         string `json:"id"`
	Password   string `json:"password"`
	Email      string `json:"email"`
	Flow       string `json:"flow"`
	Enable     bool   `json:"enable"`
	ExpiryTime int64  `json:"expiryTime"`
	SubID      string `json:"subId"`

	raw map[string]any
}

type inboundClientFields InboundClient

// UnmarshalJSON decodes the typed fields and keeps the full object
func (c *InboundClient) UnmarshalJSON(data []byte) error {
	var fields inboundClientFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&raw); err != nil {
		return err
	}

	*c = InboundClient(fields)
	c.raw = raw
	return nil
}

// MarshalJSON encodes the client as the panel expects it
func (c InboundClient) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.ToDictionary())
}

// ExternalID returns the identifier provisioned keys refer to.
// vless/vmess use the uuid, trojan the password, shadowsocks the email.
func (c *InboundClient) ExternalID() string {
	if c.ID != "" {
		return c.ID
	}
	if c.Password != "" {
		return c.Password
	}
	return c.Email
}

// ToDictionary converts the client to a map for API requests
func (c *InboundClient) ToDictionary() map[string]any {
	result := make(map[string]any, len(c.raw)+7)
	for k, v := range c.raw {
		result[k] = v
	}

	if c.ID != "" {
		result["id"] = c.ID
	}
	if c.Password != "" {
		result["password"] = c.Password
	}
	result["email"] = c.Email
	result["flow"] = c.Flow
	result["enable"] = c.Enable
	result["expiryTime"] = c.ExpiryTime
	if c.SubID != "" {
		result["subId"] = c.SubID
	}

	return result
}

// WithFlow returns a copy of the client with the flow replaced
func (c InboundClient) WithFlow(flow string) InboundClient {
	c.Flow = flow
	return c
}
