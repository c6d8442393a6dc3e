package models

import (
	"encoding/base64"
	"strings"
)

// Feed is the ordered, duplicate-free list of connection strings served to a client
type Feed struct {
	Lines []string
}

// String joins the lines with newlines
func (f Feed) String() string {
	return strings.Join(f.Lines, "\n")
}

// Encoded returns the base64 subscription body
func (f Feed) Encoded() string {
	return base64.StdEncoding.EncodeToString([]byte(f.String()))
}

// Len returns the number of lines
func (f Feed) Len() int {
	return len(f.Lines)
}
