package httputil

import (
	"net/http"
	"time"
)

const UserAgent = "listingdesk/1.0 (+https://listingdesk.app)"

type Clients struct {
	API    *http.Client // backing store, auth, object storage
	Lookup *http.Client // address lookups, short timeout
}

func NewClients() *Clients {
	return &Clients{
		API:    &http.Client{Timeout: 30 * time.Second},
		Lookup: &http.Client{Timeout: 5 * time.Second},
	}
}
