package geoip

import "fmt"

// Reason classifies the outcome of a location lookup.
type Reason int

const (
	// ReasonNoAddress means no IP address was supplied.
	ReasonNoAddress Reason = iota
	// ReasonResolved means the database returned a record.
	ReasonResolved
	// ReasonNotFound means the address is absent from the database.
	ReasonNotFound
	// ReasonInvalidAddress means the input is not an IP address.
	ReasonInvalidAddress
	// ReasonDatabaseUnavailable means the database file is missing, unreadable or not loaded.
	ReasonDatabaseUnavailable
	// ReasonLookupError means the lookup failed unexpectedly.
	ReasonLookupError
)

var reasonNames = map[Reason]string{
	ReasonNoAddress:           "no_address",
	ReasonResolved:            "resolved",
	ReasonNotFound:            "not_found",
	ReasonInvalidAddress:      "invalid_address",
	ReasonDatabaseUnavailable: "database_unavailable",
	ReasonLookupError:         "lookup_error",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}

	return fmt.Sprintf("reason(%d)", int(r))
}

const unknownPart = "N/A"

// Result is the outcome of resolving one address.
type Result struct {
	Reason  Reason
	City    string
	Country string
	// Err holds the underlying failure for ReasonLookupError and ReasonDatabaseUnavailable.
	Err error
}

// String flattens the result into the location text stored on events.
func (r Result) String() string {
	switch r.Reason {
	case ReasonNoAddress:
		return "N/A (No IP)"
	case ReasonResolved:
		if r.City == "" && r.Country == "" {
			return "Location Data Unavailable"
		}

		return orUnknown(r.City) + ", " + orUnknown(r.Country)
	case ReasonNotFound:
		return "IP Address Not Found in DB"
	case ReasonInvalidAddress:
		return "Invalid IP Address Format for Lookup"
	case ReasonDatabaseUnavailable:
		return "GeoIP DB Not Available"
	default:
		return "GeoIP Lookup Error"
	}
}

func orUnknown(s string) string {
	if s == "" {
		return unknownPart
	}

	return s
}
