package repository

import (
	"strings"
	"time"
)

// DataClass identifies one kind of auxiliary data the resolver can fetch.
// Cache TTLs and provider chains are configured per class.
type DataClass string

const (
	ClassPriceIntraday DataClass = "price_intraday"
	ClassPriceDaily    DataClass = "price_daily"
	ClassFundamentals  DataClass = "fundamentals"
	ClassSentiment     DataClass = "sentiment"
	ClassMetadata      DataClass = "metadata"
)

// AllDataClasses lists every class the engine knows about, in resolution
// order for the default pipeline fan-out.
var AllDataClasses = []DataClass{
	ClassPriceIntraday,
	ClassPriceDaily,
	ClassFundamentals,
	ClassSentiment,
	ClassMetadata,
}

var defaultTTLs = map[DataClass]time.Duration{
	ClassPriceIntraday: 30 * time.Second,
	ClassPriceDaily:    4 * time.Hour,
	ClassFundamentals:  12 * time.Hour,
	ClassSentiment:     5 * time.Minute,
	ClassMetadata:      7 * 24 * time.Hour,
}

// DefaultTTL returns the cache lifetime for a class. Intraday prices decay in
// seconds, fundamentals in hours, static metadata in days.
func (c DataClass) DefaultTTL() time.Duration {
	if ttl, ok := defaultTTLs[c]; ok {
		return ttl
	}
	return time.Minute
}

// Valid reports whether c names a known class.
func (c DataClass) Valid() bool {
	_, ok := defaultTTLs[c]
	return ok
}

// NormalizeDataClass maps loose user input onto a DataClass.
func NormalizeDataClass(s string) DataClass {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "price", "price_intraday", "intraday":
		return ClassPriceIntraday
	case "price_daily", "daily":
		return ClassPriceDaily
	case "fundamentals", "fundamental":
		return ClassFundamentals
	case "sentiment":
		return ClassSentiment
	case "metadata", "meta":
		return ClassMetadata
	default:
		return DataClass(strings.ToLower(strings.TrimSpace(s)))
	}
}
