package provider

import "time"

type FearGreedPoint struct {
	Value          float64
	Classification string
	Timestamp      time.Time
}

// Post is a community post reduced to what sentiment scoring needs.
type Post struct {
	ID    string
	Title string
}
