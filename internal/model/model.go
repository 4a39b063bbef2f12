package model

import "time"

// Link maps a short identifier to its target until Expiration.
type Link struct {
	ID         string    `db:"id" json:"id"`
	TargetURL  string    `db:"target_url" json:"targetUrl"`
	Expiration time.Time `db:"expiration" json:"expiration"`
}

// LinkSpecification is the request body for creating or updating a link.
type LinkSpecification struct {
	TargetURL  string    `json:"targetUrl"`
	Expiration time.Time `json:"expiration"`
}

// StatisticsEvent is one recorded redirect hit.
type StatisticsEvent struct {
	LinkID     string    `db:"link_id" json:"linkId"`
	Referer    *string   `db:"referer" json:"referer"`
	UserAgent  *string   `db:"user_agent" json:"userAgent"`
	RecordedAt time.Time `db:"recorded_at" json:"recordedAt"`
}

// LinkStatistics counts the events of one link sharing a referer and user agent.
type LinkStatistics struct {
	Hits      int64   `db:"hits" json:"hits"`
	Referer   *string `db:"referer" json:"referer"`
	UserAgent *string `db:"user_agent" json:"userAgent"`
}

type RedirectTarget struct {
	Location     string
	CacheControl string
}
