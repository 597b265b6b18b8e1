package models

// CrawlState is the lifecycle state of one crawl invocation
type CrawlState string

const (
	CrawlStateUnset   CrawlState = ""        // Zero value, crawl not started
	CrawlStateSeeded  CrawlState = "seeded"  // Start link queued, nothing attempted
	CrawlStateRunning CrawlState = "running" // Decision loop active
	CrawlStateDrained CrawlState = "drained" // Frontier empty and nothing in flight
)

// String implements fmt.Stringer for logging
func (s CrawlState) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the state is a known lifecycle value
func (s CrawlState) IsValid() bool {
	switch s {
	case CrawlStateSeeded, CrawlStateRunning, CrawlStateDrained:
		return true
	}
	return false
}

// ResultStatus is the outcome recorded for an attempted link
type ResultStatus string

const (
	ResultStatusUnset   ResultStatus = ""
	ResultStatusSuccess ResultStatus = "success"
	ResultStatusFailure ResultStatus = "failure"
	ResultStatusGated   ResultStatus = "gated" // Succeeded but expansion was vetoed
)

// String implements fmt.Stringer for logging
func (s ResultStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s ResultStatus) IsValid() bool {
	switch s {
	case ResultStatusSuccess, ResultStatusFailure, ResultStatusGated:
		return true
	}
	return false
}
