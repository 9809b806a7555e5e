// Package registry is the static catalogue of known job feed endpoints.
package registry

import (
	"net/url"
	"strings"
)

// Source identifies a feed provider.
type Source string

const (
	SourceJobicy       Source = "jobicy"
	SourceHigherEdJobs Source = "higheredjobs"
)

// Endpoint describes one feed URL belonging to a provider.
type Endpoint struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Source      Source `json:"source"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{
		Name:        "jobicy-general",
		URL:         "https://jobicy.com/?feed=job_feed",
		Source:      SourceJobicy,
		Description: "General job feed",
	},
	{
		Name:        "jobicy-smm-fulltime",
		URL:         "https://jobicy.com/?feed=job_feed&job_categories=smm&job_types=full-time",
		Source:      SourceJobicy,
		Description: "Social Media Marketing full-time jobs",
	},
	{
		Name:        "jobicy-seller-france",
		URL:         "https://jobicy.com/?feed=job_feed&job_categories=seller&job_types=full-time&search_region=france",
		Source:      SourceJobicy,
		Description: "Sales jobs in France",
	},
	{
		Name:        "jobicy-design",
		URL:         "https://jobicy.com/?feed=job_feed&job_categories=design-multimedia",
		Source:      SourceJobicy,
		Description: "Design and multimedia jobs",
	},
	{
		Name:        "jobicy-data-science",
		URL:         "https://jobicy.com/?feed=job_feed&job_categories=data-science",
		Source:      SourceJobicy,
		Description: "Data science jobs",
	},
	{
		Name:        "jobicy-copywriting",
		URL:         "https://jobicy.com/?feed=job_feed&job_categories=copywriting",
		Source:      SourceJobicy,
		Description: "Copywriting jobs",
	},
	{
		Name:        "jobicy-business",
		URL:         "https://jobicy.com/?feed=job_feed&job_categories=business",
		Source:      SourceJobicy,
		Description: "Business jobs",
	},
	{
		Name:        "jobicy-management",
		URL:         "https://jobicy.com/?feed=job_feed&job_categories=management",
		Source:      SourceJobicy,
		Description: "Management jobs",
	},
	{
		Name:        "higher-ed-jobs",
		URL:         "https://www.higheredjobs.com/rss/articleFeed.cfm",
		Source:      SourceHigherEdJobs,
		Description: "Higher education jobs",
	},
}

// Endpoints returns all configured feed endpoints.
func Endpoints() []Endpoint {
	out := make([]Endpoint, len(endpoints))
	copy(out, endpoints)
	return out
}

// Sources returns the distinct set of provider tags, in catalogue order.
func Sources() []Source {
	seen := make(map[Source]bool)
	var sources []Source
	for _, e := range endpoints {
		if !seen[e.Source] {
			seen[e.Source] = true
			sources = append(sources, e.Source)
		}
	}
	return sources
}

// Categories returns the distinct category tags parsable from endpoint URLs.
func Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, e := range endpoints {
		u, err := url.Parse(e.URL)
		if err != nil {
			continue
		}
		c := u.Query().Get("job_categories")
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		categories = append(categories, c)
	}
	return categories
}

// SourceForURL infers the provider from a feed URL. Unknown hosts fall
// back to higheredjobs, matching the original import contract.
func SourceForURL(feedURL string) Source {
	if strings.Contains(feedURL, "jobicy.com") {
		return SourceJobicy
	}
	return SourceHigherEdJobs
}
