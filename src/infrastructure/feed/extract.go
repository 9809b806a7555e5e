package feed

import (
	"strings"
	"time"

	"jobfeed/src/infrastructure/registry"
)

// Job is the canonical normalized record produced from one feed item.
// InternalID is a fresh synthetic id assigned per fetch; ExternalID is the
// provider-assigned identifier used for deduplication.
type Job struct {
	InternalID int64
	ExternalID string

	Title            string
	Description      string
	ShortDescription string
	Link             string
	Category         string
	Author           string
	Published        *time.Time

	// jobicy fields
	Company  string
	Location string
	JobType  string
	Salary   string
	Tags     []string

	// higheredjobs fields
	Institution         string
	Department          string
	JobLevel            string
	ApplicationDeadline string

	// Unrecognized fields copied verbatim for unknown sources.
	Extra map[string]string

	Remote bool
}

// coreFieldNames are consumed by the common extraction pass; the default
// source mapping copies everything else verbatim.
var coreFieldNames = map[string]bool{
	"title":       true,
	"description": true,
	"summary":     true,
	"content":     true,
	"link":        true,
	"guid":        true,
	"pubdate":     true,
	"published":   true,
	"category":    true,
	"author":      true,
	"creator":     true,
}

// sourceMapping declares, per canonical field, the candidate raw tag names
// in precedence order. Sources outside the closed set get the fallback
// behaviour of copying unrecognized tags into Extra.
type sourceMapping map[string][]string

var sourceMappings = map[registry.Source]sourceMapping{
	registry.SourceJobicy: {
		"company":  {"company"},
		"location": {"location"},
		"jobType":  {"jobType", "job_type"},
		"salary":   {"salary"},
		"tags":     {"tags"},
	},
	registry.SourceHigherEdJobs: {
		"institution":         {"institution"},
		"department":          {"department"},
		"jobLevel":            {"jobLevel", "job_level"},
		"applicationDeadline": {"deadline", "applicationDeadline"},
	},
}

// normalizeItem extracts one feed item into a Job. It returns false when
// the item lacks a title or link and must be dropped.
func normalizeItem(it item, endpoint registry.Endpoint, internalID int64) (Job, bool) {
	title := it.first("title")
	link := it.first("link", "guid")
	if title == "" || link == "" {
		return Job{}, false
	}

	description := CleanHTML(it.first("description", "summary", "content"))

	job := Job{
		InternalID:       internalID,
		ExternalID:       externalID(it, link),
		Title:            title,
		Description:      description,
		ShortDescription: shorten(description, 200),
		Link:             link,
		Category:         it.first("category"),
		Author:           it.first("author", "creator"),
		Published:        parseDate(it.first("pubDate", "published")),
	}

	switch endpoint.Source {
	case registry.SourceJobicy:
		m := sourceMappings[registry.SourceJobicy]
		job.Company = it.first(m["company"]...)
		job.Location = it.first(m["location"]...)
		job.JobType = NormalizeJobType(it.first(m["jobType"]...))
		job.Salary = it.first(m["salary"]...)
		job.Tags = splitTags(it.first(m["tags"]...))
	case registry.SourceHigherEdJobs:
		m := sourceMappings[registry.SourceHigherEdJobs]
		job.Institution = it.first(m["institution"]...)
		job.Department = it.first(m["department"]...)
		job.JobLevel = it.first(m["jobLevel"]...)
		job.ApplicationDeadline = it.first(m["applicationDeadline"]...)
	default:
		job.Extra = extraFields(it)
	}

	job.Remote = isRemote(endpoint.Source, job.Location)

	return job, true
}

// externalID resolves the provider identifier used as the dedup key:
// the guid when present, otherwise the canonical link.
func externalID(it item, link string) string {
	if guid := it.first("guid"); guid != "" {
		return guid
	}
	return link
}

// extraFields copies all non-core tags verbatim, first value wins.
func extraFields(it item) map[string]string {
	extra := make(map[string]string)
	for _, f := range it.Fields {
		name := strings.ToLower(f.XMLName.Local)
		if coreFieldNames[name] {
			continue
		}
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		if _, ok := extra[f.XMLName.Local]; !ok {
			extra[f.XMLName.Local] = v
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	}) {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// NormalizeJobType folds provider spellings into the closed enum. Anything
// unrecognized defaults to full-time, matching the stored schema default.
func NormalizeJobType(s string) string {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-")) {
	case "part-time":
		return "part-time"
	case "contract", "contractor":
		return "contract"
	case "freelance":
		return "freelance"
	case "internship", "intern":
		return "internship"
	default:
		return "full-time"
	}
}

// isRemote flags jobicy postings (a remote-only board) and any posting
// whose location mentions remote work.
func isRemote(source registry.Source, location string) bool {
	if source == registry.SourceJobicy {
		return true
	}
	return strings.Contains(strings.ToLower(location), "remote")
}
