package jobctrl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// JobPosting is the canonical stored record. ExternalID is the
// provider-assigned identifier and the sole dedup key: re-ingestion of the
// same ExternalID always updates in place, never duplicates.
type JobPosting struct {
	ID               int64      `gorm:"primaryKey" json:"id"`
	ExternalID       string     `gorm:"uniqueIndex;not null;column:external_id" json:"externalId"`
	Title            string     `gorm:"not null" json:"title"`
	Company          string     `gorm:"not null" json:"company"`
	Location         string     `json:"location"`
	Description      string     `json:"description"`
	ShortDescription string     `json:"shortDescription"`
	Category         string     `gorm:"index:idx_job_postings_category_type" json:"category"`
	JobType          string     `gorm:"index:idx_job_postings_category_type" json:"jobType"`
	Salary           string     `json:"salary"`
	PublishedDate    *time.Time `gorm:"index:idx_job_postings_published,sort:desc" json:"publishedDate"`
	ApplicationURL   string     `gorm:"column:application_url" json:"applicationUrl"`
	CompanyURL       string     `gorm:"column:company_url" json:"companyUrl"`
	Requirements     []string   `gorm:"serializer:json" json:"requirements"`
	Benefits         []string   `gorm:"serializer:json" json:"benefits"`
	IsActive         bool       `gorm:"default:true" json:"isActive"`
	Source           string     `gorm:"index;not null" json:"source"`
	SourceURL        string     `gorm:"column:source_url;not null" json:"sourceUrl"`
	SourceName       string     `json:"sourceName"`
	Remote           bool       `json:"remote"`
	LastUpdated      time.Time  `json:"lastUpdated"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type JobService struct {
	db        *gorm.DB
	snowflake *snowflake.Node
}

func NewJobService(db *gorm.DB) (*JobService, error) {
	node, err := snowflake.NewNode(1) // Node number 1 for job postings
	if err != nil {
		return nil, fmt.Errorf("failed to create snowflake node: %v", err)
	}

	return &JobService{
		db:        db,
		snowflake: node,
	}, nil
}

// GetByExternalID returns the stored posting for the dedup key, or nil
// when none exists.
func (s *JobService) GetByExternalID(ctx context.Context, externalID string) (*JobPosting, error) {
	var posting JobPosting
	result := s.db.WithContext(ctx).Where("external_id = ?", externalID).First(&posting)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job posting: %v", result.Error)
	}
	return &posting, nil
}

// Create inserts a new posting, assigning its internal id.
func (s *JobService) Create(ctx context.Context, posting *JobPosting) error {
	posting.ID = s.snowflake.Generate().Int64()
	posting.LastUpdated = time.Now()

	result := s.db.WithContext(ctx).Create(posting)
	if result.Error != nil {
		return fmt.Errorf("failed to create job posting: %v", result.Error)
	}
	return nil
}

// Update overwrites all fields of the stored posting with the same
// external id and refreshes LastUpdated.
func (s *JobService) Update(ctx context.Context, posting *JobPosting) error {
	posting.LastUpdated = time.Now()

	result := s.db.WithContext(ctx).Model(&JobPosting{}).
		Where("external_id = ?", posting.ExternalID).
		Updates(map[string]interface{}{
			"title":             posting.Title,
			"company":           posting.Company,
			"location":          posting.Location,
			"description":       posting.Description,
			"short_description": posting.ShortDescription,
			"category":          posting.Category,
			"job_type":          posting.JobType,
			"salary":            posting.Salary,
			"published_date":    posting.PublishedDate,
			"application_url":   posting.ApplicationURL,
			"company_url":       posting.CompanyURL,
			"is_active":         posting.IsActive,
			"source":            posting.Source,
			"source_url":        posting.SourceURL,
			"source_name":       posting.SourceName,
			"remote":            posting.Remote,
			"last_updated":      posting.LastUpdated,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update job posting: %v", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("job posting not found")
	}
	return nil
}
