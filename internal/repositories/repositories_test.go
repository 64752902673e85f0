package repositories

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/maxaizer/bulk-scraper/internal/config"
	"github.com/maxaizer/bulk-scraper/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDbContext(t *testing.T) *DbContext {
	t.Helper()

	dbCtx, err := NewDbContext(config.DBConfig{
		Driver:           config.DriverSqlite,
		ConnectionString: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	sqlDB, err := dbCtx.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, dbCtx.Migrate())
	t.Cleanup(func() { _ = dbCtx.Close() })
	return dbCtx
}

func testBulkConfig(id string) entities.BulkConfig {
	return entities.BulkConfig{
		ID:       id,
		Name:     "Tech jobs",
		IsActive: true,
		Sites: entities.SiteConfigs{{
			Name:    "Example",
			BaseURL: "https://example.com",
			Selectors: entities.Selectors{
				Container: ".job",
				Title:     ".title",
				Company:   ".company",
			},
			Filters: entities.Filters{Keywords: []string{"go"}},
		}},
	}
}

func Test_BulkConfigs_AddAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewBulkConfigsRepository(newTestDbContext(t).DB)

	require.NoError(t, repo.Add(ctx, testBulkConfig("cfg-1")))

	stored, err := repo.GetByID(ctx, "cfg-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Tech jobs", stored.Name)
	require.Len(t, stored.Sites, 1)
	assert.Equal(t, ".company", stored.Sites[0].Selectors.Company)
	assert.Equal(t, []string{"go"}, stored.Sites[0].Filters.Keywords)

	missing, err := repo.GetByID(ctx, "nope")
	assert.NoError(t, err)
	assert.Nil(t, missing)
}

func Test_BulkConfigs_GetActive_SkipsInactive(t *testing.T) {
	ctx := context.Background()
	dbCtx := newTestDbContext(t)
	repo := NewBulkConfigsRepository(dbCtx.DB)

	require.NoError(t, repo.Add(ctx, testBulkConfig("active")))
	require.NoError(t, repo.Add(ctx, testBulkConfig("inactive")))
	require.NoError(t, dbCtx.DB.Model(&entities.BulkConfig{}).Where("id = ?", "inactive").
		Update("is_active", false).Error)

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "active", active[0].ID)
}

func Test_BulkConfigs_SaveReplacesExisting(t *testing.T) {
	ctx := context.Background()
	repo := NewBulkConfigsRepository(newTestDbContext(t).DB)

	config := testBulkConfig("cfg-1")
	require.NoError(t, repo.Save(ctx, config))

	config.Name = "Renamed"
	config.IsActive = false
	require.NoError(t, repo.Save(ctx, config))

	stored, err := repo.GetByID(ctx, "cfg-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Name)
	assert.False(t, stored.IsActive)

	active, err := repo.GetActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func Test_JobRuns_CreateAndFinish(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunsRepository(newTestDbContext(t).DB)

	run, err := repo.Create(ctx, "cfg-1")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, entities.JobRunning, run.Status)

	completedAt := time.Now().UTC()
	run.Status = entities.JobCompleted
	run.CompletedAt = &completedAt
	run.TotalFound = 3
	run.TotalPublished = 2
	run.ErrorsCount = 1
	run.Results = entities.SiteResults{
		"A": {Found: 3, Filtered: 2, Published: 2, Status: entities.SiteCompleted},
		"B": {Status: entities.SiteFailed, Error: "HTTP 503"},
	}
	require.NoError(t, repo.Finish(ctx, *run))

	stored, err := repo.GetByID(ctx, run.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, entities.JobCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
	assert.Equal(t, 3, stored.TotalFound)
	assert.Equal(t, 2, stored.TotalPublished)
	assert.Equal(t, 1, stored.ErrorsCount)
	assert.Equal(t, run.Results, stored.Results)
	assert.Nil(t, stored.ErrorMessage)
}

func Test_JobRuns_MarkInterrupted(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunsRepository(newTestDbContext(t).DB)

	running, err := repo.Create(ctx, "cfg-1")
	require.NoError(t, err)

	finished, err := repo.Create(ctx, "cfg-1")
	require.NoError(t, err)
	now := time.Now().UTC()
	finished.Status = entities.JobCompleted
	finished.CompletedAt = &now
	require.NoError(t, repo.Finish(ctx, *finished))

	affected, err := repo.MarkInterrupted(ctx, "interrupted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	stored, err := repo.GetByID(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.JobFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "interrupted", *stored.ErrorMessage)
}

func Test_JobRuns_RemoveFinishedBefore_KeepsRunning(t *testing.T) {
	ctx := context.Background()
	repo := NewJobRunsRepository(newTestDbContext(t).DB)

	running, err := repo.Create(ctx, "cfg-1")
	require.NoError(t, err)

	old, err := repo.Create(ctx, "cfg-1")
	require.NoError(t, err)
	completedAt := time.Now().UTC().Add(-48 * time.Hour)
	old.Status = entities.JobFailed
	old.CompletedAt = &completedAt
	require.NoError(t, repo.Finish(ctx, *old))

	removed, err := repo.RemoveFinishedBefore(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	stored, err := repo.GetByID(ctx, running.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored)
}

func Test_Categories_CreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewCategoriesRepository(newTestDbContext(t).DB)

	none, err := repo.GetFirstActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := repo.Create(ctx, entities.DefaultCategoryName, entities.DefaultCategoryDescription)
	require.NoError(t, err)
	second, err := repo.Create(ctx, entities.DefaultCategoryName, entities.DefaultCategoryDescription)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	active, err := repo.GetFirstActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, first.ID, active.ID)
}

func Test_Opportunities_ExistsSimilar(t *testing.T) {
	ctx := context.Background()
	dbCtx := newTestDbContext(t)
	repo := NewOpportunitiesRepository(dbCtx.DB)

	require.NoError(t, repo.Add(ctx, entities.Opportunity{
		ID:           "opp-1",
		Title:        "Senior Go Engineer (Remote)",
		Organization: "Acme Corporation",
		CategoryID:   "cat",
		Source:       entities.OpportunitySourceBulkScraped,
	}))
	require.NoError(t, repo.Add(ctx, entities.Opportunity{
		ID:           "opp-2",
		Title:        "Économiste Senior",
		Organization: "Österreich Bank",
		CategoryID:   "cat",
		Source:       entities.OpportunitySourceBulkScraped,
	}))

	tests := []struct {
		name   string
		title  string
		org    string
		exists bool
	}{
		{"same", "Senior Go Engineer (Remote)", "Acme Corporation", true},
		{"case insensitive", "senior go engineer", "ACME", true},
		{"other organization", "Senior Go Engineer", "Globex", false},
		{"other title", "Rust Engineer", "Acme", false},
		{"percent is literal", "Senior%Engineer", "Acme", false},
		{"underscore is literal", "Senior_Go", "Acme", false},
		{"non-ascii same", "Économiste Senior", "Österreich Bank", true},
		{"non-ascii case insensitive", "ÉCONOMISTE senior", "österreich BANK", true},
		{"non-ascii other organization", "Économiste", "Zürich Bank", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := repo.ExistsSimilar(ctx, tt.title, tt.org)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, exists)
		})
	}

	var count int64
	require.NoError(t, dbCtx.DB.Model(&entities.Opportunity{}).
		Where("source = ?", entities.OpportunitySourceBulkScraped).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func Test_Opportunities_SearchColumnsAreLowercased(t *testing.T) {
	ctx := context.Background()
	dbCtx := newTestDbContext(t)
	repo := NewOpportunitiesRepository(dbCtx.DB)

	require.NoError(t, repo.Add(ctx, entities.Opportunity{
		ID: "opp-1", Title: "ÉCONOMISTE Senior", Organization: "ÖSTERREICH Bank", CategoryID: "cat",
	}))

	var stored entities.Opportunity
	require.NoError(t, dbCtx.DB.First(&stored, "id = ?", "opp-1").Error)
	assert.Equal(t, "ÉCONOMISTE Senior", stored.Title)
	assert.Equal(t, "économiste senior", stored.TitleSearch)
	assert.Equal(t, "österreich bank", stored.OrganizationSearch)
}

func Test_Opportunities_EmptyTagsStoredAsNull(t *testing.T) {
	ctx := context.Background()
	dbCtx := newTestDbContext(t)
	repo := NewOpportunitiesRepository(dbCtx.DB)

	require.NoError(t, repo.Add(ctx, entities.Opportunity{
		ID: "opp-1", Title: "Go developer", Organization: "Acme", CategoryID: "cat",
	}))

	var nullTags int64
	require.NoError(t, dbCtx.DB.Model(&entities.Opportunity{}).Where("tags IS NULL").Count(&nullTags).Error)
	assert.Equal(t, int64(1), nullTags)
}
