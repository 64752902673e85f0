package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/maxaizer/bulk-scraper/internal/entities"
	gocache "github.com/patrickmn/go-cache"
)

type opportunityRepository interface {
	ExistsSimilar(ctx context.Context, titlePrefix, orgPrefix string) (bool, error)
	Add(ctx context.Context, opportunity entities.Opportunity) error
}

// CachedOpportunities remembers positive duplicate lookups so repeated listings skip
// the LIKE query. Misses are never cached, a record added later must still be found.
type CachedOpportunities struct {
	repo  opportunityRepository
	cache *gocache.Cache
}

func NewCachedOpportunities(repo opportunityRepository, ttl time.Duration) *CachedOpportunities {
	return &CachedOpportunities{repo: repo, cache: gocache.New(ttl, 2*ttl)}
}

func (c CachedOpportunities) ExistsSimilar(ctx context.Context, titlePrefix, orgPrefix string) (bool, error) {
	key := cacheKey(titlePrefix, orgPrefix)
	if _, found := c.cache.Get(key); found {
		return true, nil
	}

	exists, err := c.repo.ExistsSimilar(ctx, titlePrefix, orgPrefix)
	if exists {
		c.cache.SetDefault(key, struct{}{})
	}
	return exists, err
}

func (c CachedOpportunities) Add(ctx context.Context, opportunity entities.Opportunity) error {
	return c.repo.Add(ctx, opportunity)
}

func cacheKey(titlePrefix, orgPrefix string) string {
	return strings.ToLower(titlePrefix) + "\x00" + strings.ToLower(orgPrefix)
}
