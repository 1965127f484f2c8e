// Package statistics keeps cheap dashboard counters (issue volumes by
// status, open review queue) in Redis with a short TTL so the admin
// dashboard never hammers MySQL.
package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/civixhq/civix/app/models"
	"github.com/civixhq/civix/internal/pkg/cache"
	"github.com/civixhq/civix/internal/pkg/database"
)

const (
	CacheKeyIssuesTotal  = "statistics:issues:total"
	CacheKeyIssuesDaily  = "statistics:issues:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyIssuesStatus = "statistics:issues:status:%s"
	CacheKeyUsers        = "statistics:users:total"
	CacheExpiration      = 30 * time.Minute
)

// StatisticsData holds the counters for the admin dashboard
type StatisticsData struct {
	TotalIssues   int `json:"total_issues"`
	TodayIssues   int `json:"today_issues"`
	PendingReview int `json:"pending_review"`
	Resolved      int `json:"resolved"`
	TotalUsers    int `json:"total_users"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache checks whether the cached counters are stale
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached counters when stale
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache updates all statistics in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalIssues int64
	if err := db.Model(&models.Issue{}).Count(&totalIssues).Error; err != nil {
		log.Printf("Error counting total issues: %v", err)
		return err
	}

	var todayIssues int64
	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	if err := db.Model(&models.Issue{}).Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&todayIssues).Error; err != nil {
		log.Printf("Error counting today's issues: %v", err)
		return err
	}

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyIssuesTotal, strconv.FormatInt(totalIssues, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total issues: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyIssuesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayIssues, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's issues: %v", err)
		return err
	}

	for _, status := range []string{models.IssueStatusPendingReview, models.IssueStatusResolved} {
		var count int64
		if err := db.Model(&models.Issue{}).Where("status = ?", status).Count(&count).Error; err != nil {
			log.Printf("Error counting %s issues: %v", status, err)
			return err
		}
		key := fmt.Sprintf(CacheKeyIssuesStatus, status)
		if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching %s issue count: %v", status, err)
			return err
		}
	}

	if err := cache.Set(CacheKeyUsers, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}

	return nil
}

// cachedCount reads a cached counter, falling back to the database query and
// re-priming the cache on a miss.
func cachedCount(key string, query func() (int64, error)) int {
	val, err := cache.Get(key)
	if err != nil {
		count, err := query()
		if err != nil {
			log.Printf("Error counting for %s: %v", key, err)
			return 0
		}

		if err := cache.Set(key, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching %s: %v", key, err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetTotalIssues returns the total number of issues from cache or database
func GetTotalIssues() int {
	return cachedCount(CacheKeyIssuesTotal, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.Issue{}).Count(&count).Error
		return count, err
	})
}

// GetTodayIssues returns the number of issues reported today
func GetTodayIssues() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyIssuesDaily, today)

	return cachedCount(dailyKey, func() (int64, error) {
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)
		var count int64
		err := database.GetDB().Model(&models.Issue{}).
			Where("created_at BETWEEN ? AND ?", todayStart, todayEnd).Count(&count).Error
		return count, err
	})
}

// GetStatusCount returns the number of issues currently in the given status
func GetStatusCount(status string) int {
	key := fmt.Sprintf(CacheKeyIssuesStatus, status)
	return cachedCount(key, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.Issue{}).Where("status = ?", status).Count(&count).Error
		return count, err
	})
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	return cachedCount(CacheKeyUsers, func() (int64, error) {
		var count int64
		err := database.GetDB().Model(&models.User{}).Count(&count).Error
		return count, err
	})
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalIssues:   GetTotalIssues(),
		TodayIssues:   GetTodayIssues(),
		PendingReview: GetStatusCount(models.IssueStatusPendingReview),
		Resolved:      GetStatusCount(models.IssueStatusResolved),
		TotalUsers:    GetTotalUsers(),
	}
}
