package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key for a user's login session JTI.
func (r *CacheKeyStruct) UserSessionKey(userID string) string {
	return fmt.Sprintf("login:%s", userID)
}

// AttemptTimerKey returns the cache key for an attempt's start timestamp,
// used to serve remaining-time lookups without hitting PostgreSQL.
func (r *CacheKeyStruct) AttemptTimerKey(attemptID string) string {
	return fmt.Sprintf("attempt:%s:started_at", attemptID)
}

// ExamPaperKey returns the cache key for an exam's sanitized question payload.
func (r *CacheKeyStruct) ExamPaperKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper", examID)
}

var CacheKey = NewCacheKeyStruct()
