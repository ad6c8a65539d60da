// Package quotas contains the rate limiting model: quotas configured per project, the rate
// limits that result from exhausting them, the X-Sentry-Rate-Limits header format, and the
// RateLimiter implementations that count usage in memory or in Redis.
package quotas
