package config

import "fmt"

// MaxSimilarity is the largest accepted edit-distance tolerance.
const MaxSimilarity = 14

// Validate checks every section and returns the first failure.
func (c *Config) Validate() error {
	if err := c.Blocker.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "memory", "database":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache: redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache: unknown backend %q", c.Cache.Backend)
	}
	switch c.Moderation.Driver {
	case "log":
	case "onebot":
		if c.Moderation.BaseURL == "" {
			return fmt.Errorf("moderation: base_url is required for the onebot driver")
		}
	default:
		return fmt.Errorf("moderation: unknown driver %q", c.Moderation.Driver)
	}
	return nil
}

// Validate checks the blocker options against their documented ranges.
func (c *BlockerConfig) Validate() error {
	if c.Similarity < 0 || c.Similarity > MaxSimilarity {
		return fmt.Errorf("blocker: similarity must be within 0..%d, got %d", MaxSimilarity, c.Similarity)
	}
	if c.CacheTime < 0 {
		return fmt.Errorf("blocker: cache_time must not be negative")
	}
	if c.MuteTime < 0 {
		return fmt.Errorf("blocker: mute_time must not be negative")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("blocker: page_size must be positive")
	}
	if c.HashBits != 8 && c.HashBits != 16 {
		return fmt.Errorf("blocker: hash_bits must be 8 or 16, got %d", c.HashBits)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("blocker: fetch_timeout must be positive")
	}
	if c.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("blocker: max_concurrent_fetches must be positive")
	}
	return nil
}
