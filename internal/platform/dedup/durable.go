package dedup

import (
	"time"

	"stakegate/internal/platform/logger"
	"stakegate/internal/platform/statefile"
)

// Durable is a Store backed by the legacy statefile, so dedup keys
// survive a process restart. Same contract as Memory, including lazy GC
type Durable struct {
	ttl  time.Duration
	file *statefile.File
	log  logger.Logger
	now  func() time.Time
}

// NewDurable wraps an open statefile; ttl <= 0 uses DefaultTTL
func NewDurable(file *statefile.File, ttl time.Duration) *Durable {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Durable{
		ttl:  ttl,
		file: file,
		log:  *logger.Named("dedup"),
		now:  time.Now,
	}
}

// Seen implements Store
func (d *Durable) Seen(key string) bool {
	seen := false
	err := d.file.Update(func(s *statefile.State) {
		d.gc(s)
		_, seen = s.Dedup[key]
	})
	if err != nil {
		d.log.Error().Err(err).Msg("persist after gc failed")
	}
	return seen
}

// Add implements Store
func (d *Durable) Add(key string) {
	err := d.file.Update(func(s *statefile.State) {
		d.gc(s)
		s.Dedup[key] = d.now().Add(d.ttl)
	})
	if err != nil {
		d.log.Error().Err(err).Str("key", key).Msg("persist dedup key failed")
	}
}

func (d *Durable) gc(s *statefile.State) {
	now := d.now()
	for k, exp := range s.Dedup {
		if !exp.After(now) {
			delete(s.Dedup, k)
		}
	}
}
