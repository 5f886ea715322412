package player

import (
	"context"

	"github.com/rs/zerolog/log"
)

// preloadAll adds every track URL to the offline cache. Failures are logged
// and skipped.
func (p *Player) preloadAll(ctx context.Context, urls []string) {
	log.Info().Msg("Preloading songs for offline use...")

	cached := 0
	for _, url := range urls {
		if ctx.Err() != nil {
			log.Debug().Msg("Preloading cancelled")
			return
		}
		if _, err := p.cache.Add(ctx, url); err != nil {
			log.Warn().Err(err).Msgf("Failed to cache: %s", url)
			continue
		}
		cached++
		log.Debug().Msgf("Cached: %s", url)
	}
	log.Info().Msgf("Cached %d of %d songs for offline use", cached, len(urls))
}
