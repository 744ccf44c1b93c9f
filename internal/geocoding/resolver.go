package geocoding

import (
	"context"

	"github.com/mbsoft/ohmy-tracks/internal/routes"
	"github.com/mbsoft/ohmy-tracks/pkg/logger"
)

// ProgressFunc receives periodic updates during a geocoding batch, keyed by
// pass number. Used to push progress to dashboard clients.
type ProgressFunc func(pass, processed, succeeded, failed int)

// Resolver annotates every non-break delivery of a route set with
// coordinates using a two-pass strategy: address-based first, then
// location-name with a spatial proximity hint for anything unresolved.
//
// Deliveries are processed strictly sequentially so the rate policy's
// inter-request pause actually throttles the provider. Pass 2 starts only
// after pass 1 has finished for all routes, because the proximity search
// depends on neighbor coordinates across the whole route.
type Resolver struct {
	geocoder   Geocoder
	cache      *Cache
	limiter    RatePolicy
	radiusM    int
	onProgress ProgressFunc
	logger     *logger.Logger
}

// NewResolver creates a resolver. onProgress may be nil.
func NewResolver(geocoder Geocoder, cache *Cache, limiter RatePolicy, radiusM int, onProgress ProgressFunc, log *logger.Logger) *Resolver {
	return &Resolver{
		geocoder:   geocoder,
		cache:      cache,
		limiter:    limiter,
		radiusM:    radiusM,
		onProgress: onProgress,
		logger:     log.Named("geocode-resolver"),
	}
}

// Resolve runs both passes over the route set and attaches aggregate stats.
// Per-delivery failures become data on the delivery; the batch always
// completes. The cache is flushed once at the very end.
func (r *Resolver) Resolve(ctx context.Context, set *routes.RouteSet) *routes.RouteSet {
	r.logger.Info("Starting geocoding batch", logger.Int("deliveries", set.TotalDeliveries))

	stats := &routes.GeocodingStats{Total: set.TotalDeliveries}

	r.runAddressPass(ctx, set, stats)
	r.runLocationNamePass(ctx, set, stats)

	// Final success/failure tallies come from the deliveries themselves;
	// pass 2 overwrites pass 1 failures in place.
	for _, route := range set.Routes {
		for _, d := range route.Deliveries {
			if d.IsBreak || d.Geocode == nil {
				continue
			}
			if d.Geocode.Success {
				stats.Succeeded++
			} else {
				stats.Failed++
			}
		}
	}
	stats.CacheSize = r.cache.Size()
	set.GeocodingStats = stats

	if err := r.cache.Save(); err != nil {
		r.logger.Error("Failed to persist geocode cache", logger.Error(err))
	}

	hitRate := 0.0
	if stats.CacheHits+stats.CacheMisses > 0 {
		hitRate = float64(stats.CacheHits) / float64(stats.CacheHits+stats.CacheMisses) * 100
	}
	r.logger.Info("Geocoding batch complete",
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("failed", stats.Failed),
		logger.Int("cache_hits", stats.CacheHits),
		logger.Int("cache_misses", stats.CacheMisses),
		logger.Float64("cache_hit_rate_pct", hitRate))

	return set
}

// runAddressPass geocodes every delivery that has an address. Deliveries
// without one are left for pass 2 with a nil geocode.
func (r *Resolver) runAddressPass(ctx context.Context, set *routes.RouteSet, stats *routes.GeocodingStats) {
	for _, route := range set.Routes {
		for _, d := range route.Deliveries {
			if d.IsBreak {
				continue
			}
			if d.Address == "" {
				d.Geocode = nil
				continue
			}

			stats.Pass1.Processed++

			if cached := r.lookupCache(d.LocationID, stats); cached != nil {
				d.Geocode = cached
			} else {
				result := r.call(ctx, Request{Query: d.Address}, "address")
				if result.Success {
					r.cache.Set(d.LocationID, result)
				}
				d.Geocode = result
			}

			if d.Geocode.Success {
				stats.Pass1.Succeeded++
			} else {
				stats.Pass1.Failed++
			}
			r.reportProgress(1, stats.Pass1)
		}
	}

	r.logger.Info("Address pass complete",
		logger.Int("processed", stats.Pass1.Processed),
		logger.Int("succeeded", stats.Pass1.Succeeded),
		logger.Int("failed", stats.Pass1.Failed))
}

// runLocationNamePass retries unresolved deliveries by location name,
// biased toward the nearest successfully geocoded stop in the same route.
func (r *Resolver) runLocationNamePass(ctx context.Context, set *routes.RouteSet, stats *routes.GeocodingStats) {
	for _, route := range set.Routes {
		for i, d := range route.Deliveries {
			if d.IsBreak {
				continue
			}
			if d.Geocode != nil && d.Geocode.Success {
				continue
			}
			if d.LocationName == "" {
				d.Geocode = &routes.Geocode{
					Success: false,
					Error:   "No address or location name provided",
				}
				continue
			}

			stats.Pass2.Processed++

			if cached := r.lookupCache(d.LocationID, stats); cached != nil {
				d.Geocode = cached
			} else {
				hint := nearestGeocoded(route.Deliveries, i)

				req := Request{Query: d.LocationName, IsLocationNameSearch: true}
				if hint != nil {
					req.Proximity = &Circle{Lat: hint.Lat, Lng: hint.Lng, RadiusM: r.radiusM}
					r.logger.Debug("Using proximity hint",
						logger.String("location", d.LocationName),
						logger.String("direction", hint.Direction),
						logger.Int("stops_away", hint.Distance))
				}

				result := r.call(ctx, req, "locationName")
				if hint != nil {
					result.ProximityHint = hint
				}
				if result.Success {
					r.cache.Set(d.LocationID, result)
				}
				d.Geocode = result
			}

			if d.Geocode.Success {
				stats.Pass2.Succeeded++
			} else {
				stats.Pass2.Failed++
			}
			r.reportProgress(2, stats.Pass2)
		}
	}

	r.logger.Info("Location-name pass complete",
		logger.Int("processed", stats.Pass2.Processed),
		logger.Int("succeeded", stats.Pass2.Succeeded),
		logger.Int("failed", stats.Pass2.Failed))
}

// lookupCache checks the cache and maintains hit/miss counters. A nil
// return means the caller must hit the network (and pay the rate delay).
func (r *Resolver) lookupCache(locationID string, stats *routes.GeocodingStats) *routes.Geocode {
	if locationID == "" {
		stats.CacheMisses++
		return nil
	}
	if cached := r.cache.Get(locationID); cached != nil {
		stats.CacheHits++
		return cached
	}
	stats.CacheMisses++
	return nil
}

// call performs one network geocode, tagging the result with what was used
// for the lookup. Transport errors are contained as failure results, and
// the inter-request delay is applied after every call.
func (r *Resolver) call(ctx context.Context, req Request, geocodedWith string) *routes.Geocode {
	result, err := r.geocoder.Geocode(ctx, req)
	if err != nil {
		r.logger.Warn("Geocoding call failed",
			logger.String("query", req.Query),
			logger.Error(err))
		result = &routes.Geocode{Success: false, Address: req.Query, Error: err.Error()}
	}
	result.GeocodedWith = geocodedWith

	if err := r.limiter.Wait(ctx); err != nil {
		r.logger.Debug("Rate limiter interrupted", logger.Error(err))
	}
	return result
}

func (r *Resolver) reportProgress(pass int, p routes.PassStats) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(pass, p.Processed, p.Succeeded, p.Failed)
}

// nearestGeocoded finds the closest delivery (by stop distance within the
// route) with valid coordinates, searching outward from index. At equal
// distance the previous stop wins over the next.
func nearestGeocoded(deliveries []*routes.Delivery, index int) *routes.ProximityHint {
	maxDistance := index
	if rest := len(deliveries) - index - 1; rest > maxDistance {
		maxDistance = rest
	}

	for distance := 1; distance <= maxDistance; distance++ {
		if prev := index - distance; prev >= 0 {
			if h := hintFrom(deliveries[prev], distance, "previous"); h != nil {
				return h
			}
		}
		if next := index + distance; next < len(deliveries) {
			if h := hintFrom(deliveries[next], distance, "next"); h != nil {
				return h
			}
		}
	}
	return nil
}

func hintFrom(d *routes.Delivery, distance int, direction string) *routes.ProximityHint {
	g := d.Geocode
	if g == nil || !g.Success || g.Latitude == 0 || g.Longitude == 0 {
		return nil
	}
	return &routes.ProximityHint{
		Lat:       g.Latitude,
		Lng:       g.Longitude,
		Distance:  distance,
		Direction: direction,
	}
}
