package ninja

import "github.com/sacrosanct24/poe-price-checker-sub000/pkg/pricing/sources"

func init() {
	sources.Register("bulk.ninja", NewClientFromConfig)
}
