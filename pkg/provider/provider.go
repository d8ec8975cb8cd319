/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: provider.go
Description: APK providers. A provider lists the APKs a catalog site offers, in catalog
order; the registry maps provider names to constructors and falls back to the default
provider for unknown names.
*/

package provider

import (
	"context"
	"sort"

	"github.com/gvieralopez/goflowdroid/pkg/config"
	"github.com/gvieralopez/goflowdroid/pkg/logging"
)

// APK is a downloadable APK offered by a provider
type APK struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Provider lists the APKs available from a catalog
type Provider interface {
	Name() string
	AvailableAPKs(ctx context.Context) ([]APK, error)
}

// Options are provider settings shared by every catalog
type Options struct {
	// MaxPages bounds catalog pagination. Zero means no limit.
	MaxPages int
}

// Factory builds a provider that fetches pages through fetcher
type Factory func(fetcher Fetcher, logger *logging.Logger, opts Options) Provider

var providers = map[string]Factory{
	CubapkName: func(fetcher Fetcher, logger *logging.Logger, opts Options) Provider {
		return NewCubapkProvider(fetcher, logger, WithMaxPages(opts.MaxPages))
	},
}

// Names lists the registered providers
func Names() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the provider registered under name. Unknown names log a
// warning and return the default provider.
func Get(name string, fetcher Fetcher, logger *logging.Logger, opts Options) Provider {
	factory, ok := providers[name]
	if !ok {
		logger.Warning("Provider not found, using default", map[string]interface{}{
			"provider": name,
			"default":  config.DefaultProvider,
		})
		factory = providers[config.DefaultProvider]
	}
	return factory(fetcher, logger, opts)
}

// catalog is an ordered set of APKs keyed by name. Adding an existing name
// keeps its position and replaces its URL.
type catalog struct {
	apks  []APK
	index map[string]int
}

func newCatalog() *catalog {
	return &catalog{index: make(map[string]int)}
}

func (c *catalog) add(apk APK) {
	if i, ok := c.index[apk.Name]; ok {
		c.apks[i].URL = apk.URL
		return
	}
	c.index[apk.Name] = len(c.apks)
	c.apks = append(c.apks, apk)
}

func (c *catalog) list() []APK {
	out := make([]APK, len(c.apks))
	copy(out, c.apks)
	return out
}
