package location

import (
	"context"
	"net"
	"sort"
	"strconv"
	"strings"

	"smartLink/domain"
)

// evidence is one detector's vote for a region.
type evidence struct {
	Region     string
	Confidence float64
	Source     string
}

func (s *Service) detectNetworkOrigin(ctx context.Context, signals domain.RequestSignals) []evidence {
	home := s.tables.HomeRegion

	if ip := parseOrigin(signals.NetworkOrigin); ip != nil && isPrivate(ip) {
		return []evidence{{Region: home, Confidence: s.cfg.PrivateOriginConfidence, Source: domain.SourceNetworkOrigin}}
	}

	country := strings.ToUpper(strings.TrimSpace(signals.CountryCode))
	if country == "" && signals.NetworkOrigin != "" {
		if c, ok := s.countries.LookupCountry(ctx, signals.NetworkOrigin); ok {
			country = strings.ToUpper(c)
		}
	}

	if country == "" {
		if signals.NetworkOrigin == "" {
			return nil
		}
		return []evidence{{Region: home, Confidence: s.cfg.UnknownCountryConfidence, Source: domain.SourceFallback}}
	}

	rule, ok := s.tables.Countries[country]
	if !ok {
		return []evidence{{Region: home, Confidence: s.cfg.UnknownCountryConfidence, Source: domain.SourceFallback}}
	}

	return []evidence{{Region: rule.Region, Confidence: rule.Confidence, Source: domain.SourceNetworkOrigin}}
}

type languageTag struct {
	Tag     string
	Quality float64
}

// parseAcceptLanguage splits "pt-BR,pt;q=0.9,en;q=0.5" into tags ordered by
// quality, keeping header order among equal qualities.
func parseAcceptLanguage(header string) []languageTag {
	var tags []languageTag
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		tag, q := part, 1.0
		if i := strings.Index(part, ";"); i >= 0 {
			tag = strings.TrimSpace(part[:i])
			for _, param := range strings.Split(part[i+1:], ";") {
				param = strings.TrimSpace(param)
				if v, ok := strings.CutPrefix(param, "q="); ok {
					if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
						q = f
					}
				}
			}
		}
		if tag == "" || tag == "*" || q == 0 {
			continue
		}
		tags = append(tags, languageTag{Tag: strings.ToLower(tag), Quality: q})
	}

	sort.SliceStable(tags, func(i, j int) bool {
		return tags[i].Quality > tags[j].Quality
	})
	return tags
}

func (s *Service) detectLanguage(header string) []evidence {
	if strings.TrimSpace(header) == "" {
		return nil
	}

	for _, lang := range parseAcceptLanguage(header) {
		if regions := s.tables.Languages[lang.Tag]; len(regions) > 0 {
			return []evidence{{Region: regions[0], Confidence: s.cfg.LanguageExactFactor * lang.Quality, Source: domain.SourceLanguage}}
		}

		base, _, _ := strings.Cut(lang.Tag, "-")
		if regions := s.tables.Languages[base]; len(regions) > 0 {
			return []evidence{{Region: regions[0], Confidence: s.cfg.LanguageBaseFactor * lang.Quality, Source: domain.SourceLanguage}}
		}
	}

	return []evidence{{Region: s.tables.HomeRegion, Confidence: s.cfg.UnmatchedConfidence, Source: domain.SourceFallback}}
}

func (s *Service) detectTimezone(zone string) []evidence {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return nil
	}

	if region, ok := s.tables.Timezones[zone]; ok {
		return []evidence{{Region: region, Confidence: s.cfg.TimezoneExactConfidence, Source: domain.SourceTimezone}}
	}

	// longest matching continent prefix wins so "America/Argentina/" can
	// override "America/" in configuration
	best := ""
	for prefix := range s.tables.ContinentPrefix {
		if strings.HasPrefix(zone, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		return []evidence{{Region: s.tables.ContinentPrefix[best], Confidence: s.cfg.TimezonePrefixConfidence, Source: domain.SourceTimezone}}
	}

	return []evidence{{Region: s.tables.HomeRegion, Confidence: s.cfg.UnmatchedConfidence, Source: domain.SourceFallback}}
}

func parseOrigin(origin string) net.IP {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return nil
	}
	if ip := net.ParseIP(origin); ip != nil {
		return ip
	}
	if host, _, err := net.SplitHostPort(origin); err == nil {
		return net.ParseIP(host)
	}
	return nil
}

func isPrivate(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}
