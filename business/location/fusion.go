package location

import (
	"math"

	"smartLink/domain"
)

type regionScore struct {
	region    string
	score     float64
	best      float64 // strongest raw confidence seen for this region
	topTerm   float64
	topSource string
}

// fuse combines detector votes. Candidate regions are scored in the order
// they first appear across groups (network-origin, timezone, language), and
// that order also breaks exact ties: the earlier region keeps the lead.
func (s *Service) fuse(groups ...[]evidence) domain.RegionDetection {
	var order []*regionScore
	byRegion := make(map[string]*regionScore)

	for _, group := range groups {
		for _, ev := range group {
			if ev.Region == "" || ev.Confidence <= 0 {
				continue
			}
			rs, ok := byRegion[ev.Region]
			if !ok {
				rs = &regionScore{region: ev.Region}
				byRegion[ev.Region] = rs
				order = append(order, rs)
			}

			term := ev.Confidence * s.cfg.weight(ev.Source)
			rs.score += term
			rs.best = math.Max(rs.best, ev.Confidence)
			if term > rs.topTerm {
				rs.topTerm = term
				rs.topSource = ev.Source
			}
		}
	}

	if len(order) == 0 {
		return domain.RegionDetection{
			Region:     s.tables.HomeRegion,
			Confidence: s.cfg.NoSignalConfidence,
			Source:     domain.SourceFallback,
		}
	}

	winner := order[0]
	for _, rs := range order[1:] {
		if rs.score > winner.score {
			winner = rs
		}
	}

	confidence := math.Min(math.Min(winner.score, 1.0), winner.best)

	return domain.RegionDetection{
		Region:     winner.region,
		Confidence: confidence,
		Source:     winner.topSource,
	}
}
