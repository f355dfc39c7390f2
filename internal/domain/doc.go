// Package domain models coastal hazard reports and the fusion arithmetic that
// consolidates them into hazard events.
//
// # Data Sources
//
// Raw reports arrive from heterogeneous channels, identified by a source tag:
//
//	citizen — app submissions from the public
//	social  — scraped social media posts
//	incois  — Indian National Centre for Ocean Information Services feeds
//	imd     — India Meteorological Department feeds
//	iot     — tide gauges, water-level sensors and similar telemetry
//
// Agency advisories (INCOIS/IMD bulletins) are a separate, immutable stream
// carrying an agency-reported 1-5 severity and a validity window.
//
// # Scoring Conventions
//
// Three independent [0,1] scores are attached to every report:
//
//	nlp confidence — how strongly the text reads as a specific hazard type,
//	                 from a deterministic keyword lexicon (no trained model).
//	credibility    — how much the source itself is trusted, combining source
//	                 authority, recency decay, location plausibility, and
//	                 media corroboration.
//	similarity     — pairwise likeness to other reports, blending lexical
//	                 overlap, haversine distance decay, and time decay.
//
// Reports whose similarity to a prior processed report clears
// [CombinedThreshold] share that report's group; each group fuses into at most
// one hazard event.
//
// # Correlation Window
//
// A group's reports are checked against bulletins issued between 72 hours
// before and 6 hours after the group's earliest report. Matching bulletins
// boost fused confidence by up to 0.4; a high-severity bulletin of an
// unrelated type applies a -0.1 penalty. See [CorrelateBulletins].
//
// # Determinism
//
// Every function in this package is a pure function of its inputs plus the
// package clock (see [SetClock]). Fusing an unchanged group twice yields a
// byte-identical result, which is what makes event upserts idempotent.
package domain
