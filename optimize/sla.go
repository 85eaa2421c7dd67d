package optimize

import (
	"fmt"
	"time"

	"github.com/kotadb/kotadb-go/config"
)

// Severity is an SLA violation's escalation level, per spec §4.10's
// "violations ranked Minor/Moderate/Severe/Critical."
type Severity string

const (
	SeverityMinor    Severity = "Minor"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
	SeverityCritical Severity = "Critical"
)

// Violation is a single SLA target the wrapped index failed to meet.
type Violation struct {
	Target   string
	Severity Severity
	Observed string
	Limit    string
}

// SLAComplianceReport is spec §4.10's SLA-verification output: a
// pass/fail verdict plus the individual violations behind it.
type SLAComplianceReport struct {
	Compliant  bool
	Violations []Violation
}

// overshootSeverity grades how far observed exceeds limit: the worse the
// overshoot, the higher the severity, per spec §4.10's ranked violations.
func overshootSeverity(ratio float64) Severity {
	switch {
	case ratio >= 3:
		return SeverityCritical
	case ratio >= 2:
		return SeveritySevere
	case ratio >= 1.25:
		return SeverityModerate
	default:
		return SeverityMinor
	}
}

// VerifySLA checks the wrapped index's current measured state against sla.
// observedLatency and observedThroughput are caller-supplied (this wrapper
// doesn't itself run a benchmark); contention and memory are sampled live
// from this Index.
func (o *Index) VerifySLA(sla config.SLA, observedLatency time.Duration, observedThroughput float64, memAllocated int64) SLAComplianceReport {
	var violations []Violation

	if sla.MaxLatency > 0 && observedLatency > sla.MaxLatency {
		ratio := float64(observedLatency) / float64(sla.MaxLatency)
		violations = append(violations, Violation{
			Target:   "max_latency",
			Severity: overshootSeverity(ratio),
			Observed: observedLatency.String(),
			Limit:    sla.MaxLatency.String(),
		})
	}

	if sla.MinThroughput > 0 && observedThroughput < sla.MinThroughput {
		ratio := sla.MinThroughput / maxFloat(observedThroughput, 0.0001)
		violations = append(violations, Violation{
			Target:   "min_throughput",
			Severity: overshootSeverity(ratio),
			Observed: formatFloat(observedThroughput),
			Limit:    formatFloat(sla.MinThroughput),
		})
	}

	if sla.MaxMemoryOverhead > 0 {
		mem := o.AnalyzeMemory(memAllocated)
		if mem.FragmentationBytes > sla.MaxMemoryOverhead {
			ratio := float64(mem.FragmentationBytes) / float64(sla.MaxMemoryOverhead)
			violations = append(violations, Violation{
				Target:   "max_memory_overhead_bytes",
				Severity: overshootSeverity(ratio),
				Observed: formatInt(mem.FragmentationBytes),
				Limit:    formatInt(sla.MaxMemoryOverhead),
			})
		}
	}

	if sla.RequiredComplexity != "" {
		o.mu.Lock()
		observed := o.lastComplexity
		o.mu.Unlock()
		if observed != "" && complexityRank(observed) > complexityRank(ComplexityClass(sla.RequiredComplexity)) {
			violations = append(violations, Violation{
				Target:   "required_complexity_class",
				Severity: SeverityModerate,
				Observed: string(observed),
				Limit:    sla.RequiredComplexity,
			})
		}
	}

	if sla.MaxContendedRatio > 0 {
		c := o.Contention()
		if c.ContestedRatio > sla.MaxContendedRatio {
			ratio := c.ContestedRatio / sla.MaxContendedRatio
			violations = append(violations, Violation{
				Target:   "max_contended_ratio",
				Severity: overshootSeverity(ratio),
				Observed: formatFloat(c.ContestedRatio),
				Limit:    formatFloat(sla.MaxContendedRatio),
			})
		}
	}

	return SLAComplianceReport{
		Compliant:  len(violations) == 0,
		Violations: violations,
	}
}

// complexityRank orders the class tags from cheapest to most expensive so
// an observed class can be compared against a required ceiling. Unknown
// ranks past everything: an unverified claim never satisfies an SLA.
func complexityRank(c ComplexityClass) int {
	switch c {
	case ComplexityConstant:
		return 0
	case ComplexityLogarithmic:
		return 1
	case ComplexityLinear:
		return 2
	case ComplexityLinearithmic:
		return 3
	case ComplexityQuadratic:
		return 4
	default:
		return 5
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.3f", f)
}

func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}
