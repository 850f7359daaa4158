// Package policy decides whether, and in what redacted form, chunk text may
// leave the machine. Classification is evidence-based pattern matching over
// the text plus prior manifest hints, never dependent on which provider is
// asking. The gate is queried once per (chunk, provider) pair before any
// network or subprocess call, and its decision is authoritative.
package policy

import (
	"log/slog"

	"github.com/AtlasMeridia/living-archive/internal/analysis"
	"github.com/AtlasMeridia/living-archive/internal/common"
)

// RiskLevel is the sensitivity classification of a chunk.
type RiskLevel string

const (
	RiskNone RiskLevel = "none"
	RiskLow  RiskLevel = "low"
	RiskHigh RiskLevel = "high"
)

// Trust classifies where a provider runs.
type Trust string

const (
	TrustLocal  Trust = "local"
	TrustRemote Trust = "remote"
)

// Decision is the gate's answer for one (chunk, provider) pair.
// Payload is the only text dispatch may send. OverrideApplied records that
// a configured escape hatch bypassed default routing; it must be persisted
// alongside any output produced under override.
type Decision struct {
	Risk            RiskLevel
	Payload         string
	Redacted        bool
	OverrideApplied bool
	Evidence        []string // pattern names that matched, for audit logs
}

// Gate applies the privacy policy. Stateless across calls; safe for
// concurrent use.
type Gate struct {
	cfg    common.PolicyConfig
	logger *slog.Logger
}

func NewGate(cfg common.PolicyConfig, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{cfg: cfg, logger: logger}
}

// Classify returns the risk level for chunk text given prior manifest hints.
// Hints only ever raise the level, matching the conservative OR-merge bias
// of the aggregator.
func (g *Gate) Classify(text string, hints analysis.Sensitivity) (RiskLevel, []string) {
	evidence := matchEvidence(text)

	risk := RiskNone
	for _, e := range evidence {
		switch e.class {
		case classIdentifier:
			risk = RiskHigh
		case classFinancial, classMedical:
			if risk == RiskNone {
				risk = RiskLow
			}
		}
	}

	if hints.HasIdentifier {
		risk = RiskHigh
		evidence = append(evidence, match{name: "hint:has_identifier", class: classIdentifier})
	} else if (hints.HasFinancial || hints.HasMedical) && risk == RiskNone {
		risk = RiskLow
		evidence = append(evidence, match{name: "hint:prior_flags", class: classFinancial})
	}

	names := make([]string, len(evidence))
	for i, e := range evidence {
		names[i] = e.name
	}
	return risk, names
}

// Decide produces the authoritative policy decision for sending one chunk
// to one provider. High-risk chunks bound for a remote provider are reduced
// to redacted text unless the configured override explicitly disables
// redaction; either override path is recorded as OverrideApplied.
func (g *Gate) Decide(text string, hints analysis.Sensitivity, trust Trust) Decision {
	risk, evidence := g.Classify(text, hints)

	d := Decision{Risk: risk, Payload: text, Evidence: evidence}

	if risk != RiskHigh || trust != TrustRemote {
		return d
	}

	if g.cfg.AllowRemoteHigh {
		d.OverrideApplied = true
		if !g.cfg.OverrideNoRedact {
			d.Payload = Redact(text)
			d.Redacted = true
		}
		g.logger.Warn("policy.override_applied",
			"risk", string(risk),
			"redacted", d.Redacted,
			"evidence", evidence,
		)
		return d
	}

	// Default routing for high-risk to remote: redact, no override recorded.
	d.Payload = Redact(text)
	d.Redacted = true
	g.logger.Info("policy.redacted",
		"risk", string(risk),
		"trust", string(trust),
		"evidence", evidence,
	)
	return d
}

// Enforce is dispatch's last check before a payload leaves the machine.
// An unredacted high-risk payload reaching a remote provider without an
// override is a hard failure, never silently downgraded.
func Enforce(d Decision, trust Trust) error {
	if trust == TrustRemote && d.Risk == RiskHigh && !d.Redacted && !d.OverrideApplied {
		return common.NewAppError("POLICY", "high-risk text routed to remote provider without override", common.ErrPolicyViolation)
	}
	return nil
}
