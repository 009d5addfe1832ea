package gates

import "github.com/dababiyoda/daleobanks/pkg/models"

// Rule is one declarative entry in the validation pipeline (Design Note
// 9: "add a registry so new gate rules are declarative").
type Rule struct {
	Name    models.GateName
	AppliesTo func(d Draft) bool
	Check   func(d Draft, whitelist []string, resolveHost func(string) (string, bool)) Verdict
}

// DefaultPipeline is the order from §4.4.1: ethics, length (handled
// separately as a trim not a gate), completeness (proposals only),
// receipts (proposals), cadence (replies), high-intensity (any kind).
var DefaultPipeline = []Rule{
	{
		Name: models.GateEthics,
		AppliesTo: func(d Draft) bool { return true },
		Check: func(d Draft, _ []string, _ func(string) (string, bool)) Verdict {
			return Ethics(d.Text).Verdict
		},
	},
	{
		Name: models.GateCompleteness,
		AppliesTo: func(d Draft) bool { return d.Kind == "proposal" },
		Check: func(d Draft, _ []string, _ func(string) (string, bool)) Verdict {
			return Completeness(d.Text)
		},
	},
	{
		Name: models.GateReceipts,
		AppliesTo: func(d Draft) bool { return d.Kind == "proposal" },
		Check: func(d Draft, whitelist []string, resolveHost func(string) (string, bool)) Verdict {
			return Receipts(d.Text, whitelist, resolveHost)
		},
	},
	{
		Name: models.GateCadence,
		AppliesTo: func(d Draft) bool { return d.Kind == "reply" || d.Kind == "quote" },
		Check: func(d Draft, _ []string, _ func(string) (string, bool)) Verdict {
			return Cadence(d.Text, d.Intensity)
		},
	},
	{
		Name: models.GateHighIntensity,
		AppliesTo: func(d Draft) bool { return d.Intensity >= 3 },
		Check: func(d Draft, whitelist []string, _ func(string) (string, bool)) Verdict {
			return HighIntensity(d.Text, d.Intensity, whitelist)
		},
	},
}

// Run applies every applicable rule in order, stopping at the first
// rejection.
func Run(d Draft, whitelist []string, resolveHost func(string) (string, bool)) (models.GateName, Verdict) {
	for _, r := range DefaultPipeline {
		if !r.AppliesTo(d) {
			continue
		}
		v := r.Check(d, whitelist, resolveHost)
		if !v.Pass {
			return r.Name, v
		}
	}
	return "", ok()
}
