package gates

import "testing"

func TestReceiptsGateRequiresWhitelistedHost(t *testing.T) {
	whitelist := []string{".gov", ".edu"}
	text := "Mechanism: voting. Source: https://example.com/article"
	if Receipts(text, whitelist, nil).Pass {
		t.Fatal("expected non-whitelisted host to fail receipts gate")
	}
	text2 := "Mechanism: voting. Source: https://www.nist.gov/article"
	if !Receipts(text2, whitelist, nil).Pass {
		t.Fatal("expected .gov host to pass receipts gate")
	}
}

func TestCompletenessRequiresAllSixFamilies(t *testing.T) {
	text := "Problem: coordination fails. Mechanism: use voting. Pilot: 30 days. KPIs: cycle time. Risks: adoption. Reply if interested."
	if v := Completeness(text); !v.Pass {
		t.Fatalf("expected complete proposal to pass, got %s", v.Detail)
	}
	incomplete := "Problem: coordination fails. Mechanism: use voting."
	if v := Completeness(incomplete); v.Pass {
		t.Fatal("expected incomplete proposal to fail")
	}
}

func TestCadenceExactThreeSentences(t *testing.T) {
	short := "Noted well today. Worth tracking closely."
	if v := Cadence(short, 2); v.Pass {
		t.Fatal("expected two-sentence draft to fail at intensity>=2")
	}
	good := "Noted well today. Worth tracking closely. This pattern tends to compound across a full quarter once a team actually commits to the process and measures it weekly."
	if v := Cadence(good, 2); !v.Pass {
		t.Fatalf("expected well-formed cadence to pass, got %s", v.Detail)
	}
}

func TestEthicsRejectsDeceptionMarkers(t *testing.T) {
	if Ethics("This is 100% guaranteed to work with no risk.").Pass {
		t.Fatal("expected deception markers to fail ethics gate")
	}
}

func TestHighIntensityRequiresCitationAndStep(t *testing.T) {
	whitelist := []string{".gov"}
	text := "Here's how we fix it, per https://www.nist.gov/report."
	if v := HighIntensity(text, 3, whitelist); !v.Pass {
		t.Fatalf("expected citation+step to pass, got %s", v.Detail)
	}
	noCitation := "Here's how we fix it."
	if v := HighIntensity(noCitation, 3, whitelist); v.Pass {
		t.Fatal("expected missing citation to fail high-intensity gate")
	}
}
