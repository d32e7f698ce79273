package markup

import (
	"reflect"
	"strings"
	"testing"

	"github.com/pintegram/toolbot/internal/domain"
)

func TestTypes_ChecksSelectedLabels(t *testing.T) {
	t.Parallel()

	rows := Types([]string{"Text to Image", "Automation"})

	var checked []string
	for _, row := range rows {
		for _, b := range row {
			if strings.HasSuffix(b.Label, " ✅") && strings.HasPrefix(b.Data, "type_") {
				checked = append(checked, strings.TrimSuffix(b.Label, " ✅"))
			}
		}
	}
	want := []string{"Text to Image", "Automation"}
	if !reflect.DeepEqual(checked, want) {
		t.Errorf("Expected checked labels %v, got %v", want, checked)
	}
}

func TestTypes_CoversVocabulary(t *testing.T) {
	t.Parallel()

	rows := Types(nil)

	seen := make(map[string]bool)
	for _, row := range rows {
		for _, b := range row {
			if strings.HasPrefix(b.Data, "type_") {
				seen[b.Label] = true
			}
		}
	}
	for _, label := range domain.ToolTypes {
		if !seen[label] {
			t.Errorf("Type %q missing from keyboard", label)
		}
	}
	if len(seen) != len(domain.ToolTypes) {
		t.Errorf("Expected %d type buttons, got %d", len(domain.ToolTypes), len(seen))
	}
}

func TestTiers_AtMostOneChecked(t *testing.T) {
	t.Parallel()

	rows := Tiers("Partially")

	var checked int
	for _, row := range rows {
		for _, b := range row {
			if strings.HasSuffix(b.Label, " ✅") {
				checked++
				if b.Data != "api_partially" {
					t.Errorf("Wrong tier checked: %q", b.Data)
				}
			}
		}
	}
	if checked != 1 {
		t.Errorf("Expected exactly 1 checked tier, got %d", checked)
	}

	for _, b := range flatten(Tiers("")) {
		if strings.HasSuffix(b.Label, " ✅") {
			t.Errorf("No tier selected but %q is checked", b.Label)
		}
	}
}

func TestNavigationRows(t *testing.T) {
	t.Parallel()

	tierNav := Tiers("")[len(Tiers(""))-1]
	if len(tierNav) != 3 || tierNav[1].Data != TokenNavTypes {
		t.Errorf("Expected tier back button nav_types, got %+v", tierNav)
	}

	payNav := Payments(nil)[len(Payments(nil))-1]
	if len(payNav) != 3 || payNav[1].Data != TokenNavAPI {
		t.Errorf("Expected payment back button nav_api, got %+v", payNav)
	}
}

func TestLabelLookups_RoundTrip(t *testing.T) {
	t.Parallel()

	for label, token := range typeTokens {
		if got := TypeLabel(token); got != label {
			t.Errorf("TypeLabel(%q) = %q, want %q", token, got, label)
		}
	}
	for label, token := range tierTokens {
		if got := TierLabel(token); got != label {
			t.Errorf("TierLabel(%q) = %q, want %q", token, got, label)
		}
	}
	for label, token := range paymentTokens {
		if got := PaymentLabel(token); got != label {
			t.Errorf("PaymentLabel(%q) = %q, want %q", token, got, label)
		}
	}
	if TypeLabel("type_nonsense") != "" {
		t.Error("Expected empty label for unknown token")
	}
}

func TestAbortConfirm_CarriesReturnToken(t *testing.T) {
	t.Parallel()

	rows := AbortConfirm(TokenNavAPI)
	if rows[0][0].Data != TokenAbortConfirm {
		t.Errorf("Expected confirm token first, got %q", rows[0][0].Data)
	}
	if rows[0][1].Data != TokenNavAPI {
		t.Errorf("Expected return token nav_api, got %q", rows[0][1].Data)
	}
}

func flatten(rows Rows) []Button {
	var out []Button
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}
