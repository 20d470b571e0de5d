package authz

import (
	"encoding/json"
	"testing"
	"time"
)

// mustClock builds a timestamp on a fixed date with the given wall time.
func mustClock(t *testing.T, hhmm string) time.Time {
	t.Helper()
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		t.Fatalf("bad time %q: %v", hhmm, err)
	}
	return time.Date(2026, 3, 4, parsed.Hour(), parsed.Minute(), 0, 0, time.UTC)
}

func mustParse(t *testing.T, doc string) *Condition {
	t.Helper()
	c, err := ParseCondition(json.RawMessage(doc))
	if err != nil {
		t.Fatalf("parse %s: %v", doc, err)
	}
	return c
}

func TestParseConditionEmptyDocuments(t *testing.T) {
	for _, doc := range []string{"", "null"} {
		c, err := ParseCondition(json.RawMessage(doc))
		if err != nil {
			t.Fatalf("parse %q: %v", doc, err)
		}
		if c != nil {
			t.Fatalf("expected nil condition for %q", doc)
		}
	}
}

func TestParseConditionRejectsAmbiguousNodes(t *testing.T) {
	bad := []string{
		`{}`,
		`{"all":[{"attr":"x","op":"eq","value":1}],"any":[{"attr":"x","op":"eq","value":1}]}`,
		`{"attr":"x","op":"between","value":1}`,
		`{"op":"eq","value":1}`,
		`{"attr":"x","op":"eq"}`,
		`{"attr":"x","op":"in"}`,
		`{"attr":"x","op":"range"}`,
	}
	for _, doc := range bad {
		if _, err := ParseCondition(json.RawMessage(doc)); err == nil {
			t.Fatalf("expected error for %s", doc)
		}
	}
}

func TestNilConditionMatchesAnything(t *testing.T) {
	if !matchSubject(nil, Subject{}) {
		t.Fatal("nil subject condition should match")
	}
	if !matchResource(nil, ResourceContext{}) {
		t.Fatal("nil resource condition should match")
	}
	if !matchEnvironment(nil, EnvironmentContext{}) {
		t.Fatal("nil environment condition should match")
	}
}

func TestAbsentAttributeNeverMatches(t *testing.T) {
	cond := mustParse(t, `{"attr":"costCenter","op":"eq","value":"emea"}`)
	if matchResource(cond, ResourceContext{Type: ResourceJournalEntry}) {
		t.Fatal("condition on absent attribute must not match")
	}
	// Negation of an absent-attribute leaf does match: the leaf is false.
	neg := mustParse(t, `{"not":{"attr":"costCenter","op":"eq","value":"emea"}}`)
	if !matchResource(neg, ResourceContext{Type: ResourceJournalEntry}) {
		t.Fatal("negated absent-attribute leaf should match")
	}
}

func TestEqualsComparesNumbersNumerically(t *testing.T) {
	cond := mustParse(t, `{"attr":"amount","op":"eq","value":100}`)
	rc := ResourceContext{Attributes: map[string]any{"amount": int64(100)}}
	if !matchResource(cond, rc) {
		t.Fatal("int64(100) should equal JSON 100")
	}
	rc.Attributes["amount"] = float64(100)
	if !matchResource(cond, rc) {
		t.Fatal("float64(100) should equal JSON 100")
	}
	rc.Attributes["amount"] = "100"
	if matchResource(cond, rc) {
		t.Fatal("string \"100\" should not equal numeric 100")
	}
}

func TestInOperator(t *testing.T) {
	cond := mustParse(t, `{"attr":"baseRole","op":"in","values":["admin","owner"]}`)
	if !matchSubject(cond, Subject{BaseRole: RoleAdmin}) {
		t.Fatal("admin should be in [admin owner]")
	}
	if matchSubject(cond, Subject{BaseRole: RoleViewer}) {
		t.Fatal("viewer should not be in [admin owner]")
	}
}

func TestRangeOperator(t *testing.T) {
	cond := mustParse(t, `{"attr":"amount","op":"range","min":10,"max":100}`)
	attrs := func(v any) ResourceContext {
		return ResourceContext{Attributes: map[string]any{"amount": v}}
	}
	if !matchResource(cond, attrs(10)) || !matchResource(cond, attrs(100)) {
		t.Fatal("range bounds are inclusive")
	}
	if matchResource(cond, attrs(9)) || matchResource(cond, attrs(101)) {
		t.Fatal("values outside range matched")
	}

	openMin := mustParse(t, `{"attr":"amount","op":"range","max":100}`)
	if !matchResource(openMin, attrs(-5)) {
		t.Fatal("open min bound should admit any lower value")
	}
}

func TestRangeOverTimeOfDayStrings(t *testing.T) {
	cond := mustParse(t, `{"attr":"timeOfDay","op":"range","min":"09:00","max":"17:30"}`)
	env := func(hhmm string) EnvironmentContext {
		t.Helper()
		return EnvironmentContext{CurrentTime: mustClock(t, hhmm)}
	}
	if !matchEnvironment(cond, env("12:15")) {
		t.Fatal("12:15 should fall inside business hours")
	}
	if matchEnvironment(cond, env("08:59")) || matchEnvironment(cond, env("17:31")) {
		t.Fatal("times outside window matched")
	}
}

func TestContainsOperators(t *testing.T) {
	s := Subject{FunctionalRoles: []FunctionalRole{FuncAccountant, FuncController}}

	anyCond := mustParse(t, `{"attr":"functionalRoles","op":"contains_any","values":["controller","finance_manager"]}`)
	if !matchSubject(anyCond, s) {
		t.Fatal("contains_any should match on controller")
	}

	allCond := mustParse(t, `{"attr":"functionalRoles","op":"contains_all","values":["accountant","controller"]}`)
	if !matchSubject(allCond, s) {
		t.Fatal("contains_all should match when every value is held")
	}

	missing := mustParse(t, `{"attr":"functionalRoles","op":"contains_all","values":["accountant","period_admin"]}`)
	if matchSubject(missing, s) {
		t.Fatal("contains_all must fail when one value is missing")
	}
}

func TestIPInOperator(t *testing.T) {
	cond := mustParse(t, `{"attr":"ipAddress","op":"ip_in","values":["10.0.0.0/8","192.168.1.7"]}`)

	cases := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"192.168.1.7", true},
		{"192.168.1.8", false},
		{"not-an-ip", false},
	}
	for _, tc := range cases {
		got := matchEnvironment(cond, EnvironmentContext{CurrentTime: mustClock(t, "12:00"), IPAddress: tc.ip})
		if got != tc.want {
			t.Fatalf("ip %s: got %v, want %v", tc.ip, got, tc.want)
		}
	}
}

func TestNestedBooleanTree(t *testing.T) {
	doc := `{
		"all": [
			{"attr":"baseRole","op":"in","values":["member","admin"]},
			{"not":{"attr":"userId","op":"eq","value":"blocked-user"}}
		]
	}`
	cond := mustParse(t, doc)

	if !matchSubject(cond, Subject{UserID: "u1", BaseRole: RoleMember}) {
		t.Fatal("member that is not blocked should match")
	}
	if matchSubject(cond, Subject{UserID: "blocked-user", BaseRole: RoleMember}) {
		t.Fatal("blocked user should not match")
	}
	if matchSubject(cond, Subject{UserID: "u1", BaseRole: RoleViewer}) {
		t.Fatal("viewer should not match")
	}
}

func TestMarshalDocumentRoundTrip(t *testing.T) {
	cond := mustParse(t, `{"attr":"amount","op":"range","min":10}`)
	raw, err := cond.MarshalDocument()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	back, err := ParseCondition(raw)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back.Attr != "amount" || back.Op != OpRange {
		t.Fatalf("round trip lost leaf: %+v", back)
	}

	var nilCond *Condition
	raw, err = nilCond.MarshalDocument()
	if err != nil || string(raw) != "null" {
		t.Fatalf("nil condition should serialize as null, got %s (%v)", raw, err)
	}
}
