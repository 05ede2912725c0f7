package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/cucumber/godog"
)

type steps struct {
	tc func() *TestContext
}

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc func() *TestContext) {
	s := &steps{tc: tc}

	// Background steps
	ctx.Step(`^a fresh ledger owned by "(\w+)"$`, s.freshLedger)
	ctx.Step(`^a fresh ledger owned by "(\w+)" that requires the issuer role$`, s.freshGatedLedger)

	// DID directory
	ctx.Step(`^"(\w*)" registers the DID "([^"]*)"$`, s.registerDID)
	ctx.Step(`^"(\w*)" updates the DID to "([^"]*)"$`, s.updateDID)
	ctx.Step(`^the DID of "(\w+)" should be "([^"]*)"$`, s.didShouldBe)

	// Credential ledger
	ctx.Step(`^"(\w+)" issues credential "([^"]*)" to "(\w+)" with pointer "([^"]*)"$`, s.issue)
	ctx.Step(`^"(\w+)" revokes credential "([^"]*)"$`, s.revoke)
	ctx.Step(`^the ledger height should be (\d+)$`, s.ledgerHeightShouldBe)

	// Roles
	ctx.Step(`^"(\w+)" grants the issuer role to "(\w+)"$`, s.grantIssuer)
	ctx.Step(`^the role of "(\w+)" should be "([^"]*)"$`, s.roleShouldBe)

	// Verification
	ctx.Step(`^I verify credential "([^"]*)"$`, s.verifyID)
	ctx.Step(`^I verify credential "([^"]*)" at ledger height (\d+)$`, s.verifyIDAtHeight)
	ctx.Step(`^I verify hash "([^"]*)"$`, s.verifyHash)
	ctx.Step(`^I verify the document at "([^"]*)":$`, s.verifyDocument)
	ctx.Step(`^the verdict should be valid$`, s.verdictValid)
	ctx.Step(`^the verdict should be invalid with reasons:$`, s.verdictInvalid)

	// Events
	ctx.Step(`^the outbox should hold events "([^"]*)"$`, s.outboxShouldHold)

	// Response assertions
	ctx.Step(`^the response status should be (\d+)$`, s.responseStatusShouldBe)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, s.responseFieldShouldEqual)
}

func (s *steps) freshLedger(ctx context.Context, owner string) error {
	return s.startLedger(ctx, owner, false)
}

func (s *steps) freshGatedLedger(ctx context.Context, owner string) error {
	return s.startLedger(ctx, owner, true)
}

func (s *steps) startLedger(ctx context.Context, owner string, gated bool) error {
	tc := s.tc()
	if tc.External() {
		// A running deployment keeps its own configuration and state.
		return godog.ErrPending
	}
	addr, err := tc.Principal(owner)
	if err != nil {
		return err
	}
	return tc.StartLedger(ctx, addr, gated)
}

func (s *steps) registerDID(ctx context.Context, caller, did string) error {
	return s.tc().Do(ctx, http.MethodPost, "/dids", map[string]string{"did": did}, caller)
}

func (s *steps) updateDID(ctx context.Context, caller, did string) error {
	return s.tc().Do(ctx, http.MethodPut, "/dids", map[string]string{"did": did}, caller)
}

func (s *steps) didShouldBe(ctx context.Context, owner, want string) error {
	tc := s.tc()
	addr, err := tc.Principal(owner)
	if err != nil {
		return err
	}
	if err := tc.Do(ctx, http.MethodGet, "/dids/"+addr.String(), nil, ""); err != nil {
		return err
	}
	return s.responseFieldShouldEqual(ctx, "did", want)
}

func (s *steps) issue(ctx context.Context, caller, id, subject, pointer string) error {
	tc := s.tc()
	addr, err := tc.Principal(subject)
	if err != nil {
		return err
	}
	return tc.Do(ctx, http.MethodPost, "/credentials", map[string]string{
		"id":              id,
		"subject":         addr.String(),
		"payload_pointer": pointer,
	}, caller)
}

func (s *steps) revoke(ctx context.Context, caller, id string) error {
	return s.tc().Do(ctx, http.MethodPost, "/credentials/"+id+"/revoke", nil, caller)
}

func (s *steps) ledgerHeightShouldBe(ctx context.Context, height int) error {
	if err := s.tc().Do(ctx, http.MethodGet, "/ledger", nil, ""); err != nil {
		return err
	}
	return s.responseFieldShouldEqual(ctx, "height", fmt.Sprint(height))
}

func (s *steps) grantIssuer(ctx context.Context, caller, principal string) error {
	tc := s.tc()
	addr, err := tc.Principal(principal)
	if err != nil {
		return err
	}
	return tc.Do(ctx, http.MethodPost, "/roles/issuers/"+addr.String(), nil, caller)
}

func (s *steps) roleShouldBe(ctx context.Context, principal, role string) error {
	tc := s.tc()
	addr, err := tc.Principal(principal)
	if err != nil {
		return err
	}
	if err := tc.Do(ctx, http.MethodGet, "/roles/"+addr.String(), nil, ""); err != nil {
		return err
	}
	return s.responseFieldShouldEqual(ctx, "role", role)
}

func (s *steps) verifyID(ctx context.Context, id string) error {
	return s.tc().Do(ctx, http.MethodPost, "/verify", map[string]string{"credential_id": id}, "")
}

func (s *steps) verifyIDAtHeight(ctx context.Context, id string, height int) error {
	return s.tc().Do(ctx, http.MethodPost, "/verify", map[string]any{"credential_id": id, "min_ledger_height": height}, "")
}

func (s *steps) verifyHash(ctx context.Context, hash string) error {
	return s.tc().Do(ctx, http.MethodPost, "/verify", map[string]string{"hash": hash}, "")
}

func (s *steps) verifyDocument(ctx context.Context, at string, doc *godog.DocString) error {
	if !json.Valid([]byte(doc.Content)) {
		return errors.New("document is not valid JSON")
	}
	return s.tc().Do(ctx, http.MethodPost, "/verify", map[string]any{
		"document": json.RawMessage(doc.Content),
		"at":       at,
	}, "")
}

type verdict struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons"`
}

func (s *steps) lastVerdict() (*verdict, error) {
	tc := s.tc()
	if status := tc.GetLastResponseStatus(); status != http.StatusOK {
		return nil, fmt.Errorf("verification returned status %d: %s", status, tc.LastResponseBody)
	}
	var v verdict
	if err := json.Unmarshal(tc.LastResponseBody, &v); err != nil {
		return nil, fmt.Errorf("failed to parse verdict: %w", err)
	}
	return &v, nil
}

func (s *steps) verdictValid(context.Context) error {
	v, err := s.lastVerdict()
	if err != nil {
		return err
	}
	if !v.Valid || len(v.Reasons) != 0 {
		return fmt.Errorf("expected a valid verdict, got reasons %q", v.Reasons)
	}
	return nil
}

func (s *steps) verdictInvalid(_ context.Context, table *godog.Table) error {
	v, err := s.lastVerdict()
	if err != nil {
		return err
	}
	if v.Valid {
		return errors.New("expected an invalid verdict")
	}
	want := make([]string, 0, len(table.Rows))
	for _, row := range table.Rows {
		want = append(want, row.Cells[0].Value)
	}
	if !slices.Equal(want, v.Reasons) {
		return fmt.Errorf("reasons: expected %q but got %q", want, v.Reasons)
	}
	return nil
}

func (s *steps) outboxShouldHold(ctx context.Context, list string) error {
	tc := s.tc()
	if tc.App == nil {
		return godog.ErrPending
	}
	entries, err := tc.App.Outbox.FetchUnprocessed(ctx, 1000)
	if err != nil {
		return err
	}
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.EventType)
	}
	want := strings.Split(list, ", ")
	if !slices.Equal(want, got) {
		return fmt.Errorf("outbox events: expected %q but got %q", want, got)
	}
	return nil
}

func (s *steps) responseStatusShouldBe(_ context.Context, expectedStatus int) error {
	tc := s.tc()
	if actual := tc.GetLastResponseStatus(); actual != expectedStatus {
		return fmt.Errorf("expected status %d but got %d: %s", expectedStatus, actual, tc.LastResponseBody)
	}
	return nil
}

func (s *steps) responseFieldShouldEqual(_ context.Context, field, expectedValue string) error {
	actualValue, err := s.tc().GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}
