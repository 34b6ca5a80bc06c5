package service

import (
	"testing"

	"cashdrop/internal/model"
)

func reorderFixture() ReorderInput {
	bank := "legacy-bank-token"
	addrID := "addr-1"
	return ReorderInput{
		Profile: &model.User{ID: "cust-1", LinkedBank: &bank},
		Addresses: []model.CustomerAddress{
			{ID: "addr-1", CustomerID: "cust-1", Line1: "123 Main St"},
		},
		PreviousOrder: &model.Order{
			ID:         "order-1",
			CustomerID: "cust-1",
			Status:     model.StatusCompleted,
			AddressID:  &addrID,
		},
		BankAccounts: []model.BankAccount{
			{ID: "bank-1", UserID: "cust-1", Provider: "plaid"},
		},
	}
}

func TestReorderEligible(t *testing.T) {
	d := ValidateReorderEligibility(reorderFixture())
	if !d.Eligible || d.Reason != "" {
		t.Errorf("decision = %+v, want eligible with no reason", d)
	}
}

func TestReorderPriorityOrder(t *testing.T) {
	// Everything wrong at once: no bank, no valid address, cancelled order.
	// The bank check must win; the priority ordering is a tested contract.
	in := reorderFixture()
	in.Profile.LinkedBank = nil
	in.BankAccounts = nil
	in.Addresses = nil
	in.PreviousOrder.AddressID = nil
	in.PreviousOrder.AddressSnapshot = nil
	in.PreviousOrder.Status = model.StatusCancelled

	d := ValidateReorderEligibility(in)
	if d.Eligible || d.Reason != ReasonMissingBank {
		t.Errorf("decision = %+v, want reason %q", d, ReasonMissingBank)
	}
}

func TestReorderMissingBank(t *testing.T) {
	in := reorderFixture()
	in.BankAccounts = nil
	in.Profile.LinkedBank = nil

	d := ValidateReorderEligibility(in)
	if d.Eligible || d.Reason != ReasonMissingBank {
		t.Errorf("decision = %+v, want reason %q", d, ReasonMissingBank)
	}
}

func TestReorderLegacyBankLinkSuffices(t *testing.T) {
	in := reorderFixture()
	in.BankAccounts = nil // only the legacy single field remains

	d := ValidateReorderEligibility(in)
	if !d.Eligible {
		t.Errorf("decision = %+v, want eligible via legacy linked_bank", d)
	}
}

func TestReorderMissingAddress(t *testing.T) {
	in := reorderFixture()
	in.Addresses = nil
	in.PreviousOrder.AddressSnapshot = nil

	d := ValidateReorderEligibility(in)
	if d.Eligible || d.Reason != ReasonMissingAddress {
		t.Errorf("decision = %+v, want reason %q", d, ReasonMissingAddress)
	}
}

func TestReorderSnapshotAlwaysValid(t *testing.T) {
	// Saved address deleted, but the order carries an immutable snapshot.
	in := reorderFixture()
	in.Addresses = nil
	in.PreviousOrder.AddressID = nil
	in.PreviousOrder.AddressSnapshot = &model.AddressSnapshot{Line1: "123 Main St"}

	d := ValidateReorderEligibility(in)
	if !d.Eligible {
		t.Errorf("decision = %+v, want eligible via address snapshot", d)
	}
}

func TestReorderDisabledRunnerNeverBlocks(t *testing.T) {
	in := reorderFixture()
	in.RunnerAccountStatus = "disabled"

	d := ValidateReorderEligibility(in)
	if !d.Eligible {
		t.Errorf("decision = %+v, disabled runner is observed only, must not block", d)
	}
}
