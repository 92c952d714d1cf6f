package app

import (
	"testing"
	"time"

	"github.com/mr1hm/crisiswatch/internal/models"
)

func alertAt(sev models.Severity, distMi float64) models.ProximityAlert {
	return models.ProximityAlert{ID: "a", DisasterType: "fire", Severity: sev, DistanceMi: distMi}
}

func TestEvaluate_AutoCondition(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		class  ViewportClass
		alerts []models.ProximityAlert
		want   bool
	}{
		{"critical close on mobile", ViewportMobile, []models.ProximityAlert{alertAt(models.SeverityCritical, 8)}, true},
		{"high close on mobile", ViewportMobile, []models.ProximityAlert{alertAt(models.SeverityHigh, 9.9)}, true},
		{"high too far", ViewportMobile, []models.ProximityAlert{alertAt(models.SeverityHigh, 10.1)}, false},
		{"medium close", ViewportMobile, []models.ProximityAlert{alertAt(models.SeverityMedium, 2)}, false},
		{"tablet never auto", ViewportTablet, []models.ProximityAlert{alertAt(models.SeverityCritical, 1)}, false},
		{"desktop never auto", ViewportDesktop, []models.ProximityAlert{alertAt(models.SeverityCritical, 1)}, false},
		{"no alerts", ViewportMobile, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var e emergency
			if got := e.evaluate(tc.class, tc.alerts, now); got != tc.want {
				t.Errorf("evaluate = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluate_ManualOffForceClearedByImmediateDanger(t *testing.T) {
	now := time.Now()
	var e emergency
	e.setOverride(OverrideOff)

	// A critical alert outside 5 miles respects the override.
	if e.evaluate(ViewportMobile, []models.ProximityAlert{alertAt(models.SeverityCritical, 8)}, now) {
		t.Fatal("manual off must suppress emergency mode at 8 miles")
	}

	// Inside 5 miles the override is cleared and auto wins again.
	if !e.evaluate(ViewportMobile, []models.ProximityAlert{alertAt(models.SeverityCritical, 4)}, now) {
		t.Fatal("critical alert at 4 miles must force-clear a manual off")
	}
	if e.override != OverrideNone {
		t.Errorf("override = %q, want cleared", e.override)
	}
}

func TestEvaluate_HighSeverityDoesNotForceClear(t *testing.T) {
	now := time.Now()
	var e emergency
	e.setOverride(OverrideOff)

	if e.evaluate(ViewportMobile, []models.ProximityAlert{alertAt(models.SeverityHigh, 2)}, now) {
		t.Error("only a critical alert clears a manual off")
	}
}

func TestEvaluate_ManualOnExpiry(t *testing.T) {
	now := time.Now()
	var e emergency
	e.setOverride(OverrideOn)

	// No auto condition: the override arms its expiry.
	if !e.evaluate(ViewportDesktop, nil, now) {
		t.Fatal("manual on must activate emergency mode")
	}
	deadline, ok := e.deadline()
	if !ok || !deadline.Equal(now.Add(OverrideExpiry)) {
		t.Fatalf("deadline = %v, %v; want %v", deadline, ok, now.Add(OverrideExpiry))
	}

	// Still active just before the deadline.
	if !e.evaluate(ViewportDesktop, nil, now.Add(OverrideExpiry-time.Second)) {
		t.Fatal("override expired early")
	}

	// Expired at the deadline.
	if e.evaluate(ViewportDesktop, nil, now.Add(OverrideExpiry)) {
		t.Fatal("override must expire after sixty seconds without the auto condition")
	}
	if e.override != OverrideNone {
		t.Errorf("override = %q, want cleared", e.override)
	}
}

func TestEvaluate_ManualOnHoldsWhileAutoHolds(t *testing.T) {
	now := time.Now()
	near := []models.ProximityAlert{alertAt(models.SeverityCritical, 3)}
	var e emergency
	e.setOverride(OverrideOn)

	// Auto holds: no expiry is armed.
	if !e.evaluate(ViewportMobile, near, now) {
		t.Fatal("want emergency mode active")
	}
	if _, ok := e.deadline(); ok {
		t.Fatal("no expiry while the auto condition holds")
	}

	// Auto stops: the sixty-second countdown starts from here.
	if !e.evaluate(ViewportMobile, nil, now.Add(time.Hour)) {
		t.Fatal("override must survive the auto condition ending")
	}
	deadline, ok := e.deadline()
	if !ok || !deadline.Equal(now.Add(time.Hour+OverrideExpiry)) {
		t.Fatalf("deadline = %v, %v", deadline, ok)
	}

	// Auto resuming disarms the countdown again.
	e.evaluate(ViewportMobile, near, now.Add(time.Hour+time.Second))
	if _, ok := e.deadline(); ok {
		t.Fatal("expiry must disarm when the auto condition resumes")
	}
}
