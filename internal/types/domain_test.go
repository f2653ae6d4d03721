package types

import (
	"testing"
	"time"
)

func TestBundleIsSubscription(t *testing.T) {
	tests := []struct {
		name   string
		bundle Bundle
		want   bool
	}{
		{"empty set is the subscription sentinel", Bundle{ID: "all-access", MetaphorIDs: []string{}}, true},
		{"nil set is also a subscription", Bundle{ID: "all-access"}, true},
		{"one item", Bundle{ID: "starter", MetaphorIDs: []string{"poker"}}, false},
		{"many items", Bundle{ID: "core", MetaphorIDs: []string{"poker", "chess", "choir"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.bundle.IsSubscription(); got != tt.want {
				t.Errorf("IsSubscription() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCredentialExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cred Credential
		want bool
	}{
		{"future expiry", Credential{Token: "t", ExpiresAt: now.Add(time.Hour)}, false},
		{"past expiry", Credential{Token: "t", ExpiresAt: now.Add(-time.Hour)}, true},
		{"exactly at expiry counts as expired", Credential{Token: "t", ExpiresAt: now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cred.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
