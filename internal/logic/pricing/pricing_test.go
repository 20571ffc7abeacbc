package pricing

import "testing"

func TestPartnerPayout(t *testing.T) {
	cases := []struct {
		name    string
		cpc     float64
		fee     float64
		want    float64
		wantErr bool
	}{
		{"typical 30% fee", 1.00, 30, 0.70, false},
		{"half-up rounding tie", 1.25, 50, 0.63, false},
		{"zero fee keeps cpc", 2.50, 0, 2.50, false},
		{"fee clamped above 100", 2.00, 150, 0.00, false},
		{"fee clamped below 0", 2.00, -10, 2.00, false},
		{"zero cpc rejected", 0, 30, 0, true},
		{"negative cpc rejected", -1, 30, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PartnerPayout(tc.cpc, tc.fee)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got payout %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("PartnerPayout(%v, %v) = %v, want %v", tc.cpc, tc.fee, got, tc.want)
			}
		})
	}
}
