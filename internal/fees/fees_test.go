package fees

import (
	"errors"
	"math"
	"testing"
)

func TestCalculateExample(t *testing.T) {
	b, err := Calculate(200, DefaultDeliveryFee)
	if err != nil {
		t.Fatalf("Calculate(200) returned error: %v", err)
	}
	if b.Profit != 4.00 {
		t.Errorf("profit = %v, want 4.00", b.Profit)
	}
	if b.ComplianceFee != 3.92 {
		t.Errorf("compliance_fee = %v, want 3.92", b.ComplianceFee)
	}
	if b.DeliveryFee != 8.16 {
		t.Errorf("delivery_fee = %v, want 8.16", b.DeliveryFee)
	}
	if b.TotalServiceFee != 16.08 {
		t.Errorf("total_service_fee = %v, want 16.08", b.TotalServiceFee)
	}
	if b.TotalPayment != 216.08 {
		t.Errorf("total_payment = %v, want 216.08", b.TotalPayment)
	}
}

func TestCalculateProfitFloor(t *testing.T) {
	// 0.02 * 100 = 2.00 < 3.50, floor applies
	b, err := Calculate(100, DefaultDeliveryFee)
	if err != nil {
		t.Fatalf("Calculate(100) returned error: %v", err)
	}
	if b.Profit != 3.50 {
		t.Errorf("profit = %v, want floor 3.50", b.Profit)
	}

	// 0.02 * 175 = 3.50, boundary
	b, err = Calculate(175, DefaultDeliveryFee)
	if err != nil {
		t.Fatalf("Calculate(175) returned error: %v", err)
	}
	if b.Profit != 3.50 {
		t.Errorf("profit = %v, want 3.50 at boundary", b.Profit)
	}
}

func TestCalculateTotalIsSumOfParts(t *testing.T) {
	amounts := []float64{0, 1, 19.99, 100, 175, 200, 350.75, 1234.56, 99999}
	for _, amount := range amounts {
		b, err := Calculate(amount, DefaultDeliveryFee)
		if err != nil {
			t.Fatalf("Calculate(%v) returned error: %v", amount, err)
		}
		sum := b.RequestedAmount + b.Profit + b.ComplianceFee + b.DeliveryFee
		if math.Abs(b.TotalPayment-sum) > 1e-9 {
			t.Errorf("Calculate(%v): total_payment = %v, sum of parts = %v", amount, b.TotalPayment, sum)
		}
		if math.Abs(b.TotalServiceFee-(b.Profit+b.ComplianceFee+b.DeliveryFee)) > 1e-9 {
			t.Errorf("Calculate(%v): total_service_fee = %v, parts sum to %v", amount, b.TotalServiceFee, b.Profit+b.ComplianceFee+b.DeliveryFee)
		}
	}
}

func TestCalculateDeterministic(t *testing.T) {
	first, err := Calculate(350.75, DefaultDeliveryFee)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Calculate(350.75, DefaultDeliveryFee)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("repeated calls differ: %+v vs %+v", first, second)
	}
}

func TestCalculateInvalidAmount(t *testing.T) {
	bad := []float64{-1, -0.01, math.NaN(), math.Inf(1), math.Inf(-1)}
	for _, amount := range bad {
		if _, err := Calculate(amount, DefaultDeliveryFee); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("Calculate(%v) error = %v, want ErrInvalidAmount", amount, err)
		}
	}
	if _, err := Calculate(100, -8.16); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative delivery fee accepted, want ErrInvalidAmount")
	}
}
