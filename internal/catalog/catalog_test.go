package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/ilaydakx/pos-system/internal/domain"
	"github.com/ilaydakx/pos-system/internal/gateway"
)

func newTestService() (*Service, *gateway.Client) {
	client := gateway.NewClient(gateway.NewMemorySeeded())
	return NewService(client), client
}

func TestNormalizeProductCode(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"  elb-001 ", "ELB-001", false},
		{"ELB-001", "ELB-001", false},
		{"ELB001", "", true},
		{"EL-001", "", true},
		{"ELBI-001", "", true},
		{"ELB-01", "", true},
		{"1LB-001", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeProductCode(tc.in)
		if tc.wantErr {
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("%q: expected ErrInvalidInput, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("%q: got %q err=%v, want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestCreateVariantsCreatesOnePerSize(t *testing.T) {
	ctx := context.Background()
	svc, client := newTestService()

	created, err := svc.CreateVariants(ctx, VariantInput{
		ProductCode: "trk-005",
		Category:    "Elbise",
		Name:        "Kislik Elbise",
		Color:       "Siyah",
		SellPrice:   599.90,
		Variants: []domain.VariantRow{
			{Size: "S", StoreStart: 2, WarehouseStart: 1},
			{Size: "M", StoreStart: 3, WarehouseStart: 0},
			{Size: "L", StoreStart: 0, WarehouseStart: 4},
		},
	})
	if err != nil {
		t.Fatalf("create variants: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("expected 3 products, got %d", len(created))
	}

	for _, c := range created {
		p, err := client.FindProduct(ctx, c.Barcode)
		if err != nil {
			t.Fatalf("find %s: %v", c.Barcode, err)
		}
		if p.ProductCode != "TRK-005" {
			t.Fatalf("expected shared family code TRK-005, got %q", p.ProductCode)
		}
		if p.StoreQty != p.StoreStart || p.WarehouseQty != p.WarehouseStart {
			t.Fatalf("initial stock must equal baselines, got %+v", p)
		}
	}
}

func TestCreateVariantsRejectsDuplicateSizes(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateVariants(context.Background(), VariantInput{
		Name: "Deneme", SellPrice: 100,
		Variants: []domain.VariantRow{
			{Size: "M", StoreStart: 1},
			{Size: "m", StoreStart: 1},
		},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected duplicate-size rejection, got %v", err)
	}
}

func TestCreateVariantsRejectsEmptyRow(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateVariants(context.Background(), VariantInput{
		Name: "Deneme", SellPrice: 100,
		Variants: []domain.VariantRow{{Size: "M"}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected zero-stock rejection, got %v", err)
	}

	_, err = svc.CreateVariants(context.Background(), VariantInput{
		Name: "Deneme", SellPrice: 100,
		Variants: []domain.VariantRow{{Size: " ", StoreStart: 1}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected missing-size rejection, got %v", err)
	}

	_, err = svc.CreateVariants(context.Background(), VariantInput{
		Name: "Deneme", SellPrice: 100,
		Variants: []domain.VariantRow{{Size: "M", StoreStart: -1, WarehouseStart: 3}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected negative-stock rejection, got %v", err)
	}
}

func TestCreateVariantsRequiresNameAndPrice(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateVariants(context.Background(), VariantInput{
		Name: "  ", SellPrice: 100,
		Variants: []domain.VariantRow{{Size: "M", StoreStart: 1}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected name rejection, got %v", err)
	}
	_, err = svc.CreateVariants(context.Background(), VariantInput{
		Name: "Deneme", SellPrice: 0,
		Variants: []domain.VariantRow{{Size: "M", StoreStart: 1}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected price rejection, got %v", err)
	}
}

func TestCreateVariantsRejectsNegativeBuyPrice(t *testing.T) {
	svc, _ := newTestService()
	buy := -10.0
	_, err := svc.CreateVariants(context.Background(), VariantInput{
		Name: "Deneme", SellPrice: 100, BuyPrice: &buy,
		Variants: []domain.VariantRow{{Size: "M", StoreStart: 1}},
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected buy price rejection, got %v", err)
	}
}

func TestUpdateNormalizesCode(t *testing.T) {
	ctx := context.Background()
	svc, client := newTestService()

	code := "pnt-010"
	if err := svc.Update(ctx, domain.UpdateProductPayload{
		Barcode: "1000003", ProductCode: &code,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	p, err := client.FindProduct(ctx, "1000003")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.ProductCode != "PNT-010" {
		t.Fatalf("expected normalized code PNT-010, got %q", p.ProductCode)
	}

	bad := "PNT010"
	if err := svc.Update(ctx, domain.UpdateProductPayload{
		Barcode: "1000003", ProductCode: &bad,
	}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid code rejection, got %v", err)
	}
}

func TestDeleteProduct(t *testing.T) {
	ctx := context.Background()
	svc, client := newTestService()

	if err := svc.Delete(ctx, "1000005"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := client.FindProduct(ctx, "1000005"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected product gone, got %v", err)
	}
}
